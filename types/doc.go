/*
Package types holds the shared type contracts of the platform.

It is the lowest-level package and depends on no internal package, so the
governance, training, storage and API layers can exchange values without
import cycles. It defines:

  - GovernanceMeta / ObjectMeta — identities for versioned and immutable
    governed objects
  - Group, Strategy, Dataset, MLModel, Configuration, QualityRequirement —
    the governed resources
  - Proposal, Vote, VoteTally, AcceptanceTally — the voting surface
  - Error / ErrorCode — structured errors with HTTP status mapping
  - Context propagation helpers (trace ID, request ID, member ID)
*/
package types
