package governance

import (
	"github.com/google/uuid"

	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🗳️ Tally engine
// =============================================================================
//
// Pure functions computing tally outcomes from proposals and their votes.
// No storage access — the service layer loads the inputs and persists the
// consequences.

// SplitByPriority buckets every proposal's votes by priority tier.
func SplitByPriority(proposals []types.Proposal) map[uuid.UUID]types.PriorityBuckets {
	votes := make(map[uuid.UUID]types.PriorityBuckets, len(proposals))
	for _, p := range proposals {
		var buckets types.PriorityBuckets
		for _, v := range p.Votes {
			if v.IsPriority() {
				buckets.Add(v.Priority, v.Member)
			}
		}
		votes[p.ID] = buckets
	}
	return votes
}

// ChooseWinner walks priority tiers 1..3 and picks the proposal whose
// cumulative vote count exceeds half the group size. At each tier the
// candidates are the proposals above the threshold; a sole candidate with
// the strictly largest count wins, two or more candidates sharing the
// largest count are a tie, which stops the evaluation without cascading
// to lower tiers. The result does not depend on map iteration order.
func ChooseWinner(votes map[uuid.UUID]types.PriorityBuckets, memberCount int) (winner *uuid.UUID, tie bool) {
	for tier := 1; tier <= 3; tier++ {
		best := uuid.Nil
		bestCount := 0
		tied := false
		for id, buckets := range votes {
			count := buckets.CountThrough(tier)
			if count*2 <= memberCount {
				continue // strict majority required
			}
			switch {
			case count > bestCount:
				best, bestCount, tied = id, count, false
			case count == bestCount:
				tied = true
			}
		}
		if tied {
			return nil, true
		}
		if best != uuid.Nil {
			id := best
			return &id, false
		}
	}
	return nil, false
}

// TallyConfigurations computes the priority tally over a strategy's open
// configuration proposals. A tie sets the tally message; no majority
// leaves both winner and message empty.
func TallyConfigurations(proposals []types.Proposal, memberCount int) types.VoteTally {
	votes := SplitByPriority(proposals)
	winner, tie := ChooseWinner(votes, memberCount)
	tally := types.VoteTally{
		Winner:      winner,
		Votes:       votes,
		MemberCount: memberCount,
	}
	if tie {
		tally.Message = types.TieMessage
	}
	return tally
}

// TallyDecision computes the yes/no tally over a single quality
// requirement proposal. Acceptance requires strictly more than half of
// the votes cast, not of the group size.
func TallyDecision(p *types.Proposal) types.AcceptanceTally {
	votes := make(map[uuid.UUID]bool, len(p.Votes))
	yes := 0
	for _, v := range p.Votes {
		if !v.IsDecision() {
			continue
		}
		votes[v.Member] = *v.Decision
		if *v.Decision {
			yes++
		}
	}
	return types.AcceptanceTally{
		Proposal: p.ID,
		Accepted: yes*2 > len(votes),
		Votes:    votes,
	}
}
