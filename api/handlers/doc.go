/*
Package handlers implements the HTTP request handlers for the federated
governance API.

# Overview

The package covers every HTTP endpoint of the service: group, strategy,
dataset and model management, proposal creation and voting, vote counting,
training session control and health probes. All handlers follow the
standard net/http interface and share a uniform response envelope.

# Core types

  - GroupHandler     — participant group CRUD and membership
  - StrategyHandler  — strategies and the two vote-counting endpoints
  - ResourceHandler  — datasets, ML models, configurations, quality requirements
  - ProposalHandler  — proposal lifecycle, vote casting and withdrawal
  - TrainingHandler  — training session registry (load, list, inspect)
  - HealthHandler    — liveness/readiness probes with pluggable checks
  - Response         — uniform JSON envelope (success + data + error + timestamp)
  - ErrorInfo        — structured error with code, message and retryable flag

# Capabilities

  - Uniform responses: WriteSuccess / WriteCreated / WriteError helpers
  - Request validation: DecodeJSON (strict mode), PathUUID
  - ErrorCode to HTTP status mapping (4xx/5xx)
  - Versioned resource reads via the ?version query parameter
*/
package handlers
