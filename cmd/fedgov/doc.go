/*
Package main provides the fedgov server entry point.

# Overview

cmd/fedgov is the executable entry of the federated governance service,
with subcommands for serving the HTTP API, running database migrations,
and querying version and health. The program loads YAML configuration,
emits structured logs (zap), exposes Prometheus metrics on a dedicated
port and exports OpenTelemetry traces when enabled.

# Core types

  - Server         — main server, owns the HTTP and metrics listeners and graceful shutdown
  - Middleware     — HTTP middleware signature func(http.Handler) http.Handler
  - responseWriter — wraps http.ResponseWriter to capture the status code

# Capabilities

  - Subcommands: serve, migrate (up/down/status/goto/force/reset), version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    MetricsMiddleware, OTelTracing, CORS, RateLimiter (per IP),
    MemberAuth (Bearer JWT, X-Member-ID fallback in dev mode)
  - Routes: groups, strategies, proposals, votes, tallies, datasets,
    ML models, configurations, quality requirements, training sessions
    and the websocket endpoints /join_training and /register_dataset
  - Metrics server: /metrics (Prometheus) on a separate port
  - Graceful shutdown: signal → training sessions → HTTP → metrics →
    cache → store → telemetry
  - Build injection: Version, BuildTime, GitCommit set via ldflags
*/
package main
