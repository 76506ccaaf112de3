// Package engagement is the Trail engagement service: deduplicated view
// counting and per-user clap ledgers for entries, comments and profiles.
//
// The code is organized into subpackages:
//
//   - cmd/server: HTTP API entry point
//   - cmd/engagectl: maintenance CLI (migrations, counter rebuilds, seeding)
//   - internal/engagement: view recorder, counter cache and clap ledger
//   - internal/viewer: viewer identity resolution and anonymous hashing
//   - internal/permalink: reversible public tokens for numeric ids
//   - internal/handlers: HTTP handlers and routes
//   - internal/repository: read-only content ownership lookups
//   - internal/container: dependency wiring and shutdown order
//   - internal/cache: Redis rate-limit counters and the rebuild lock
//   - internal/middleware: auth, rate limiting, logging, metrics, tracing
//   - internal/database: connection setup and migrations
package engagement
