// Package core provides the foundational domain types and concurrency
// primitives shared by every turnmesh component. It defines:
//
//   - Scopes (hierarchical correlation identities carried by context.Context)
//   - Budgets (a shared wall-clock deadline consulted by chained model calls)
//   - Progress (a mutex-guarded aggregate of concurrent work)
//   - Guidelines, propositions and tool-call evaluations (per-turn results)
//   - Emitted events (the only records visible to the caller of a turn)
//   - The error taxonomy used across the structured output pipeline
//
// The package intentionally keeps orchestration, prompting and provider
// concerns out of scope, exposing small value types and interfaces so the
// engines built on top stay decoupled from storage and transport.
package core
