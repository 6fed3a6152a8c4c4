// Package indexing embeds guideline predicates so the engine can rank
// guidelines by semantic similarity to a turn before running the
// proposition engine.
//
// The Indexer embeds guidelines in concurrent chunks through a
// model.Embedder and reports progress through a core.Progress aggregate.
// The resulting Index is an in-process vector set searched by cosine
// similarity; swap it for a vector database when the guideline set grows
// beyond what a linear scan can serve.
package indexing
