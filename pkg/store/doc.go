// Package store is the Content Store: the pgx-backed
// repositories that own documents, chunks, entity mentions, canonical
// entities, and vectors, built as hand-written repositories over
// database/sql, following the same
// query shape pkg/jobstore already established for the job record
// store, and front-caches hot document/chunk reads with an in-memory
// LRU (hashicorp/golang-lru/v2) the way estuary-flow fronts its SNI
// resolution cache.
//
// Every repository here is a distinct Go type even though documents,
// chunks, entity_mentions, and canonical_entities all live in the same
// `core` schema and share one *sql.DB — mirroring how pkg/jobstore
// models the job record store as a repository logically separate from
// the broker, despite both reading the same Postgres instance.
package store

// DefaultCacheSize bounds the in-memory LRU front-cache each repository
// keeps over its hottest reads, when the caller doesn't request a
// specific size.
const DefaultCacheSize = 512
