// Package deepview provides generic, introspection-driven deep read and
// write over a relational entity graph.
//
// Instead of one endpoint implementation per entity type, deepview
// derives everything from an explicit schema description: it enumerates
// every reachable relation path for an entity, builds and memoizes one
// handler per (use case, entity type) pair, shapes eager-loading,
// filtering and ordering purely from request parameters, and persists
// nested payloads of related entities in a single transaction.
//
// The root package holds the shared error taxonomy. The engine itself
// lives in the sub-packages:
//
//   - schema: the entity graph model and the relation-path walker
//   - view: use cases, handlers and the handler registry
//   - query: request parameters, the query shaper and fetch plans
//   - write: the nested write engine
//   - codec: serialization strategies attached to handlers
//   - dialect, dialect/sql: the storage driver boundary
//   - memstore: an in-memory storage implementation for tests
package deepview
