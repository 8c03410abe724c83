// Package passgraph derives the execution structure of a render graph from
// its resource node table.
//
// # Why passgraph Exists
//
// Passes never name each other. They only declare which resource versions
// they read and which they write. This package turns those declarations into
// an explicit pass-to-pass dependency matrix, assigns each pass a dependency
// level, finds the passes that actually contribute to an external resource
// and produces a deterministic execution order.
//
// # Dependency Kinds
//
// For every resource node:
//
//   - the creator of the node precedes every reader (read after write),
//   - the creator precedes the writer of the next version (write after write),
//   - every reader precedes that writer (write after read).
//
// Only read-after-write and write-after-write edges make a pass necessary.
// A pass reached only through write-after-read edges is culled.
package passgraph
