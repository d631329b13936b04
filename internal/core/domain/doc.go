// Package domain defines the core business entities for bpexplore.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A cached entity (project, organisation or fundraising event)
//   - CacheDataset: Sync metadata and lifecycle status of a dataset
//   - SearchTerms / Result: The query contract of the search router
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
