// Package manifest implements the durable ledger of fetched artifacts.
//
// The ledger is a JSON file under the storage root, keyed by remote
// locator. It is the single source of truth for "has this been fetched";
// the filesystem is a secondary, advisory signal. An in-memory index is
// rebuilt from the entry list on every load and kept consistent with each
// Record call, giving O(1) lookups.
//
// Saving is atomic: the ledger is written to a temporary file, synced and
// renamed into place, so an interrupted run never leaves a truncated
// ledger behind.
package manifest
