// Package fetch implements single-artifact retrieval with bounded retry,
// payload hashing and atomic writes to the storage root.
package fetch
