// Package collection implements the remote collection cache shared by every
// list and detail screen. Entries are replaced whole on success, keep their
// last good data on failure, and concurrent reads of one key share a single
// backend request.
//
// Snapshot data is shared read-only with the cache: list snapshots copy the
// slice, not the rows. Filtering, sorting and paging build new slices and
// never write to a row.
package collection
