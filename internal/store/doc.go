// Package store persists one compressed analysis record per game.
//
// Layout:
//
//	<dir>/<player>/depth-<depth>/<game id>.json.zst
//
// Each record is JSON compressed with zstd and written to a uniquely named
// .tmp sibling, fsynced, then renamed into place, so a record either exists
// whole or not at all. Existence of the file is the resume marker for batch runs.
package store
