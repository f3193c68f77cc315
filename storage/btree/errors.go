// Package btree implements the B-link-tree index: meta/branch/leaf pages
// over the buffer manager, keyed and valued by codec-encoded tuples.
package btree

import "github.com/pkg/errors"

// ErrInvalidPageType is returned when a page's leading byte does not match
// any known PageType.
var ErrInvalidPageType = errors.New("btree: invalid page type")

// ErrInvalidTreeStruct is returned when a descent finds a branch where a
// leaf was expected or vice versa — a corrupt tree.
var ErrInvalidTreeStruct = errors.New("btree: invalid tree structure")

// ErrDuplicateKey is reserved for a future strict-insert mode; the present
// core's Insert silently no-ops on a duplicate key instead (see DESIGN.md).
var ErrDuplicateKey = errors.New("btree: duplicate key")

// ErrKeyNotFound is reserved for a future point-lookup API distinct from
// Cursor; Cursor reports a miss via its matched bool instead.
var ErrKeyNotFound = errors.New("btree: key not found")
