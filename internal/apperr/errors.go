// Package apperr holds the sentinel errors shared across the catalog pipeline.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidMetadata marks a document whose header is missing or malformed.
	// The document is excluded from the corpus; the load continues.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrDuplicateSlug marks a document whose slug was already taken by an
	// earlier document in storage-name order.
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrStoreUnavailable marks a content store that exists but cannot be read.
	ErrStoreUnavailable = errors.New("content store unavailable")

	ErrRenderFailure = errors.New("render failure")
	ErrSearchBuild   = errors.New("search index build failure")
)
