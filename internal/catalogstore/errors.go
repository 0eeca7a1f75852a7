package catalogstore

import "errors"

// ErrNMismatch reports that a catalog was opened with a different N
// (signature width) than the one it was created with. Catalogs never
// change N after creation.
var ErrNMismatch = errors.New("catalogstore: n mismatch with existing catalog")

// ErrSigVersionMismatch reports that a catalog was created by a different
// signature-family version than this build implements. Catalogs from
// different signature families must never be silently mixed.
var ErrSigVersionMismatch = errors.New("catalogstore: signature version mismatch")

// ErrClosed is returned by any operation on a closed CatalogStore.
var ErrClosed = errors.New("catalogstore: closed")

// ErrNotFound is returned by GetStruct when no structure exists under the
// requested name.
var ErrNotFound = errors.New("catalogstore: not found")

// ErrInvalidArgument reports an empty name or other caller-supplied
// validation failure, surfaced before any storage work is attempted.
var ErrInvalidArgument = errors.New("catalogstore: invalid argument")
