package archive

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrMissingVersion indicates an ident-hash carries no version segment
	ErrMissingVersion = errors.New("ident hash is missing a version")

	// ErrMalformedIdent indicates an ident-hash could not be parsed
	ErrMalformedIdent = errors.New("malformed ident hash")

	// ErrUnknownContentKind indicates a content kind outside the known set
	ErrUnknownContentKind = errors.New("unknown content kind")

	// ErrDuplicateBucket indicates the three-bucket layout reuses a bucket name
	ErrDuplicateBucket = errors.New("duplicate bucket configuration")

	// ErrObjectNotFound indicates an object was not found in storage
	ErrObjectNotFound = errors.New("object not found")

	// ErrFetchFailed indicates a required representation could not be fetched
	ErrFetchFailed = errors.New("fetch failed")
)

// MissingVersionError is returned by SplitIdentHash when the hash has no
// version. It means "latest", not malformed input.
type MissingVersionError struct {
	Hash string
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf("ident hash %q is missing a version", e.Hash)
}

func (e *MissingVersionError) Unwrap() error {
	return ErrMissingVersion
}

// UnknownContentKindError is a programmer error: a kind was added without
// updating the key mapping.
type UnknownContentKindError struct {
	Kind ContentKind
}

func (e *UnknownContentKindError) Error() string {
	return fmt.Sprintf("unknown content kind %q", string(e.Kind))
}

func (e *UnknownContentKindError) Unwrap() error {
	return ErrUnknownContentKind
}

// DuplicateBucketConfigError is returned at startup when two of the three
// buckets share a name.
type DuplicateBucketConfigError struct {
	Name string
}

func (e *DuplicateBucketConfigError) Error() string {
	return fmt.Sprintf("bucket %q is configured for more than one content class", e.Name)
}

func (e *DuplicateBucketConfigError) Unwrap() error {
	return ErrDuplicateBucket
}

// FetchError represents a failed request for a required representation
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Bucket string
	Key    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s in bucket %s: %v", e.Op, e.Key, e.Bucket, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
