package archive

import (
	"errors"
	"fmt"
	"strings"
)

const (
	versionSeparator   = "@"
	compositeSeparator = ":"
)

// Identifier names one versioned document. An empty Version means "latest".
type Identifier struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// String renders the identifier as an ident-hash.
func (i Identifier) String() string {
	return JoinIdentHash(i.ID, i.Version)
}

// HasVersion reports whether the identifier is pinned to a version.
func (i Identifier) HasVersion() bool {
	return i.Version != ""
}

// JoinIdentHash joins an id and optional version into id@version, or the bare
// id when version is empty.
func JoinIdentHash(id, version string) string {
	if version == "" {
		return id
	}
	return id + versionSeparator + version
}

// SplitIdentHash splits id@version. A hash without a version yields the bare
// id together with a *MissingVersionError so callers can fall back to the
// latest version.
func SplitIdentHash(hash string) (id, version string, err error) {
	id, version, found := strings.Cut(hash, versionSeparator)
	if !found {
		if hash == "" {
			return "", "", fmt.Errorf("%w: empty", ErrMalformedIdent)
		}
		return hash, "", &MissingVersionError{Hash: hash}
	}
	if id == "" || version == "" || strings.Contains(version, versionSeparator) {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedIdent, hash)
	}
	return id, version, nil
}

// ParseIdentifier parses an ident-hash. Unlike SplitIdentHash a missing
// version is not an error; the returned identifier simply has none.
func ParseIdentifier(hash string) (Identifier, error) {
	id, version, err := SplitIdentHash(hash)
	if err != nil {
		if IsMissingVersion(err) {
			return Identifier{ID: id}, nil
		}
		return Identifier{}, err
	}
	return Identifier{ID: id, Version: version}, nil
}

// IsMissingVersion reports whether err says an ident-hash had no version.
func IsMissingVersion(err error) bool {
	var missing *MissingVersionError
	return errors.As(err, &missing)
}

// CompositeHash addresses a page inside the collation context of a book.
type CompositeHash struct {
	Book Identifier
	Page Identifier
}

// String renders book_ident:page_id. The page version is never part of the
// composite form; the book version pins it.
func (c CompositeHash) String() string {
	return c.Book.String() + compositeSeparator + c.Page.ID
}

// ParseCompositeHash parses book_ident:page_ident. Either side may omit its
// version.
func ParseCompositeHash(s string) (CompositeHash, error) {
	bookPart, pagePart, found := strings.Cut(s, compositeSeparator)
	if !found {
		return CompositeHash{}, fmt.Errorf("%w: %q has no %q separator", ErrMalformedIdent, s, compositeSeparator)
	}
	book, err := ParseIdentifier(bookPart)
	if err != nil {
		return CompositeHash{}, err
	}
	page, err := ParseIdentifier(pagePart)
	if err != nil {
		return CompositeHash{}, err
	}
	return CompositeHash{Book: book, Page: page}, nil
}

// IsComposite reports whether s contains a book:page separator.
func IsComposite(s string) bool {
	return strings.Contains(s, compositeSeparator)
}
