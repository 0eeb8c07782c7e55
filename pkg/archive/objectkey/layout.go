package objectkey

import (
	"errors"
	"fmt"

	"github.com/tendant/archive-dump/pkg/archive"
)

// Class groups content kinds by destination.
type Class string

const (
	ClassRaw      Class = "raw"
	ClassBaked    Class = "baked"
	ClassResource Class = "resource"
)

// Classes lists the three storage classes.
var Classes = []Class{ClassRaw, ClassBaked, ClassResource}

// Default prefixes for the single-bucket layout
const (
	DefaultRawPrefix      = "raw/"
	DefaultBakedPrefix    = "baked/"
	DefaultResourcePrefix = "resources/"
)

// ClassOf returns the storage class of a content kind.
func ClassOf(kind archive.ContentKind) (Class, error) {
	switch kind {
	case archive.KindRawBookJSON, archive.KindRawBookHTML,
		archive.KindRawPageJSON, archive.KindRawPageHTML:
		return ClassRaw, nil
	case archive.KindBakedBookJSON, archive.KindBakedBookHTML,
		archive.KindBakedPageJSON, archive.KindBakedPageHTML:
		return ClassBaked, nil
	case archive.KindResource, archive.KindResourceMediaType:
		return ClassResource, nil
	}
	return "", &archive.UnknownContentKindError{Kind: kind}
}

// Layout decides which bucket and key prefix each class is written to.
// Exactly one layout is active per run.
type Layout interface {
	// Bucket returns the bucket name holding the class
	Bucket(class Class) string

	// Prefix returns the key prefix of the class inside its bucket
	Prefix(class Class) string

	// Validate checks the layout before anything is fetched
	Validate() error
}

// Prefixes holds the per-class key prefixes of a single-bucket layout.
type Prefixes struct {
	Raw      string
	Baked    string
	Resource string
}

// DefaultPrefixes returns raw/, baked/ and resources/.
func DefaultPrefixes() Prefixes {
	return Prefixes{
		Raw:      DefaultRawPrefix,
		Baked:    DefaultBakedPrefix,
		Resource: DefaultResourcePrefix,
	}
}

// SingleBucket stores every class in one bucket, separated by prefix.
type SingleBucket struct {
	Name     string
	Prefixes Prefixes
}

func (l SingleBucket) Bucket(Class) string {
	return l.Name
}

func (l SingleBucket) Prefix(class Class) string {
	switch class {
	case ClassRaw:
		return l.Prefixes.Raw
	case ClassBaked:
		return l.Prefixes.Baked
	case ClassResource:
		return l.Prefixes.Resource
	}
	return ""
}

func (l SingleBucket) Validate() error {
	if l.Name == "" {
		return errors.New("bucket name is required")
	}
	seen := map[string]Class{}
	for _, class := range Classes {
		p := l.Prefix(class)
		if other, ok := seen[p]; ok {
			return fmt.Errorf("prefix %q is shared by %s and %s", p, other, class)
		}
		seen[p] = class
	}
	return nil
}

// ThreePartBucket stores each class in its own bucket without prefixes.
type ThreePartBucket struct {
	RawBucket      string
	BakedBucket    string
	ResourceBucket string
}

func (l ThreePartBucket) Bucket(class Class) string {
	switch class {
	case ClassRaw:
		return l.RawBucket
	case ClassBaked:
		return l.BakedBucket
	case ClassResource:
		return l.ResourceBucket
	}
	return ""
}

func (l ThreePartBucket) Prefix(Class) string {
	return ""
}

func (l ThreePartBucket) Validate() error {
	seen := map[string]bool{}
	for _, class := range Classes {
		name := l.Bucket(class)
		if name == "" {
			return fmt.Errorf("%s bucket name is required", class)
		}
		if seen[name] {
			return &archive.DuplicateBucketConfigError{Name: name}
		}
		seen[name] = true
	}
	return nil
}

// Buckets returns the distinct bucket names a layout writes to, in class order.
func Buckets(l Layout) []string {
	var names []string
	seen := map[string]bool{}
	for _, class := range Classes {
		name := l.Bucket(class)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
