package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/archive-dump/pkg/archive/resolve"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		key  string
		want resolve.Version
		ok   bool
	}{
		{"abc123@9.html", resolve.Version{Major: 9}, true},
		{"abc123@1.1.html", resolve.Version{Major: 1, Minor: 1}, true},
		{"baked/abc123@21:def456.json", resolve.Version{Major: 21}, true},
		{"raw/02776133-d49d-49cb-bfaa-67c7f61b25a1@9.1.json", resolve.Version{Major: 9, Minor: 1}, true},
		{"raw/abc123.json", resolve.Version{}, false},
		{"resources/deadbeef", resolve.Version{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := resolve.ParseVersion(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortKeys(t *testing.T) {
	t.Run("numeric not lexical", func(t *testing.T) {
		got := resolve.SortKeys([]string{"abc@9.html", "abc@21.html", "abc@1.1.html"})
		assert.Equal(t, []string{"abc@21.html", "abc@9.html", "abc@1.1.html"}, got)
	})

	t.Run("minor compared as integer", func(t *testing.T) {
		got := resolve.SortKeys([]string{"abc@1.9.html", "abc@1.10.html", "abc@1.html"})
		assert.Equal(t, []string{"abc@1.10.html", "abc@1.9.html", "abc@1.html"}, got)
	})

	t.Run("unversioned keys dropped", func(t *testing.T) {
		got := resolve.SortKeys([]string{"abc.html", "abc@2.html"})
		assert.Equal(t, []string{"abc@2.html"}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, resolve.SortKeys(nil))
	})
}
