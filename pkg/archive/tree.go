package archive

import (
	"iter"
	"strings"
)

// TreeNode is a node in a book's table of contents. A node whose Contents is
// non-nil is a collection; anything else is a page.
type TreeNode struct {
	ID       string     `json:"id"`
	Title    string     `json:"title,omitempty"`
	Contents []TreeNode `json:"contents,omitempty"`
}

// IsCollection reports whether the node carries a contents list, even an
// empty one.
func (n *TreeNode) IsCollection() bool {
	return n.Contents != nil
}

// Flatten yields the page identifiers of the tree depth-first in document
// order. Collections contribute only their children.
func Flatten(root *TreeNode) iter.Seq[Identifier] {
	return func(yield func(Identifier) bool) {
		if root == nil {
			return
		}
		stack := []*TreeNode{root}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if !node.IsCollection() {
				if !yield(nodeIdentifier(node.ID)) {
					return
				}
				continue
			}
			for i := len(node.Contents) - 1; i >= 0; i-- {
				stack = append(stack, &node.Contents[i])
			}
		}
	}
}

// nodeIdentifier splits a tree id leniently; tree ids come from the API and
// are always id or id@version.
func nodeIdentifier(hash string) Identifier {
	id, version, _ := strings.Cut(hash, versionSeparator)
	return Identifier{ID: id, Version: version}
}
