// Package dsa provides two data structures: a radix-tree dictionary with
// exact-key Insert/Search/Delete, which backs the lexical index's term
// dictionary, and a suffix array for literal-substring search, which backs
// the grep_chunks tool's literal pre-filter.
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie wraps go-radix for a compressed prefix tree (radix tree).
// Much more memory-efficient than standard trie for long shared prefixes,
// such as the token vocabulary of a large document set.
//
// Standard trie: /Users/richard → 14 nodes (one per character)
// Radix tree:    /Users/richard → 1 node (compressed path)
//
// Time Complexity: O(k) where k is key length
// Space Complexity: O(n * avg_key_len) instead of O(n * alphabet * max_key_len)
type Trie[V any] struct {
	tree *radix.Tree
	size int
}

// NewTrie creates a new empty radix tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{
		tree: radix.New(),
	}
}

// Insert adds a key-value pair to the tree.
// Time Complexity: O(k) where k is key length.
func (t *Trie[V]) Insert(key string, value V) {
	_, updated := t.tree.Insert(key, value)
	if !updated {
		t.size++
	}
}

// Search looks up a key in the tree.
// Time Complexity: O(k) where k is key length.
func (t *Trie[V]) Search(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	v, ok := val.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return v, true
}

// Delete removes a key from the tree.
// Returns true if the key was found and deleted.
func (t *Trie[V]) Delete(key string) bool {
	_, deleted := t.tree.Delete(key)
	if deleted {
		t.size--
	}
	return deleted
}
