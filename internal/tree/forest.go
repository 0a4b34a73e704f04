// Package tree turns parent-pointer rows into derived structures: a forest for
// tag hierarchies and quoted display text for replies.
package tree

import (
	"errors"
	"fmt"
)

var (
	ErrCyclicHierarchy = errors.New("cyclic hierarchy")
	ErrDuplicateID     = errors.New("duplicate id")
)

// Branch is one node of a forest. Children is nil for leaves.
type Branch[T any] struct {
	Value    T
	Children []*Branch[T]
}

// Size counts the branch and all of its descendants.
func (b *Branch[T]) Size() int {
	n := 1
	for _, c := range b.Children {
		n += c.Size()
	}
	return n
}

// BuildForest arranges items into a forest using their id and parent id (0 means root).
// Roots and children keep input order. Items whose parent id is not present in the
// input are treated as roots. Any parent chain that loops back on itself fails with
// ErrCyclicHierarchy instead of recursing forever.
func BuildForest[T any](items []T, id func(T) uint, parent func(T) uint) ([]*Branch[T], error) {
	present := make(map[uint]struct{}, len(items))
	for _, item := range items {
		key := id(item)
		if _, dup := present[key]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, key)
		}
		present[key] = struct{}{}
	}

	childrenOf := make(map[uint][]int)
	var roots []int
	for i, item := range items {
		p := parent(item)
		if _, ok := present[p]; p == 0 || !ok {
			roots = append(roots, i)
			continue
		}
		childrenOf[p] = append(childrenOf[p], i)
	}

	b := &builder[T]{
		items:      items,
		id:         id,
		childrenOf: childrenOf,
		onPath:     make(map[uint]bool),
		visited:    make(map[uint]bool, len(items)),
	}

	forest := make([]*Branch[T], 0, len(roots))
	for _, i := range roots {
		branch, err := b.build(i)
		if err != nil {
			return nil, err
		}
		forest = append(forest, branch)
	}

	// Members of a closed loop have a present parent, so they are never roots and
	// never reached from one.
	if len(b.visited) != len(items) {
		for _, item := range items {
			if !b.visited[id(item)] {
				return nil, fmt.Errorf("%w: id %d is not reachable from a root", ErrCyclicHierarchy, id(item))
			}
		}
	}

	return forest, nil
}

type builder[T any] struct {
	items      []T
	id         func(T) uint
	childrenOf map[uint][]int
	onPath     map[uint]bool
	visited    map[uint]bool
}

func (b *builder[T]) build(i int) (*Branch[T], error) {
	key := b.id(b.items[i])
	if b.onPath[key] || b.visited[key] {
		return nil, fmt.Errorf("%w: id %d", ErrCyclicHierarchy, key)
	}
	b.onPath[key] = true
	b.visited[key] = true
	defer delete(b.onPath, key)

	branch := &Branch[T]{Value: b.items[i]}
	for _, c := range b.childrenOf[key] {
		child, err := b.build(c)
		if err != nil {
			return nil, err
		}
		branch.Children = append(branch.Children, child)
	}
	return branch, nil
}

// CreatesCycle reports whether re-parenting id under newParent would close a loop,
// given the current id -> parent id mapping.
func CreatesCycle(parentOf map[uint]uint, id, newParent uint) bool {
	seen := make(map[uint]bool)
	for cur := newParent; cur != 0; cur = parentOf[cur] {
		if cur == id || seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}
