package bptree

import "fmt"

// Check validates the structural invariants of the tree: node fill, sorted
// keys, separator partitioning, parent links, uniform leaf depth and a
// strictly ascending leaf chain holding exactly Len records.
func (t *Tree) Check() error {
	if t.IsEmpty() {
		if t.count != 0 {
			return fmt.Errorf("%w: empty tree with count %d", ErrInvariant, t.count)
		}
		return nil
	}
	if p := t.node(t.root).parent; p != nilNode {
		return fmt.Errorf("%w: root has parent %d", ErrInvariant, p)
	}

	leafDepth := -1
	if err := t.checkNode(t.root, nilNode, 0, false, 0, false, 0, &leafDepth); err != nil {
		return err
	}

	var (
		n    int
		prev uint64
		err  error
	)
	t.Ascend(func(key uint64, _ []byte) bool {
		if n > 0 && key <= prev {
			err = fmt.Errorf("%w: leaf chain not ascending at %d", ErrInvariant, key)
			return false
		}
		prev = key
		n++
		return true
	})
	if err != nil {
		return err
	}
	if n != t.count {
		return fmt.Errorf("%w: leaf chain holds %d records, count is %d", ErrInvariant, n, t.count)
	}
	return nil
}

// checkNode verifies id and its subtree. Keys must fall in [lo, hi) where the
// bounds apply only when hasLo/hasHi are set.
func (t *Tree) checkNode(id, parent nodeID, lo uint64, hasLo bool, hi uint64, hasHi bool, depth int, leafDepth *int) error {
	if id < 0 || int(id) >= len(t.nodes) {
		return fmt.Errorf("%w: node id %d out of range", ErrInvariant, id)
	}
	nd := t.node(id)

	if nd.parent != parent {
		return fmt.Errorf("%w: node %d parent is %d, want %d", ErrInvariant, id, nd.parent, parent)
	}
	if nd.n < 1 || nd.n > MaxKeys {
		return fmt.Errorf("%w: node %d holds %d keys", ErrInvariant, id, nd.n)
	}
	for i := 0; i < nd.n; i++ {
		k := nd.keys[i]
		if i > 0 && k <= nd.keys[i-1] {
			return fmt.Errorf("%w: node %d keys not ascending", ErrInvariant, id)
		}
		if (hasLo && k < lo) || (hasHi && k >= hi) {
			return fmt.Errorf("%w: node %d key %d outside separator range", ErrInvariant, id, k)
		}
	}

	if nd.leaf {
		if *leafDepth == -1 {
			*leafDepth = depth
		} else if *leafDepth != depth {
			return fmt.Errorf("%w: leaf %d at depth %d, want %d", ErrInvariant, id, depth, *leafDepth)
		}
		return nil
	}

	for i := 0; i <= nd.n; i++ {
		cLo, cHasLo := lo, hasLo
		cHi, cHasHi := hi, hasHi
		if i > 0 {
			cLo, cHasLo = nd.keys[i-1], true
		}
		if i < nd.n {
			cHi, cHasHi = nd.keys[i], true
		}
		if err := t.checkNode(nd.children[i], id, cLo, cHasLo, cHi, cHasHi, depth+1, leafDepth); err != nil {
			return err
		}
	}
	return nil
}
