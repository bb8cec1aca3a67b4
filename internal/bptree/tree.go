package bptree

import "slices"

const (
	// Order is the maximum number of children of an internal node.
	Order = 5
	// MaxKeys is the maximum number of keys in any node.
	MaxKeys = Order - 1
)

type nodeID int32

const nilNode nodeID = -1

type node struct {
	leaf     bool
	n        int
	keys     [MaxKeys]uint64
	vals     [MaxKeys][]byte
	children [Order]nodeID
	parent   nodeID
	next     nodeID
}

// Tree is an order-5 B+ tree keyed by uint64.
// It is not safe for concurrent use.
type Tree struct {
	nodes []node
	root  nodeID
	count int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: nilNode}
}

// IsEmpty reports whether the tree holds no records.
func (t *Tree) IsEmpty() bool { return t.root == nilNode }

// Len returns the number of distinct keys in the tree.
func (t *Tree) Len() int { return t.count }

// Reset drops every record and releases the arena.
func (t *Tree) Reset() {
	clear(t.nodes)
	t.nodes = t.nodes[:0]
	t.root = nilNode
	t.count = 0
}

func (t *Tree) alloc(leaf bool) nodeID {
	t.nodes = append(t.nodes, node{leaf: leaf, parent: nilNode, next: nilNode})
	return nodeID(len(t.nodes) - 1)
}

func (t *Tree) node(id nodeID) *node { return &t.nodes[id] }

// findLeaf descends to the leaf that owns key.
func (t *Tree) findLeaf(key uint64) nodeID {
	id := t.root
	for !t.nodes[id].leaf {
		nd := &t.nodes[id]
		i := 0
		for i < nd.n && key >= nd.keys[i] {
			i++
		}
		id = nd.children[i]
	}
	return id
}

func (t *Tree) leftmostLeaf() nodeID {
	id := t.root
	for !t.nodes[id].leaf {
		id = t.nodes[id].children[0]
	}
	return id
}

func (t *Tree) rightmostLeaf() nodeID {
	id := t.root
	for !t.nodes[id].leaf {
		nd := &t.nodes[id]
		id = nd.children[nd.n]
	}
	return id
}

// Search returns the value stored for key.
func (t *Tree) Search(key uint64) ([]byte, bool) {
	if t.IsEmpty() {
		return nil, false
	}
	nd := t.node(t.findLeaf(key))
	for i := 0; i < nd.n; i++ {
		if nd.keys[i] == key {
			return nd.vals[i], true
		}
	}
	return nil, false
}

// Insert stores a copy of value under key. An existing key is overwritten in
// place. It reports whether the key was new.
func (t *Tree) Insert(key uint64, value []byte) bool {
	value = slices.Clone(value)

	if t.IsEmpty() {
		t.root = t.alloc(true)
		nd := t.node(t.root)
		nd.keys[0] = key
		nd.vals[0] = value
		nd.n = 1
		t.count = 1
		return true
	}

	leaf := t.findLeaf(key)
	nd := t.node(leaf)

	pos := 0
	for pos < nd.n && nd.keys[pos] < key {
		pos++
	}
	if pos < nd.n && nd.keys[pos] == key {
		nd.vals[pos] = value
		return false
	}

	t.count++
	if nd.n < MaxKeys {
		copy(nd.keys[pos+1:nd.n+1], nd.keys[pos:nd.n])
		copy(nd.vals[pos+1:nd.n+1], nd.vals[pos:nd.n])
		nd.keys[pos] = key
		nd.vals[pos] = value
		nd.n++
		return true
	}

	t.splitLeaf(leaf, pos, key, value)
	return true
}

// splitLeaf inserts key at pos into a full leaf and splits it. The lower
// floor((MaxKeys+1)/2) records stay, the rest move to a new right sibling
// whose first key is promoted.
func (t *Tree) splitLeaf(leaf nodeID, pos int, key uint64, value []byte) {
	var (
		keys [MaxKeys + 1]uint64
		vals [MaxKeys + 1][]byte
	)

	nd := t.node(leaf)
	copy(keys[:pos], nd.keys[:pos])
	copy(vals[:pos], nd.vals[:pos])
	keys[pos] = key
	vals[pos] = value
	copy(keys[pos+1:], nd.keys[pos:nd.n])
	copy(vals[pos+1:], nd.vals[pos:nd.n])

	right := t.alloc(true)
	// alloc may move the arena.
	nd = t.node(leaf)
	rn := t.node(right)

	split := (MaxKeys + 1) / 2
	clear(nd.vals[:])
	nd.n = copy(nd.keys[:], keys[:split])
	copy(nd.vals[:], vals[:split])
	rn.n = copy(rn.keys[:], keys[split:])
	copy(rn.vals[:], vals[split:])

	rn.next = nd.next
	nd.next = right
	rn.parent = nd.parent

	t.insertIntoParent(leaf, rn.keys[0], right)
}

// insertIntoParent links right after left under left's parent, separated by key.
func (t *Tree) insertIntoParent(left nodeID, key uint64, right nodeID) {
	parent := t.node(left).parent
	if parent == nilNode {
		root := t.alloc(false)
		rt := t.node(root)
		rt.keys[0] = key
		rt.children[0] = left
		rt.children[1] = right
		rt.n = 1
		t.node(left).parent = root
		t.node(right).parent = root
		t.root = root
		return
	}

	p := t.node(parent)
	idx := 0
	for p.children[idx] != left {
		idx++
	}

	if p.n < MaxKeys {
		copy(p.keys[idx+1:p.n+1], p.keys[idx:p.n])
		copy(p.children[idx+2:p.n+2], p.children[idx+1:p.n+1])
		p.keys[idx] = key
		p.children[idx+1] = right
		p.n++
		t.node(right).parent = parent
		return
	}

	t.splitInternal(parent, idx, key, right)
}

// splitInternal inserts (key, right) after child idx of a full internal node
// and splits it. The median separator moves up and is kept in neither half.
func (t *Tree) splitInternal(id nodeID, idx int, key uint64, right nodeID) {
	var (
		keys     [MaxKeys + 1]uint64
		children [Order + 1]nodeID
	)

	nd := t.node(id)
	copy(keys[:idx], nd.keys[:idx])
	keys[idx] = key
	copy(keys[idx+1:], nd.keys[idx:nd.n])

	copy(children[:idx+1], nd.children[:idx+1])
	children[idx+1] = right
	copy(children[idx+2:], nd.children[idx+1:nd.n+1])

	sibling := t.alloc(false)
	nd = t.node(id)
	sb := t.node(sibling)

	mid := (MaxKeys + 1) / 2
	promoted := keys[mid]

	nd.n = copy(nd.keys[:], keys[:mid])
	copy(nd.children[:], children[:mid+1])
	for i := mid + 1; i < Order; i++ {
		nd.children[i] = nilNode
	}

	sb.n = copy(sb.keys[:], keys[mid+1:])
	copy(sb.children[:], children[mid+1:])
	sb.parent = nd.parent

	for i := 0; i <= nd.n; i++ {
		t.node(nd.children[i]).parent = id
	}
	for i := 0; i <= sb.n; i++ {
		t.node(sb.children[i]).parent = sibling
	}

	t.insertIntoParent(id, promoted, sibling)
}

// MinKey returns the smallest key in the tree.
func (t *Tree) MinKey() (uint64, bool) {
	if t.IsEmpty() {
		return 0, false
	}
	return t.node(t.leftmostLeaf()).keys[0], true
}

// MaxKey returns the largest key in the tree.
func (t *Tree) MaxKey() (uint64, bool) {
	if t.IsEmpty() {
		return 0, false
	}
	nd := t.node(t.rightmostLeaf())
	return nd.keys[nd.n-1], true
}

// MedianKey returns the key at position (Len-1)/2 in key order. Splitting
// at this key keeps at least half of the records in the lower part.
func (t *Tree) MedianKey() (uint64, bool) {
	if t.IsEmpty() {
		return 0, false
	}
	target := (t.count - 1) / 2
	var (
		median uint64
		i      int
	)
	t.Ascend(func(key uint64, _ []byte) bool {
		if i == target {
			median = key
			return false
		}
		i++
		return true
	})
	return median, true
}

// Ascend calls fn for every record in ascending key order until fn returns false.
// The value slice must not be modified.
func (t *Tree) Ascend(fn func(key uint64, value []byte) bool) {
	if t.IsEmpty() {
		return
	}
	for id := t.leftmostLeaf(); id != nilNode; id = t.nodes[id].next {
		nd := &t.nodes[id]
		for i := 0; i < nd.n; i++ {
			if !fn(nd.keys[i], nd.vals[i]) {
				return
			}
		}
	}
}

// Scan calls fn for every record with start <= key <= end in ascending order
// until fn returns false.
func (t *Tree) Scan(start, end uint64, fn func(key uint64, value []byte) bool) {
	if t.IsEmpty() || start > end {
		return
	}
	for id := t.findLeaf(start); id != nilNode; id = t.nodes[id].next {
		nd := &t.nodes[id]
		for i := 0; i < nd.n; i++ {
			k := nd.keys[i]
			if k < start {
				continue
			}
			if k > end {
				return
			}
			if !fn(k, nd.vals[i]) {
				return
			}
		}
	}
}
