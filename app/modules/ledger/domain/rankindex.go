package ledgerdomain

// RankIndex is an order-statistic treap over score entries, ordered by Ranks, with a
// participant lookup table on the side. Rank and insert are O(log n), top-k is O(k).
//
// RankIndex is not safe for concurrent use; the ledger guards it with its own lock.
type RankIndex struct {
	root *rankNode
	byID map[ParticipantID]ScoreEntry
	seed uint64
}

type rankNode struct {
	entry       ScoreEntry
	priority    uint64
	size        int
	left, right *rankNode
}

// NewRankIndex returns an empty index.
func NewRankIndex() *RankIndex {
	return &RankIndex{byID: make(map[ParticipantID]ScoreEntry)}
}

// Len returns the number of participants in the index.
func (x *RankIndex) Len() int { return len(x.byID) }

// Get returns the entry held for id.
func (x *RankIndex) Get(id ParticipantID) (ScoreEntry, bool) {
	e, ok := x.byID[id]
	return e, ok
}

// Upsert places e in the index, replacing any previous entry for the same participant.
func (x *RankIndex) Upsert(e ScoreEntry) {
	if old, ok := x.byID[e.ParticipantID]; ok {
		x.root = removeNode(x.root, old)
	}
	x.byID[e.ParticipantID] = e

	n := &rankNode{entry: e, priority: x.nextPriority(), size: 1}
	left, right := splitNodes(x.root, e)
	x.root = mergeNodes(mergeNodes(left, n), right)
}

// Remove drops the entry for id. It reports whether an entry was present.
func (x *RankIndex) Remove(id ParticipantID) bool {
	old, ok := x.byID[id]
	if !ok {
		return false
	}
	x.root = removeNode(x.root, old)
	delete(x.byID, id)
	return true
}

// Reset replaces the contents of the index with entries.
func (x *RankIndex) Reset(entries []ScoreEntry) {
	x.root = nil
	x.byID = make(map[ParticipantID]ScoreEntry, len(entries))
	for _, e := range entries {
		x.Upsert(e)
	}
}

// Rank returns the 1-based position of id, or 0 when id has no entry.
func (x *RankIndex) Rank(id ParticipantID) uint64 {
	e, ok := x.byID[id]
	if !ok {
		return 0
	}

	before := 0
	for n := x.root; n != nil; {
		switch {
		case n.entry.ParticipantID == e.ParticipantID:
			before += nodeSize(n.left)
			return uint64(before + 1)
		case Ranks(e, n.entry):
			n = n.left
		default:
			before += nodeSize(n.left) + 1
			n = n.right
		}
	}
	// byID and the tree disagree; treat as absent.
	return 0
}

// Top returns at most n entries in rank order.
func (x *RankIndex) Top(n int) []ScoreEntry {
	if n <= 0 || x.root == nil {
		return []ScoreEntry{}
	}
	if n > x.Len() {
		n = x.Len()
	}
	out := make([]ScoreEntry, 0, n)
	x.Ascend(func(_ uint64, e ScoreEntry) bool {
		out = append(out, e)
		return len(out) < n
	})
	return out
}

// Ascend calls fn for each entry in rank order until fn returns false.
func (x *RankIndex) Ascend(fn func(rank uint64, e ScoreEntry) bool) {
	stack := make([]*rankNode, 0, 32)
	var rank uint64
	n := x.root
	for n != nil || len(stack) > 0 {
		for n != nil {
			stack = append(stack, n)
			n = n.left
		}
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		rank++
		if !fn(rank, n.entry) {
			return
		}
		n = n.right
	}
}

// nextPriority is splitmix64 over an internal counter, so tree shape is reproducible.
func (x *RankIndex) nextPriority() uint64 {
	x.seed += 0x9e3779b97f4a7c15
	z := x.seed
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func nodeSize(n *rankNode) int {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *rankNode) recalc() {
	n.size = 1 + nodeSize(n.left) + nodeSize(n.right)
}

// splitNodes partitions t into entries that rank before e and the rest.
func splitNodes(t *rankNode, e ScoreEntry) (*rankNode, *rankNode) {
	if t == nil {
		return nil, nil
	}
	if Ranks(t.entry, e) {
		l, r := splitNodes(t.right, e)
		t.right = l
		t.recalc()
		return t, r
	}
	l, r := splitNodes(t.left, e)
	t.left = r
	t.recalc()
	return l, t
}

// mergeNodes joins a and b, where every entry of a ranks before every entry of b.
func mergeNodes(a, b *rankNode) *rankNode {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.priority > b.priority {
		a.right = mergeNodes(a.right, b)
		a.recalc()
		return a
	}
	b.left = mergeNodes(a, b.left)
	b.recalc()
	return b
}

func removeNode(t *rankNode, e ScoreEntry) *rankNode {
	if t == nil {
		return nil
	}
	if t.entry.ParticipantID == e.ParticipantID {
		return mergeNodes(t.left, t.right)
	}
	if Ranks(e, t.entry) {
		t.left = removeNode(t.left, e)
	} else {
		t.right = removeNode(t.right, e)
	}
	t.recalc()
	return t
}
