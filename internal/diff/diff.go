// Package diff computes line-level differences between two versions of a
// document and groups them into context-carrying hunks for display.
//
// The engine is deterministic and side-effect free. Small inputs get an
// optimal edit script from a full LCS table; inputs whose table would exceed
// the cell ceiling fall back to a linear greedy alignment that trades
// optimality for bounded cost, never correctness.
package diff

import "strings"

// Options configures diff computation.
type Options struct {
	// ContextLines is the number of unchanged lines to include
	// around each change for context. Default is 3.
	ContextLines int

	// MaxCells bounds the size of the LCS table as oldLen*newLen.
	// Pairs above the bound use the greedy approximation instead.
	// Default is 10,000,000. Set to 0 to use the default.
	MaxCells int
}

// DefaultOptions returns default diff options.
func DefaultOptions() Options {
	return Options{
		ContextLines: DefaultContextLines,
		MaxCells:     DefaultMaxCells,
	}
}

// Default limits for diff computation.
const (
	// DefaultContextLines is the default context width around changes.
	DefaultContextLines = 3

	// DefaultMaxCells is the default LCS table ceiling in cells.
	DefaultMaxCells = 10_000_000
)

// OpType classifies a single edit operation.
type OpType uint8

const (
	// OpEqual indicates a line present in both versions.
	OpEqual OpType = iota

	// OpInsert indicates a line present only in the new version.
	OpInsert

	// OpDelete indicates a line present only in the old version.
	OpDelete
)

// String returns a human-readable representation of the op type.
func (t OpType) String() string {
	switch t {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single edit operation. OldIndex and NewIndex are 0-based line
// indices into the old and new sequences; -1 marks the side that does not
// participate (inserts have no old index, deletes no new index).
type Op struct {
	Type     OpType
	OldIndex int
	NewIndex int
}

// Split breaks text into the line sequence the engine diffs over.
// The split is exact: a trailing newline produces an ordinary empty
// trailing line, and empty text is a single empty line.
func Split(text string) []string {
	return strings.Split(text, "\n")
}

// Lines computes an ordered edit script transforming old into new.
//
// The script is dense: replaying equal and insert ops reproduces the new
// sequence, equal and delete ops the old. Within any changed gap, deletes
// precede inserts.
func Lines(old, new []string, opts Options) []Op {
	if sameLines(old, new) {
		ops := make([]Op, len(old))
		for i := range old {
			ops[i] = Op{Type: OpEqual, OldIndex: i, NewIndex: i}
		}
		return ops
	}

	maxCells := opts.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	var anchors []anchor
	if len(old)*len(new) <= maxCells {
		anchors = lcsAnchors(old, new)
	} else {
		anchors = greedyAnchors(old, new)
	}

	return opsFromAnchors(anchors, len(old), len(new))
}

// sameLines reports whether the two sequences are pairwise identical.
func sameLines(old, new []string) bool {
	if len(old) != len(new) {
		return false
	}
	for i := range old {
		if old[i] != new[i] {
			return false
		}
	}
	return true
}

// anchor is one matched line pair of a common subsequence.
// Anchor sequences are strictly increasing in both coordinates.
type anchor struct {
	old int
	new int
}

// lcsAnchors recovers an optimal common subsequence via a full
// dynamic-programming table and a backtrack from the far corner.
func lcsAnchors(old, new []string) []anchor {
	n := len(old)
	m := len(new)
	if n == 0 || m == 0 {
		return nil
	}

	// table[i*(m+1)+j] is the LCS length of old[:i] and new[:j].
	table := make([]int32, (n+1)*(m+1))
	w := m + 1
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if old[i-1] == new[j-1] {
				table[i*w+j] = table[(i-1)*w+j-1] + 1
			} else if table[(i-1)*w+j] >= table[i*w+j-1] {
				table[i*w+j] = table[(i-1)*w+j]
			} else {
				table[i*w+j] = table[i*w+j-1]
			}
		}
	}

	var anchors []anchor
	i, j := n, m
	for i > 0 && j > 0 {
		switch {
		case old[i-1] == new[j-1]:
			anchors = append(anchors, anchor{old: i - 1, new: j - 1})
			i--
			j--
		case table[(i-1)*w+j] >= table[i*w+j-1]:
			i--
		default:
			j--
		}
	}

	// Backtracking built the sequence in reverse.
	for a, b := 0, len(anchors)-1; a < b; a, b = a+1, b-1 {
		anchors[a], anchors[b] = anchors[b], anchors[a]
	}
	return anchors
}

// greedyAnchors approximates a common subsequence in linear time and
// memory. New-line content is indexed to its position list; each old line
// matches the earliest unconsumed occurrence strictly after the previous
// match. The result may miss common lines but is always monotonic.
func greedyAnchors(old, new []string) []anchor {
	positions := make(map[string][]int, len(new))
	for j, line := range new {
		positions[line] = append(positions[line], j)
	}

	// cursor[line] is the index of the first unconsumed position.
	cursor := make(map[string]int, len(positions))

	var anchors []anchor
	prev := -1
	for i, line := range old {
		idxs, ok := positions[line]
		if !ok {
			continue
		}
		c := cursor[line]
		for c < len(idxs) && idxs[c] <= prev {
			c++
		}
		if c >= len(idxs) {
			cursor[line] = c
			continue
		}
		anchors = append(anchors, anchor{old: i, new: idxs[c]})
		prev = idxs[c]
		cursor[line] = c + 1
	}
	return anchors
}

// opsFromAnchors expands an anchor sequence into the dense edit script.
// Old lines between anchors become deletes, new lines inserts; deletes are
// emitted before inserts within each gap so renumbering stays stable.
func opsFromAnchors(anchors []anchor, oldLen, newLen int) []Op {
	ops := make([]Op, 0, oldLen+newLen)
	oi, ni := 0, 0
	for _, a := range anchors {
		for ; oi < a.old; oi++ {
			ops = append(ops, Op{Type: OpDelete, OldIndex: oi, NewIndex: -1})
		}
		for ; ni < a.new; ni++ {
			ops = append(ops, Op{Type: OpInsert, OldIndex: -1, NewIndex: ni})
		}
		ops = append(ops, Op{Type: OpEqual, OldIndex: a.old, NewIndex: a.new})
		oi = a.old + 1
		ni = a.new + 1
	}
	for ; oi < oldLen; oi++ {
		ops = append(ops, Op{Type: OpDelete, OldIndex: oi, NewIndex: -1})
	}
	for ; ni < newLen; ni++ {
		ops = append(ops, Op{Type: OpInsert, OldIndex: -1, NewIndex: ni})
	}
	return ops
}
