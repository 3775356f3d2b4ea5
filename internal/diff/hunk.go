package diff

// LineKind classifies a line within a hunk.
type LineKind uint8

const (
	// LineContext is an unchanged line shown for orientation.
	LineContext LineKind = iota

	// LineAdded is a line present only in the new version.
	LineAdded

	// LineRemoved is a line present only in the old version.
	LineRemoved
)

// String returns the unified-diff marker for the kind.
func (k LineKind) String() string {
	switch k {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// HunkLine is one display line of a hunk. OldLine and NewLine are 1-based
// line numbers; 0 marks the side the line does not exist on.
type HunkLine struct {
	Kind    LineKind
	Text    string
	OldLine int
	NewLine int
}

// Hunk is a contiguous block of changes plus surrounding context.
// OldStart and NewStart are the 1-based first line numbers of the hunk in
// each sequence; the counts are per-side line totals.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []HunkLine
}

// Result contains the complete result of a diff operation.
type Result struct {
	// Hunks are the grouped changes, in document order.
	Hunks []Hunk

	// OldLineCount is the total line count in the old text.
	OldLineCount int

	// NewLineCount is the total line count in the new text.
	NewLineCount int
}

// HasChanges returns true if there are any differences.
func (r Result) HasChanges() bool {
	return len(r.Hunks) > 0
}

// AddedLines returns the total number of added lines.
func (r Result) AddedLines() int {
	count := 0
	for _, h := range r.Hunks {
		for _, l := range h.Lines {
			if l.Kind == LineAdded {
				count++
			}
		}
	}
	return count
}

// RemovedLines returns the total number of removed lines.
func (r Result) RemovedLines() int {
	count := 0
	for _, h := range r.Hunks {
		for _, l := range h.Lines {
			if l.Kind == LineRemoved {
				count++
			}
		}
	}
	return count
}

// Build groups an edit script into hunks with contextLines of unchanged
// context on each flank. Change ranges whose expanded context regions touch
// or overlap merge into a single hunk, so two context blocks never cover
// contiguous lines. An all-equal script produces no hunks.
func Build(ops []Op, old, new []string, contextLines int) []Hunk {
	if contextLines < 0 {
		contextLines = 0
	}

	type span struct{ start, end int } // inclusive op-index range
	var spans []span
	for i := 0; i < len(ops); i++ {
		if ops[i].Type == OpEqual {
			continue
		}
		j := i
		for j+1 < len(ops) && ops[j+1].Type != OpEqual {
			j++
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := j + contextLines
		if end > len(ops)-1 {
			end = len(ops) - 1
		}
		if len(spans) > 0 && start <= spans[len(spans)-1].end+1 {
			spans[len(spans)-1].end = end
		} else {
			spans = append(spans, span{start: start, end: end})
		}
		i = j
	}
	if len(spans) == 0 {
		return nil
	}

	hunks := make([]Hunk, 0, len(spans))
	for _, s := range spans {
		hunks = append(hunks, buildHunk(ops[s.start:s.end+1], old, new))
	}
	return hunks
}

// buildHunk materializes one hunk from its op range.
func buildHunk(ops []Op, old, new []string) Hunk {
	h := Hunk{
		OldStart: startLine(ops, len(old), func(op Op) int { return op.OldIndex }),
		NewStart: startLine(ops, len(new), func(op Op) int { return op.NewIndex }),
	}
	h.Lines = make([]HunkLine, 0, len(ops))
	for _, op := range ops {
		switch op.Type {
		case OpEqual:
			h.Lines = append(h.Lines, HunkLine{
				Kind:    LineContext,
				Text:    old[op.OldIndex],
				OldLine: op.OldIndex + 1,
				NewLine: op.NewIndex + 1,
			})
			h.OldCount++
			h.NewCount++
		case OpDelete:
			h.Lines = append(h.Lines, HunkLine{
				Kind:    LineRemoved,
				Text:    old[op.OldIndex],
				OldLine: op.OldIndex + 1,
			})
			h.OldCount++
		case OpInsert:
			h.Lines = append(h.Lines, HunkLine{
				Kind:    LineAdded,
				Text:    new[op.NewIndex],
				NewLine: op.NewIndex + 1,
			})
			h.NewCount++
		}
	}
	return h
}

// startLine resolves a hunk's 1-based start on one side: the first op in
// the range carrying that side's index, or one past the sequence end when
// the hunk touches that side nowhere (a pure insert or pure delete block).
func startLine(ops []Op, seqLen int, index func(Op) int) int {
	for _, op := range ops {
		if idx := index(op); idx >= 0 {
			return idx + 1
		}
	}
	return seqLen + 1
}

// Compare diffs two line sequences and groups the result into hunks.
func Compare(old, new []string, opts Options) Result {
	ops := Lines(old, new, opts)
	return Result{
		Hunks:        Build(ops, old, new, opts.ContextLines),
		OldLineCount: len(old),
		NewLineCount: len(new),
	}
}

// Strings diffs two documents by their line content.
func Strings(oldText, newText string, opts Options) Result {
	return Compare(Split(oldText), Split(newText), opts)
}
