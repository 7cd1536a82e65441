package anchor

import (
	"fmt"

	"candela-hq/guardian/pkg/merkle"
)

// InclusionProof shows that one audit line is part of an anchored batch.
type InclusionProof struct {
	Line  int           `json:"line"`
	Entry string        `json:"entry"`
	Leaf  merkle.Hash   `json:"leaf"`
	Steps []merkle.Step `json:"proof"`

	// Root is recomputed from the log. For an anchored line it should equal
	// Batch.Root; Verified says whether it does.
	Root     merkle.Hash   `json:"root"`
	Batch    *LedgerRecord `json:"batch,omitempty"`
	Anchored bool          `json:"anchored"`
	Verified bool          `json:"verified"`
}

// Prove builds the inclusion proof for the 1-based line. When the line was
// anchored the tree covers exactly its batch. Otherwise the tree covers the
// pending lines after the last anchored batch, which is the root the next
// pass would submit.
func Prove(lines []string, records []LedgerRecord, line int) (*InclusionProof, error) {
	if line < 1 || line > len(lines) {
		return nil, fmt.Errorf("line %d out of range (log has %d lines)", line, len(lines))
	}

	start, end := lastEndLine(records)+1, len(lines)
	batch := BatchFor(records, line)
	if batch != nil {
		if batch.EndLine > len(lines) {
			return nil, fmt.Errorf("%w: batch ends at line %d, log has %d", ErrLogTruncated, batch.EndLine, len(lines))
		}
		start, end = batch.StartLine, batch.EndLine
	} else if line < start {
		// Covered by no batch but older than the last one: a gap in the
		// ledger. Prove against the whole log prefix instead.
		start = 1
	}

	tree := merkle.NewTree(merkle.Leaves(lines[start-1 : end]))
	steps, err := tree.Proof(line - start)
	if err != nil {
		return nil, err
	}
	root, _ := tree.Root()

	p := &InclusionProof{
		Line:     line,
		Entry:    lines[line-1],
		Leaf:     merkle.LeafHash([]byte(lines[line-1])),
		Steps:    steps,
		Root:     root,
		Batch:    batch,
		Anchored: batch != nil,
	}
	if batch != nil {
		p.Verified = batch.Root == root.String() && merkle.Verify(p.Leaf, steps, root)
	}
	return p, nil
}
