package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size is the length of a hash in bytes.
const Size = sha256.Size

// Hash is a SHA-256 digest. It marshals as lowercase hex.
type Hash [Size]byte

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a hex digest, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != Size {
		return h, fmt.Errorf("invalid hash %q: want %d bytes, got %d", s, Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// LeafHash hashes one raw log line.
func LeafHash(line []byte) Hash {
	return sha256.Sum256(line)
}

// Leaves hashes each line.
func Leaves(lines []string) []Hash {
	out := make([]Hash, len(lines))
	for i, l := range lines {
		out[i] = LeafHash([]byte(l))
	}
	return out
}

func parent(left, right Hash) Hash {
	var buf [2 * Size]byte
	copy(buf[:Size], left[:])
	copy(buf[Size:], right[:])
	return sha256.Sum256(buf[:])
}

// Root computes the root of leaves. ok is false when leaves is empty.
func Root(leaves []Hash) (root Hash, ok bool) {
	return NewTree(leaves).Root()
}

// Tree keeps every level so proofs can be extracted without rehashing.
type Tree struct {
	levels [][]Hash
}

// NewTree builds a tree over leaves. The slice is not retained.
func NewTree(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	levels := [][]Hash{level}

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, parent(level[i], right))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Root returns the tree root. ok is false for an empty tree.
func (t *Tree) Root() (Hash, bool) {
	if len(t.levels) == 0 {
		return Hash{}, false
	}
	return t.levels[len(t.levels)-1][0], true
}

// Direction says on which side of the running hash a sibling is placed.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// Step is one level of an inclusion proof.
type Step struct {
	Sibling   Hash      `json:"sibling"`
	Direction Direction `json:"direction"`
}

// ErrIndexOutOfRange is returned by Proof for an index outside the tree.
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// Proof returns the sibling path from leaf index (0-based) to the root.
// A single-leaf tree has an empty proof.
func (t *Tree) Proof(index int) ([]Step, error) {
	if index < 0 || index >= t.Len() {
		return nil, ErrIndexOutOfRange
	}
	steps := make([]Step, 0, len(t.levels)-1)
	idx := index
	for _, level := range t.levels[:len(t.levels)-1] {
		if idx%2 == 0 {
			sib := idx
			if idx+1 < len(level) {
				sib = idx + 1
			}
			steps = append(steps, Step{Sibling: level[sib], Direction: Right})
		} else {
			steps = append(steps, Step{Sibling: level[idx-1], Direction: Left})
		}
		idx /= 2
	}
	return steps, nil
}

// Verify replays proof from leaf and reports whether it arrives at root.
func Verify(leaf Hash, proof []Step, root Hash) bool {
	cur := leaf
	for _, s := range proof {
		switch s.Direction {
		case Left:
			cur = parent(s.Sibling, cur)
		case Right:
			cur = parent(cur, s.Sibling)
		default:
			return false
		}
	}
	return cur == root
}
