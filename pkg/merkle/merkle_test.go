package merkle

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"testing"
)

func h(parts ...[]byte) Hash {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return sha256.Sum256(buf)
}

func TestRoot(t *testing.T) {
	a, b, c := LeafHash([]byte("a")), LeafHash([]byte("b")), LeafHash([]byte("c"))
	ab := h(a[:], b[:])
	cc := h(c[:], c[:])

	tests := []struct {
		name   string
		leaves []Hash
		want   Hash
		ok     bool
	}{
		{"empty", nil, Hash{}, false},
		{"single leaf is root", []Hash{a}, a, true},
		{"pair", []Hash{a, b}, ab, true},
		{"odd duplicates last", []Hash{a, b, c}, h(ab[:], cc[:]), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Root(tt.leaves)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Root() = (%s, %v), want (%s, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLeafHash_KnownVector(t *testing.T) {
	got := LeafHash([]byte("abc")).String()
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("LeafHash(abc) = %s, want %s", got, want)
	}
}

func TestProof_VerifiesForEveryLeaf(t *testing.T) {
	for n := 1; n <= 17; n++ {
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fmt.Sprintf(`{"line": %d}`, i)
		}
		leaves := Leaves(lines)
		tree := NewTree(leaves)
		root, ok := tree.Root()
		if !ok {
			t.Fatalf("n=%d: no root", n)
		}
		for i, leaf := range leaves {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("n=%d i=%d: Proof() error = %v", n, i, err)
			}
			if !Verify(leaf, proof, root) {
				t.Errorf("n=%d i=%d: proof does not verify", n, i)
			}
		}
	}
}

func TestProof_SingleLeafIsEmpty(t *testing.T) {
	leaf := LeafHash([]byte("only"))
	proof, err := NewTree([]Hash{leaf}).Proof(0)
	if err != nil {
		t.Fatalf("Proof() error = %v", err)
	}
	if len(proof) != 0 {
		t.Errorf("expected empty proof, got %d steps", len(proof))
	}
	if !Verify(leaf, proof, leaf) {
		t.Error("empty proof should verify leaf == root")
	}
}

func TestProof_Directions(t *testing.T) {
	leaves := Leaves([]string{"a", "b", "c"})
	tree := NewTree(leaves)

	proof, _ := tree.Proof(2)
	if len(proof) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(proof))
	}
	if proof[0].Direction != Right || proof[0].Sibling != leaves[2] {
		t.Errorf("odd last leaf should pair with itself on the right, got %+v", proof[0])
	}
	if proof[1].Direction != Left {
		t.Errorf("second step direction = %s, want left", proof[1].Direction)
	}

	proof, _ = tree.Proof(1)
	if proof[0].Direction != Left || proof[0].Sibling != leaves[0] {
		t.Errorf("unexpected first step for index 1: %+v", proof[0])
	}
}

func TestProof_OutOfRange(t *testing.T) {
	tree := NewTree(Leaves([]string{"a", "b"}))
	for _, idx := range []int{-1, 2} {
		if _, err := tree.Proof(idx); err != ErrIndexOutOfRange {
			t.Errorf("Proof(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
	if _, err := NewTree(nil).Proof(0); err != ErrIndexOutOfRange {
		t.Errorf("empty tree Proof(0) error = %v", err)
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	leaves := Leaves([]string{"a", "b", "c", "d"})
	tree := NewTree(leaves)
	root, _ := tree.Root()
	proof, _ := tree.Proof(1)

	if Verify(LeafHash([]byte("x")), proof, root) {
		t.Error("wrong leaf verified")
	}

	flipped := append([]Step(nil), proof...)
	flipped[0].Direction = Right
	if Verify(leaves[1], flipped, root) {
		t.Error("flipped direction verified")
	}

	bad := append([]Step(nil), proof...)
	bad[1].Direction = "up"
	if Verify(leaves[1], bad, root) {
		t.Error("invalid direction verified")
	}
}

func TestParseHash(t *testing.T) {
	want := LeafHash([]byte("abc"))
	tests := []struct {
		in      string
		wantErr bool
	}{
		{want.String(), false},
		{"0x" + want.String(), false},
		{"  " + want.String() + "\n", false},
		{"abcd", true},
		{"zz" + want.String()[2:], true},
	}
	for _, tt := range tests {
		got, err := ParseHash(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHash(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != want {
			t.Errorf("ParseHash(%q) = %s", tt.in, got)
		}
	}
}

func TestStep_JSON(t *testing.T) {
	s := Step{Sibling: LeafHash([]byte("a")), Direction: Left}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"sibling":"` + s.Sibling.String() + `","direction":"left"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
