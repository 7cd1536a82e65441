package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("failed to decode %q: %v", s, err)
	}
	return v
}

func TestMarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "sorted keys",
			input: `{"b":1,"a":2}`,
			want:  `{"a": 2, "b": 1}`,
		},
		{
			name:  "nested objects sorted recursively",
			input: `{"z":{"y":true,"x":null},"a":[3,{"d":"e","c":"f"}]}`,
			want:  `{"a": [3, {"c": "f", "d": "e"}], "z": {"x": null, "y": true}}`,
		},
		{
			name:  "non-ascii kept as utf-8",
			input: `{"title":"Übersicht – naïve"}`,
			want:  `{"title": "Übersicht – naïve"}`,
		},
		{
			name:  "html characters not escaped",
			input: `{"p":"<a href='x'>&</a>"}`,
			want:  `{"p": "<a href='x'>&</a>"}`,
		},
		{
			name:  "control characters escaped",
			input: `{"s":"a\nb\tc\u0001"}`,
			want:  `{"s": "a\nb\tc\u0001"}`,
		},
		{
			name:  "quotes and backslashes",
			input: `{"re":"\\b\\d{3}\"x"}`,
			want:  `{"re": "\\b\\d{3}\"x"}`,
		},
		{
			name:  "integers verbatim",
			input: `{"n":12345678901234567890}`,
			want:  `{"n": 12345678901234567890}`,
		},
		{
			name:  "floats in shortest form",
			input: `[0.80, 1.0, 0.5, 1e-05, 1e16, 123456.0]`,
			want:  `[0.8, 1.0, 0.5, 1e-05, 1e+16, 123456.0]`,
		},
		{
			name:  "empty containers",
			input: `{"a":{},"b":[]}`,
			want:  `{"a": {}, "b": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(decode(t, tt.input))
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMarshal_Struct(t *testing.T) {
	type record struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
		ID    int     `json:"id"`
	}

	got, err := Marshal(record{Name: "baseline", Score: 0.5, ID: 7})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"id": 7, "name": "baseline", "score": 0.5}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestHash_KeyOrderIndependent(t *testing.T) {
	a, err := Hash(decode(t, `{"name":"x","directives":[{"id":1,"tier":"BLOCK"}]}`))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := Hash(decode(t, `{"directives":[{"tier":"BLOCK","id":1}],"name":"x"}`))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a != b {
		t.Errorf("hashes differ for reordered keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
}

func TestHash_MatchesDigestOfMarshal(t *testing.T) {
	v := decode(t, `{"k":"v"}`)
	sum := sha256.Sum256([]byte(`{"k": "v"}`))
	want := hex.EncodeToString(sum[:])

	got, err := Hash(v)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if got != want {
		t.Errorf("Hash() = %s, want %s", got, want)
	}
}

func TestHashBytes(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{
			name:    "empty content still hashed",
			content: nil,
			want:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:    "hello world",
			content: []byte("hello world"),
			want:    "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashBytes(tt.content); got != tt.want {
				t.Errorf("HashBytes() = %v, want %v", got, tt.want)
			}
		})
	}
}
