package cache

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("hello world", "HashEmbedder", `{"dimensions":64}`)
	b := Fingerprint("hello world", "HashEmbedder", `{"dimensions":64}`)
	if a != b {
		t.Errorf("identical triples produced different keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprint_DistinctTriplesDiffer(t *testing.T) {
	base := Fingerprint("hello", "HashEmbedder", `{"dimensions":64}`)
	tests := []struct {
		name string
		key  string
	}{
		{"different text", Fingerprint("goodbye", "HashEmbedder", `{"dimensions":64}`)},
		{"different type", Fingerprint("hello", "TFIDFEmbedder", `{"dimensions":64}`)},
		{"different config", Fingerprint("hello", "HashEmbedder", `{"dimensions":128}`)},
	}
	for _, tt := range tests {
		if tt.key == base {
			t.Errorf("%s: key collision with base", tt.name)
		}
	}
}

func TestFingerprint_ComponentsDoNotBleed(t *testing.T) {
	// The separator must keep (text="ab", type="c") distinct from
	// (text="a", type="bc").
	a := Fingerprint("ab", "c", "")
	b := Fingerprint("a", "bc", "")
	if a == b {
		t.Error("component boundary collision")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"line1\r\nline2", "line1\nline2"},
		{"\n\ttext\t\n", "text"},
		{"unchanged", "unchanged"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint_NormalizedTextsShareKeys(t *testing.T) {
	a := Fingerprint("hello\r\nworld", "HashEmbedder", "{}")
	b := Fingerprint("hello\nworld", "HashEmbedder", "{}")
	if a != b {
		t.Error("CRLF and LF variants of one text should share a key")
	}
}
