package texthash

import (
	"testing"
)

func TestHash64(t *testing.T) {
	if Hash64("") != 0 {
		t.Error("empty input must map to sentinel 0")
	}

	a := Hash64("the quick brown fox")
	b := Hash64("the quick brown fox")
	if a != b {
		t.Errorf("hash not stable: %d vs %d", a, b)
	}
	if a == 0 {
		t.Error("non-empty input must not produce the sentinel")
	}

	if Hash64("the quick brown fox") == Hash64("the quick brown dog") {
		t.Error("distinct inputs should not collide in this fixture")
	}
}

func TestSHA256Hex(t *testing.T) {
	if SHA256Hex("") != "" {
		t.Error("empty input must map to sentinel \"\"")
	}

	// Known vector for "abc".
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := SHA256Hex("abc"); got != want {
		t.Errorf("SHA256Hex(\"abc\") = %s, want %s", got, want)
	}

	digest := SHA256Hex("review body text")
	if len(digest) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(digest))
	}
	if digest != SHA256Hex("review body text") {
		t.Error("digest not deterministic")
	}
}
