package fingerprint

import (
	"regexp"
	"testing"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestContent(t *testing.T) {
	t.Run("deterministic hex", func(t *testing.T) {
		h := Content("hello world")
		if !hexRe.MatchString(h) {
			t.Fatalf("not a sha256 hex digest: %q", h)
		}
		if h != Content("hello world") {
			t.Fatal("hash not deterministic")
		}
	})

	t.Run("normalization-invariant", func(t *testing.T) {
		a := Content("line one\r\nline two\n\n\n\nend")
		b := Content("line one\nline two\n\nend")
		if a != b {
			t.Fatal("cosmetic differences changed the fingerprint")
		}
	})

	t.Run("content changes hash", func(t *testing.T) {
		if Content("alpha") == Content("beta") {
			t.Fatal("different content produced same fingerprint")
		}
	})
}

func TestRaw(t *testing.T) {
	if Raw("a\r\nb") == Raw("a\nb") {
		t.Fatal("Raw should be byte-sensitive")
	}
	if !hexRe.MatchString(Raw("x")) {
		t.Fatal("not hex")
	}
}
