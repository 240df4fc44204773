package extract

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreprocessRejectsEmptyDocuments(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "\n\t\n"} {
		if _, err := Preprocess(raw, ""); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestPreprocessFingerprintIsStable(t *testing.T) {
	t.Parallel()

	first, err := Preprocess("Annual  Developer\nSummit 2026", "")
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	second, err := Preprocess("Annual Developer Summit 2026", "")
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}

	if first.Text != second.Text {
		t.Fatalf("whitespace variants must normalize identically: %q vs %q", first.Text, second.Text)
	}
	if !bytes.Equal(first.Fingerprint, second.Fingerprint) {
		t.Fatalf("equal text must produce equal fingerprints")
	}
	if len(first.Fingerprint) != 32 {
		t.Fatalf("expected a sha-256 fingerprint, got %d bytes", len(first.Fingerprint))
	}
}

func TestPreprocessDistinctContentDistinctFingerprints(t *testing.T) {
	t.Parallel()

	a, err := Preprocess("first document", "")
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	b, err := Preprocess("second document", "")
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if bytes.Equal(a.Fingerprint, b.Fingerprint) {
		t.Fatalf("different content must not collide")
	}
}

func TestPreprocessRejectsOversizedDocuments(t *testing.T) {
	t.Parallel()

	raw := strings.Repeat("a", maxDocumentBytes+1)
	if _, err := Preprocess(raw, ""); err == nil {
		t.Fatalf("expected an error for oversized input")
	}
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	if !looksLikeHTML("<!DOCTYPE html><html><body>hi</body></html>") {
		t.Fatalf("full document must be detected as HTML")
	}
	if looksLikeHTML("plain text announcement with no markup") {
		t.Fatalf("plain text must not be detected as HTML")
	}
}
