// Package extract turns raw documents into validated structured payloads via
// the external extraction dependency, with content-addressed caching.
package extract

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

const maxDocumentBytes = 1 << 20

// Document is the preprocessed form of one raw acquisition: readable text
// plus the content fingerprint used for cache addressing.
type Document struct {
	Text        string
	Fingerprint []byte
}

// Preprocess reduces a raw HTML document to readable text and fingerprints
// it. Plain-text input passes through cleanup only. An empty result is an
// input error: there is nothing the extractor could work with.
func Preprocess(raw, sourceURL string) (Document, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Document{}, fmt.Errorf("document is empty")
	}
	if len(trimmed) > maxDocumentBytes {
		return Document{}, fmt.Errorf("document too large: %d bytes (max %d)", len(trimmed), maxDocumentBytes)
	}

	text := trimmed
	if looksLikeHTML(trimmed) {
		extracted, err := readableText(trimmed, sourceURL)
		if err == nil && extracted != "" {
			text = extracted
		}
	}

	text = collapseWhitespace(text)
	if text == "" {
		return Document{}, fmt.Errorf("document reduced to empty text")
	}

	sum := sha256.Sum256([]byte(text))
	return Document{
		Text:        text,
		Fingerprint: sum[:],
	}, nil
}

func looksLikeHTML(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "<html") ||
		strings.Contains(lowered, "<!doctype") ||
		strings.Contains(lowered, "<body") ||
		strings.Contains(lowered, "<div")
}

func readableText(html, sourceURL string) (string, error) {
	pageURL, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		pageURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := strings.TrimSpace(rendered.String())
	if text == "" {
		text = strings.TrimSpace(article.Excerpt())
	}
	return text, nil
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
