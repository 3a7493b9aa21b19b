// Package translator defines the translation capability used by the
// pipeline and its chat-model backed implementation.
package translator

import (
	"context"
	"strings"
)

// Translator translates a list of strings into targetLang. The result has
// the same length as texts; an empty string marks a per-string failure.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLang string) ([]string, error)
}

// BatchSeparator is the delimiter used to separate text blocks in a batch for translation
const BatchSeparator = "\n---BLOCK_SEPARATOR---\n"

// DefaultContextWindow is the default context window size in characters
const DefaultContextWindow = 4000

// MergeBatches groups text indices into batches whose joined length,
// separators included, stays within window. A text at least as long as
// the window gets a batch of its own. Every index appears exactly once,
// in order.
func MergeBatches(texts []string, window int) [][]int {
	if len(texts) == 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultContextWindow
	}

	var batches [][]int
	var current []int
	size := 0
	for i, text := range texts {
		n := len(text)
		if n >= window {
			if len(current) > 0 {
				batches = append(batches, current)
				current, size = nil, 0
			}
			batches = append(batches, []int{i})
			continue
		}

		add := n
		if len(current) > 0 {
			add += len(BatchSeparator)
		}
		if size+add > window {
			batches = append(batches, current)
			current, size = []int{i}, n
			continue
		}
		current = append(current, i)
		size += add
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// JoinBatch combines the texts of one batch with BatchSeparator.
func JoinBatch(texts []string, batch []int) string {
	parts := make([]string, len(batch))
	for i, idx := range batch {
		parts[i] = texts[idx]
	}
	return strings.Join(parts, BatchSeparator)
}

// SplitBatch splits a translated batch back into n parts. It reports false
// when the model did not keep exactly n-1 separators.
func SplitBatch(translated string, n int) ([]string, bool) {
	parts := strings.Split(translated, strings.TrimSpace(BatchSeparator))
	if len(parts) != n {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// MapTranslator serves translations from a fixed table. Strings without an
// entry come back empty.
type MapTranslator map[string]string

// Translate implements Translator.
func (m MapTranslator) Translate(ctx context.Context, texts []string, _ string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = m[strings.TrimSpace(text)]
	}
	return out, nil
}
