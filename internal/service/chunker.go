package service

import (
	"fmt"
	"strings"
)

// ChunkText splits text into overlapping sliding windows. Each window is
// trimmed and empty windows are dropped; a chunk's position in the result is
// its stable index. Requires size > overlap >= 0 so the window always
// advances.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be >= 0, got %d", overlap)
	}
	if size <= overlap {
		return nil, fmt.Errorf("chunk size must be greater than overlap, got size=%d overlap=%d", size, overlap)
	}

	var chunks []string
	step := size - overlap
	for i := 0; i < len(text); i += step {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		if chunk := strings.TrimSpace(text[i:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}
