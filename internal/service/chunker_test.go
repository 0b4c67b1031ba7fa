package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_SlidingWindow(t *testing.T) {
	chunks, err := ChunkText("abcdefghij", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij", "j"}, chunks)
}

func TestChunkText_NoOverlap(t *testing.T) {
	chunks, err := ChunkText("abcdef", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cd", "ef"}, chunks)
}

func TestChunkText_EmptyInput(t *testing.T) {
	chunks, err := ChunkText("", 4, 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkText_DropsWhitespaceOnlyWindows(t *testing.T) {
	chunks, err := ChunkText("ab        cd", 4, 0)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestChunkText_RejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "overlap equals size", size: 4, overlap: 4},
		{name: "overlap exceeds size", size: 4, overlap: 5},
		{name: "negative overlap", size: 4, overlap: -1},
		{name: "zero size", size: 0, overlap: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChunkText("abcdefghij", tt.size, tt.overlap)
			require.Error(t, err)
		})
	}
}

func TestChunkText_ReassemblyCoversInput(t *testing.T) {
	const text = "the quick brown fox jumps over the lazy dog"
	size, overlap := 10, 3

	chunks, err := ChunkText(text, size, overlap)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Dropping the overlapping tail of each chunk reconstructs the input.
	// Trimming makes exact reassembly lossy at whitespace boundaries, so
	// check coverage instead: every chunk appears in the input in order.
	offset := 0
	for _, c := range chunks {
		idx := strings.Index(text[offset:], c)
		require.GreaterOrEqual(t, idx, 0, "chunk %q not found after offset %d", c, offset)
		offset += idx
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	const text = "some document text worth splitting into chunks"
	a, err := ChunkText(text, 12, 4)
	require.NoError(t, err)
	b, err := ChunkText(text, 12, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
