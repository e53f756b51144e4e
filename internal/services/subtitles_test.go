package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/models"
)

func TestCaptionWords(t *testing.T) {
	tracks := []models.GenerationResult{
		{Text: "one two", TimeRange: "00:02-00:04", Duration: 1.0},
		{Text: "   "},
		{Text: "three", TimeRange: "", Duration: 0},
	}

	words := CaptionWords(tracks)

	require.Len(t, words, 3)
	assert.Equal(t, WordTimestamp{Word: "one", Start: 2, End: 2.5}, words[0])
	assert.Equal(t, WordTimestamp{Word: "two", Start: 2.5, End: 3}, words[1])
	assert.Equal(t, "three", words[2].Word)
	assert.Equal(t, 0.0, words[2].Start)
	assert.InDelta(t, mockWordSeconds, words[2].End, 1e-9)
}

func TestChunkWords(t *testing.T) {
	words := MockWordTimestamps("Hi there. This hoodie has seen things you would not believe", 0)
	chunks := chunkWords(words, wordsPerChunk)

	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0], 2) // sentence end after "there."
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), wordsPerChunk)
	}
}

func TestBuildASSSubtitles(t *testing.T) {
	_, err := BuildASSSubtitles(nil, 1080, 1920, 0)
	require.Error(t, err)

	doc, err := BuildASSSubtitles(MockWordTimestamps("link in bio", 0), 1080, 1920, 0.5)
	require.NoError(t, err)

	assert.Contains(t, doc, "PlayResX: 1080\n")
	assert.Contains(t, doc, "PlayResY: 1920\n")
	assert.Equal(t, 3, strings.Count(doc, "Dialogue: "))
	assert.Contains(t, doc, "Dialogue: 0,0:00:00.50,0:00:00.90,Default,,0,0,0,,{\\3c&H00CC3299\\bord8}LINK{\\r} IN BIO")
}

func TestWriteASSSubtitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions", "run.ass")
	require.NoError(t, WriteASSSubtitles(MockWordTimestamps("hello", 0), Preset("twitter"), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PlayResX: 1280")
}

func TestFormatASSTime(t *testing.T) {
	assert.Equal(t, "0:00:00.00", formatASSTime(-1))
	assert.Equal(t, "0:01:05.25", formatASSTime(65.25))
	assert.Equal(t, "1:00:00.00", formatASSTime(3600))
}
