package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/textanchor/pkg/tokenizer"
)

func TestNewDocument(t *testing.T) {
	t.Run("explicit id kept", func(t *testing.T) {
		doc := NewDocument("report-7", "text")
		assert.Equal(t, "report-7", doc.DocumentID)
		assert.Equal(t, "text", doc.Text)
	})

	t.Run("empty id generated", func(t *testing.T) {
		doc := NewDocument("", "text")
		assert.Regexp(t, `^doc_[0-9a-f-]{8}$`, doc.DocumentID)
	})

	t.Run("generated ids differ", func(t *testing.T) {
		a := NewDocument("", "text")
		b := NewDocument("", "text")
		assert.NotEqual(t, a.DocumentID, b.DocumentID)
	})
}

func TestExtractionAligned(t *testing.T) {
	ext := &Extraction{ExtractionText: "x"}
	assert.False(t, ext.Aligned())

	ext.AlignmentStatus = MatchFuzzy
	assert.True(t, ext.Aligned())
}

func TestSliceSource(t *testing.T) {
	chunks := []TextChunk{
		{DocumentID: "a", Text: "one"},
		{DocumentID: "a", Text: "two", CharOffset: 4, TokenOffset: 1},
	}
	src := NewSliceSource(chunks)
	ctx := context.Background()

	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", first.Text)

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", second.Text)
	assert.Equal(t, 4, second.CharOffset)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrDone)

	t.Run("reset replays from the start", func(t *testing.T) {
		require.NoError(t, src.Reset())
		again, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "one", again.Text)
	})

	t.Run("cancelled context stops iteration", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := src.Next(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtractionIntervals(t *testing.T) {
	ext := &Extraction{
		ExtractionClass: "medication",
		ExtractionText:  "aspirin",
		TokenInterval:   &tokenizer.TokenInterval{StartIndex: 2, EndIndex: 3},
		CharInterval:    &tokenizer.CharInterval{StartPos: 10, EndPos: 17},
		AlignmentStatus: MatchExact,
	}
	assert.True(t, ext.Aligned())
	assert.Equal(t, 7, ext.CharInterval.EndPos-ext.CharInterval.StartPos)
}
