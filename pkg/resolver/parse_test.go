package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
)

func newJSONResolver(t *testing.T, fence bool) *Resolver {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FenceOutput = fence
	return New(cfg, nil)
}

func newYAMLResolver(t *testing.T, fence bool) *Resolver {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FenceOutput = fence
	cfg.Format = extraction.FormatYAML
	return New(cfg, nil)
}

func TestExtractAndParseContentFencing(t *testing.T) {
	r := newJSONResolver(t, true)

	t.Run("payload between fences", func(t *testing.T) {
		raw := "Here is the result:\n```json\n{\"extractions\": []}\n```\nDone."
		parsed, err := r.ExtractAndParseContent(raw)
		require.NoError(t, err)
		om, ok := parsed.(*OrderedMap)
		require.True(t, ok)
		assert.Equal(t, []string{"extractions"}, om.Keys())
	})

	t.Run("opening fence after closing fence", func(t *testing.T) {
		_, err := r.ExtractAndParseContent("``` before\n```json")
		assert.ErrorIs(t, err, ErrMissingFence)
	})

	t.Run("missing opening fence", func(t *testing.T) {
		_, err := r.ExtractAndParseContent("{\"extractions\": []}")
		assert.ErrorIs(t, err, ErrMissingFence)
	})

	t.Run("missing closing fence", func(t *testing.T) {
		_, err := r.ExtractAndParseContent("```json\n{\"extractions\": []}")
		assert.ErrorIs(t, err, ErrMissingFence)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := r.ExtractAndParseContent("")
		assert.ErrorIs(t, err, ErrMissingFence)
	})

	t.Run("fence disabled parses bare payload", func(t *testing.T) {
		bare := newJSONResolver(t, false)
		parsed, err := bare.ExtractAndParseContent("{\"extractions\": []}")
		require.NoError(t, err)
		_, ok := parsed.(*OrderedMap)
		assert.True(t, ok)
	})
}

func TestParseJSONPreservesOrderAndInts(t *testing.T) {
	r := newJSONResolver(t, false)

	parsed, err := r.ExtractAndParseContent(`{"zebra": 1, "apple": 2.5, "mango": "three", "nothing": null}`)
	require.NoError(t, err)
	om, ok := parsed.(*OrderedMap)
	require.True(t, ok)

	assert.Equal(t, []string{"zebra", "apple", "mango", "nothing"}, om.Keys())

	v, _ := om.Get("zebra")
	assert.Equal(t, 1, v, "integers must stay ints")
	v, _ = om.Get("apple")
	assert.Equal(t, 2.5, v)
	v, _ = om.Get("mango")
	assert.Equal(t, "three", v)
	v, _ = om.Get("nothing")
	assert.Nil(t, v)
}

func TestParseJSONRepair(t *testing.T) {
	r := newJSONResolver(t, false)

	// Unquoted keys, single quotes and a trailing comma, the usual model
	// output damage.
	parsed, err := r.ExtractAndParseContent(`{name: 'John', age: 30,}`)
	require.NoError(t, err)
	om, ok := parsed.(*OrderedMap)
	require.True(t, ok)

	assert.Equal(t, []string{"name", "age"}, om.Keys())
	v, _ := om.Get("name")
	assert.Equal(t, "John", v)
	v, _ = om.Get("age")
	assert.Equal(t, 30, v)
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	r := newJSONResolver(t, false)
	_, err := r.ExtractAndParseContent(`{"a": 1} {"b": 2}`)
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	r := newYAMLResolver(t, true)

	raw := "```yaml\nextractions:\n  - medication: aspirin\n    medication_index: 1\n  - dose: 100\n    ratio: 0.5\n    note: null\n```"
	parsed, err := r.ExtractAndParseContent(raw)
	require.NoError(t, err)

	om, ok := parsed.(*OrderedMap)
	require.True(t, ok)
	rawList, ok := om.Get("extractions")
	require.True(t, ok)
	list, ok := rawList.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)

	first, ok := list[0].(*OrderedMap)
	require.True(t, ok)
	assert.Equal(t, []string{"medication", "medication_index"}, first.Keys())
	v, _ := first.Get("medication_index")
	assert.Equal(t, 1, v)

	second, ok := list[1].(*OrderedMap)
	require.True(t, ok)
	v, _ = second.Get("dose")
	assert.Equal(t, 100, v)
	v, _ = second.Get("ratio")
	assert.Equal(t, 0.5, v)
	v, _ = second.Get("note")
	assert.Nil(t, v)
}

func TestNewParseError(t *testing.T) {
	content := "line one\nline two with \x01 control\nbad here"
	offset := int64(len("line one\nline two"))

	perr := newParseError(extraction.FormatJSON, content, offset, assert.AnError)

	assert.Equal(t, extraction.FormatJSON, perr.Format)
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, 9, perr.Column)
	assert.Equal(t, offset, perr.Offset)
	assert.Contains(t, perr.Context, "line two")
	assert.Equal(t, []int{23}, perr.ControlCharOffsets)
	assert.ErrorIs(t, perr, assert.AnError)
	assert.Contains(t, perr.Error(), "line 2 column 9")
}

func TestNewParseErrorAllowsCommonWhitespace(t *testing.T) {
	perr := newParseError(extraction.FormatJSON, "a\n\r\tb", 0, assert.AnError)
	assert.Empty(t, perr.ControlCharOffsets)
}

func TestOrderedMap(t *testing.T) {
	om := NewOrderedMap()
	om.Set("b", 1)
	om.Set("a", 2)
	om.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, om.Keys(), "repeated key keeps its original position")
	assert.Equal(t, 2, om.Len())

	v, ok := om.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	nested := NewOrderedMap()
	nested.Set("x", "y")
	om.Set("child", nested)
	om.Set("list", []any{nested, 1})

	plain := om.ToMap()
	assert.Equal(t, map[string]any{"x": "y"}, plain["child"])
	assert.Equal(t, []any{map[string]any{"x": "y"}, 1}, plain["list"])
}
