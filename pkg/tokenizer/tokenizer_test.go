package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenStrings(t *testing.T, tokenized *TokenizedText) []string {
	t.Helper()
	out := make([]string, len(tokenized.Tokens))
	for i, tok := range tokenized.Tokens {
		out[i] = tokenized.Text[tok.CharInterval.StartPos:tok.CharInterval.EndPos]
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty text",
			text: "",
			want: []string{},
		},
		{
			name: "whitespace only",
			text: "   \n\t ",
			want: []string{},
		},
		{
			name: "words and punctuation",
			text: "Hello, world!",
			want: []string{"Hello", ",", "world", "!"},
		},
		{
			name: "numbers split from words",
			text: "take 250 mg",
			want: []string{"take", "250", "mg"},
		},
		{
			name: "adjacent letter and digit runs split",
			text: "room4b",
			want: []string{"room", "4", "b"},
		},
		{
			name: "symbol runs grouped",
			text: "wait... what?!",
			want: []string{"wait", "...", "what", "?!"},
		},
		{
			name: "slash abbreviation is one token",
			text: "speed in m/s today",
			want: []string{"speed", "in", "m/s", "today"},
		},
		{
			name: "multi segment slash abbreviation",
			text: "24/7/365 uptime",
			want: []string{"24/7/365", "uptime"},
		},
		{
			name: "lone slash is punctuation",
			text: "either / or",
			want: []string{"either", "/", "or"},
		},
		{
			name: "unicode symbols tokenize",
			text: "a ␟ b",
			want: []string{"a", "␟", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			assert.Equal(t, tt.want, tokenStrings(t, got))
		})
	}
}

func TestTokenizeSpanFidelity(t *testing.T) {
	text := "Mrs. Jones (age 47) was seen on 2024/01/15.\nBP stable."
	tokenized := Tokenize(text)
	require.NotEmpty(t, tokenized.Tokens)

	prevEnd := 0
	for i, tok := range tokenized.Tokens {
		assert.Equal(t, i, tok.Index)
		assert.Less(t, tok.CharInterval.StartPos, tok.CharInterval.EndPos)
		assert.GreaterOrEqual(t, tok.CharInterval.StartPos, prevEnd, "tokens must not overlap")
		prevEnd = tok.CharInterval.EndPos
	}
	assert.LessOrEqual(t, prevEnd, len(text))
}

func TestTokenizeTypes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []TokenType
	}{
		{
			name: "mixed types",
			text: "dose 250 mg!",
			want: []TokenType{TokenWord, TokenNumber, TokenWord, TokenPunctuation},
		},
		{
			name: "slash abbreviation classified acronym",
			text: "m/s",
			want: []TokenType{TokenAcronym},
		},
		{
			name: "digit only acronym segments",
			text: "24/7",
			want: []TokenType{TokenAcronym},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			require.Len(t, got.Tokens, len(tt.want))
			for i, typ := range tt.want {
				assert.Equal(t, typ, got.Tokens[i].Type, "token %d", i)
			}
		})
	}
}

func TestTokenizeFirstTokenAfterNewline(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[int]bool
	}{
		{
			name: "newline gap flags next token",
			text: "first line\nsecond line",
			want: map[int]bool{2: true},
		},
		{
			name: "carriage return also flags",
			text: "one\rtwo",
			want: map[int]bool{1: true},
		},
		{
			name: "leading newline does not flag first token",
			text: "\nfirst",
			want: map[int]bool{},
		},
		{
			name: "spaces do not flag",
			text: "one  two",
			want: map[int]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			for i, tok := range got.Tokens {
				assert.Equal(t, tt.want[i], tok.FirstTokenAfterNewline, "token %d", i)
			}
		})
	}
}

func TestTokensText(t *testing.T) {
	text := "Patient was given 250 mg of amoxicillin."
	tokenized := Tokenize(text)

	t.Run("single token", func(t *testing.T) {
		got, err := TokensText(tokenized, TokenInterval{StartIndex: 3, EndIndex: 4})
		require.NoError(t, err)
		assert.Equal(t, "250", got)
	})

	t.Run("span preserves interior whitespace", func(t *testing.T) {
		got, err := TokensText(tokenized, TokenInterval{StartIndex: 3, EndIndex: 5})
		require.NoError(t, err)
		assert.Equal(t, "250 mg", got)
	})

	t.Run("full range", func(t *testing.T) {
		got, err := TokensText(tokenized, TokenInterval{StartIndex: 0, EndIndex: len(tokenized.Tokens)})
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	invalid := []struct {
		name     string
		interval TokenInterval
	}{
		{"negative start", TokenInterval{StartIndex: -1, EndIndex: 2}},
		{"end past tokens", TokenInterval{StartIndex: 0, EndIndex: 100}},
		{"empty interval", TokenInterval{StartIndex: 2, EndIndex: 2}},
		{"inverted interval", TokenInterval{StartIndex: 3, EndIndex: 1}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TokensText(tokenized, tt.interval)
			assert.ErrorIs(t, err, ErrInvalidTokenInterval)
		})
	}
}
