// Package tokenizer splits text into typed, offset-tagged tokens and
// detects sentence boundaries. Token boundaries are what the aligner uses
// to anchor extractions back onto source text, so the scanning rules here
// must stay stable: alternation is leftmost-first over slash-joined
// alphanumeric runs, letter runs, digit runs, and symbol runs.
package tokenizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidTokenInterval is returned when a token interval is out of
	// range or empty.
	ErrInvalidTokenInterval = errors.New("invalid token interval")

	// ErrSentenceRange is returned when a sentence start index is out of
	// range.
	ErrSentenceRange = errors.New("sentence start index out of range")
)

// TokenType classifies a token produced by Tokenize.
type TokenType int

const (
	// TokenWord is an alphabetic word token.
	TokenWord TokenType = iota
	// TokenNumber is an all-digit token.
	TokenNumber
	// TokenPunctuation is a run of symbol characters.
	TokenPunctuation
	// TokenAcronym is a slash-joined alphanumeric run such as "m/s".
	TokenAcronym
)

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	switch t {
	case TokenWord:
		return "word"
	case TokenNumber:
		return "number"
	case TokenPunctuation:
		return "punctuation"
	case TokenAcronym:
		return "acronym"
	default:
		return fmt.Sprintf("tokentype(%d)", int(t))
	}
}

// CharInterval is a half-open range of character offsets into some fixed
// text.
type CharInterval struct {
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`
}

// TokenInterval is a half-open range of indices into a token sequence.
type TokenInterval struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// Token is one unit produced by Tokenize. It references, never copies, a
// span of the original text via its CharInterval.
type Token struct {
	Index                  int          `json:"index"`
	Type                   TokenType    `json:"type"`
	CharInterval           CharInterval `json:"char_interval"`
	FirstTokenAfterNewline bool         `json:"first_token_after_newline"`
}

// TokenizedText owns the token list for one piece of text.
type TokenizedText struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

const (
	lettersPattern     = `[A-Za-z]+`
	digitsPattern      = `[0-9]+`
	symbolsPattern     = `[^A-Za-z0-9\s]+`
	slashAbbrevPattern = `[A-Za-z0-9]+(?:/[A-Za-z0-9]+)+`
)

// Alternation order matters: a slash abbreviation must win over its letter
// and digit components at the same start position. Go's default (non-POSIX)
// regexp engine is leftmost-first, matching the scanning semantics the
// token boundaries depend on.
var (
	tokenRe       = regexp.MustCompile(slashAbbrevPattern + "|" + lettersPattern + "|" + digitsPattern + "|" + symbolsPattern)
	digitsRe      = regexp.MustCompile(`^(?:` + digitsPattern + `)$`)
	slashAbbrevRe = regexp.MustCompile(`^(?:` + slashAbbrevPattern + `)$`)
	wordRe        = regexp.MustCompile(`^(?:` + lettersPattern + `|` + digitsPattern + `)$`)
)

// Tokenize splits text into word, number, punctuation and acronym tokens.
// Each token carries the exact character span it was matched at. A token
// whose preceding gap contains a newline or carriage return is flagged
// with FirstTokenAfterNewline.
func Tokenize(text string) *TokenizedText {
	tokenized := &TokenizedText{Text: text}
	previousEnd := 0
	for tokenIndex, span := range tokenRe.FindAllStringIndex(text, -1) {
		startPos, endPos := span[0], span[1]
		matched := text[startPos:endPos]

		token := Token{
			Index:        tokenIndex,
			Type:         classify(matched),
			CharInterval: CharInterval{StartPos: startPos, EndPos: endPos},
		}
		if tokenIndex > 0 {
			gap := text[previousEnd:startPos]
			if strings.ContainsAny(gap, "\n\r") {
				token.FirstTokenAfterNewline = true
			}
		}
		tokenized.Tokens = append(tokenized.Tokens, token)
		previousEnd = endPos
	}
	return tokenized
}

func classify(matched string) TokenType {
	switch {
	case digitsRe.MatchString(matched):
		return TokenNumber
	case slashAbbrevRe.MatchString(matched):
		return TokenAcronym
	case wordRe.MatchString(matched):
		return TokenWord
	default:
		return TokenPunctuation
	}
}

// TokensText reconstructs the exact substring of the original text spanned
// by the given token interval.
func TokensText(tokenized *TokenizedText, interval TokenInterval) (string, error) {
	if interval.StartIndex < 0 ||
		interval.EndIndex > len(tokenized.Tokens) ||
		interval.StartIndex >= interval.EndIndex {
		return "", fmt.Errorf(
			"%w: start_index=%d end_index=%d num_tokens=%d",
			ErrInvalidTokenInterval, interval.StartIndex, interval.EndIndex, len(tokenized.Tokens),
		)
	}
	startToken := tokenized.Tokens[interval.StartIndex]
	endToken := tokenized.Tokens[interval.EndIndex-1]
	return tokenized.Text[startToken.CharInterval.StartPos:endToken.CharInterval.EndPos], nil
}
