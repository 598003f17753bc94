package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var endOfSentenceRe = regexp.MustCompile(`[.?!]$`)

// knownAbbreviations are terminator-like token pairs that do not end a
// sentence.
var knownAbbreviations = map[string]struct{}{
	"Mr.":   {},
	"Mrs.":  {},
	"Ms.":   {},
	"Dr.":   {},
	"Prof.": {},
	"St.":   {},
}

// FindSentenceRange walks tokens from startIndex and returns the interval
// ending right after the first sentence boundary. A boundary is either a
// sentence-terminating punctuation token that does not complete a known
// abbreviation, or a newline gap followed by an uppercase token. With no
// boundary the interval extends to the end of the token sequence.
//
// The newline heuristic leans toward terminating sentences early rather
// than missing a boundary.
func FindSentenceRange(text string, tokens []Token, startIndex int) (TokenInterval, error) {
	if startIndex < 0 || startIndex >= len(tokens) {
		return TokenInterval{}, fmt.Errorf(
			"%w: start_index=%d num_tokens=%d", ErrSentenceRange, startIndex, len(tokens),
		)
	}

	for i := startIndex; i < len(tokens); i++ {
		if tokens[i].Type == TokenPunctuation && isEndOfSentenceToken(text, tokens, i) {
			return TokenInterval{StartIndex: startIndex, EndIndex: i + 1}, nil
		}
		if isSentenceBreakAfterNewline(text, tokens, i) {
			return TokenInterval{StartIndex: startIndex, EndIndex: i + 1}, nil
		}
	}
	return TokenInterval{StartIndex: startIndex, EndIndex: len(tokens)}, nil
}

// isEndOfSentenceToken reports whether the token at currentIdx terminates a
// sentence: it matches the terminator class and, joined with the previous
// token's text, is not a known abbreviation.
func isEndOfSentenceToken(text string, tokens []Token, currentIdx int) bool {
	currentText := tokenText(text, tokens[currentIdx])
	if !endOfSentenceRe.MatchString(currentText) {
		return false
	}
	if currentIdx > 0 {
		prevText := tokenText(text, tokens[currentIdx-1])
		if _, ok := knownAbbreviations[prevText+currentText]; ok {
			return false
		}
	}
	return true
}

// isSentenceBreakAfterNewline reports whether a newline separates the token
// at currentIdx from its successor and that successor starts uppercase.
func isSentenceBreakAfterNewline(text string, tokens []Token, currentIdx int) bool {
	if currentIdx+1 >= len(tokens) {
		return false
	}
	gap := text[tokens[currentIdx].CharInterval.EndPos:tokens[currentIdx+1].CharInterval.StartPos]
	if !strings.Contains(gap, "\n") {
		return false
	}
	nextText := tokenText(text, tokens[currentIdx+1])
	if nextText == "" {
		return false
	}
	return unicode.IsUpper([]rune(nextText)[0])
}

func tokenText(text string, token Token) string {
	return text[token.CharInterval.StartPos:token.CharInterval.EndPos]
}
