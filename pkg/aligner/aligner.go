// Package aligner anchors extraction records onto tokenized source text.
// Phase one finds exact token-level matches by running a longest-matching-
// block comparison between the source tokens and a delimiter-joined stream
// of all extraction tokens; phase two retries still-unmatched extractions
// with a windowed fuzzy scan accepted above a similarity threshold.
package aligner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
	"github.com/fyrsmithlabs/textanchor/pkg/tokenizer"
)

// Delimiter separates extraction texts in the concatenated token stream.
// The unit-separator symbol tokenizes to exactly one punctuation token and
// never occurs in natural text.
const Delimiter = "␟"

// DefaultFuzzyAlignmentThreshold is the minimum token overlap ratio for
// fuzzy alignment.
const DefaultFuzzyAlignmentThreshold = 0.75

var (
	// ErrDelimiterCollision is returned when an extraction's text contains
	// the internal delimiter, which would corrupt offset bookkeeping.
	ErrDelimiterCollision = errors.New("delimiter appears inside extraction text")

	// ErrEmptyTokens is returned when either the source or the extraction
	// side tokenizes to nothing.
	ErrEmptyTokens = errors.New("source tokens and extraction tokens cannot be empty")
)

// Options controls alignment behavior.
type Options struct {
	// EnableFuzzyAlignment retries unmatched extractions with the
	// windowed fuzzy scan.
	EnableFuzzyAlignment bool
	// FuzzyAlignmentThreshold is the minimum overlap ratio (0-1] a fuzzy
	// window must reach.
	FuzzyAlignmentThreshold float64
	// AcceptMatchLesser accepts partial exact matches, where the
	// extraction is longer than the matched source span.
	AcceptMatchLesser bool
}

// DefaultOptions returns the standard alignment settings.
func DefaultOptions() Options {
	return Options{
		EnableFuzzyAlignment:    true,
		FuzzyAlignmentThreshold: DefaultFuzzyAlignmentThreshold,
		AcceptMatchLesser:       true,
	}
}

// WordAligner aligns extraction tokens with source tokens. It is not safe
// for concurrent use; construct one per worker.
type WordAligner struct {
	log *zap.Logger
	// normCache memoizes token normalization across calls, standing in
	// for a process-wide cache so the aligner stays injectable.
	normCache map[string]string
}

const normCacheLimit = 10000

// New creates a WordAligner. A nil logger disables logging.
func New(log *zap.Logger) *WordAligner {
	if log == nil {
		log = zap.NewNop()
	}
	return &WordAligner{
		log:       log,
		normCache: make(map[string]string),
	}
}

// AlignExtractions anchors each extraction onto the chunk's source text,
// mutating the records in place. Entries it cannot anchor keep nil
// intervals and an empty alignment status; nothing is reordered or
// dropped. tokenOffset and charOffset shift every computed interval into
// parent-document coordinates.
func (w *WordAligner) AlignExtractions(
	extractions []*extraction.Extraction,
	sourceText string,
	tokenOffset, charOffset int,
	opts Options,
) error {
	if len(extractions) == 0 {
		return nil
	}

	sourceTokens := lowercaseTokens(sourceText)

	if delimLen := len(lowercaseTokens(Delimiter)); delimLen != 1 {
		return fmt.Errorf("delimiter %q must be a single token, got %d", Delimiter, delimLen)
	}

	// Map each extraction to its start position in the concatenated
	// token stream, verifying the delimiter cannot corrupt the mapping.
	texts := make([]string, len(extractions))
	for i, ext := range extractions {
		if strings.Contains(ext.ExtractionText, Delimiter) {
			return fmt.Errorf("%w: %q", ErrDelimiterCollision, ext.ExtractionText)
		}
		texts[i] = ext.ExtractionText
	}
	extractionTokens := lowercaseTokens(strings.Join(texts, " "+Delimiter+" "))

	positions := make(map[int]*extraction.Extraction, len(extractions))
	pos := 0
	for _, ext := range extractions {
		positions[pos] = ext
		pos += len(lowercaseTokens(ext.ExtractionText)) + 1
	}

	if len(sourceTokens) == 0 || len(extractionTokens) == 0 {
		return ErrEmptyTokens
	}

	tokenizedSource := tokenizer.Tokenize(sourceText)
	matcher := difflib.NewMatcherWithJunk(sourceTokens, extractionTokens, false, nil)
	blocks := matcher.GetMatchingBlocks()

	aligned := make(map[*extraction.Extraction]bool)
	exactMatches, lesserMatches := 0, 0

	// Skip the terminating dummy block.
	for _, block := range blocks[:len(blocks)-1] {
		i, j, n := block.A, block.B, block.Size
		ext, ok := positions[j]
		if !ok {
			w.log.Debug("matching block does not start at an extraction boundary",
				zap.Int("block_start", j))
			continue
		}

		ext.TokenInterval = &tokenizer.TokenInterval{
			StartIndex: i + tokenOffset,
			EndIndex:   i + n + tokenOffset,
		}
		startToken := tokenizedSource.Tokens[i]
		endToken := tokenizedSource.Tokens[i+n-1]
		ext.CharInterval = &tokenizer.CharInterval{
			StartPos: charOffset + startToken.CharInterval.StartPos,
			EndPos:   charOffset + endToken.CharInterval.EndPos,
		}

		ownLen := len(lowercaseTokens(ext.ExtractionText))
		switch {
		case ownLen < n:
			// The delimiter makes this impossible unless bookkeeping broke.
			return fmt.Errorf("matching block larger than extraction: extraction_len=%d block_size=%d", ownLen, n)
		case ownLen == n:
			ext.AlignmentStatus = extraction.MatchExact
			aligned[ext] = true
			exactMatches++
		case opts.AcceptMatchLesser:
			ext.AlignmentStatus = extraction.MatchLesser
			aligned[ext] = true
			lesserMatches++
		default:
			ext.TokenInterval = nil
			ext.CharInterval = nil
			ext.AlignmentStatus = ""
		}
	}

	fuzzyMatches := 0
	if opts.EnableFuzzyAlignment {
		threshold := opts.FuzzyAlignmentThreshold
		if threshold == 0 {
			threshold = DefaultFuzzyAlignmentThreshold
		}
		for _, ext := range extractions {
			if aligned[ext] {
				continue
			}
			if w.fuzzyAlignExtraction(ext, sourceTokens, tokenizedSource, tokenOffset, charOffset, threshold) {
				fuzzyMatches++
			}
		}
	}

	w.log.Debug("alignment complete",
		zap.Int("extractions", len(extractions)),
		zap.Int("exact", exactMatches),
		zap.Int("lesser", lesserMatches),
		zap.Int("fuzzy", fuzzyMatches))
	return nil
}

// lowercaseTokens tokenizes text and returns each token's lowercased
// surface form.
func lowercaseTokens(text string) []string {
	tokenized := tokenizer.Tokenize(text)
	out := make([]string, len(tokenized.Tokens))
	for i, tok := range tokenized.Tokens {
		out[i] = strings.ToLower(text[tok.CharInterval.StartPos:tok.CharInterval.EndPos])
	}
	return out
}

// normalizeToken lowercases and applies light plural stemming: one
// trailing "s" is stripped when the token is longer than three runes and
// does not end in "ss".
func (w *WordAligner) normalizeToken(token string) string {
	if norm, ok := w.normCache[token]; ok {
		return norm
	}
	norm := strings.ToLower(token)
	if len(norm) > 3 && strings.HasSuffix(norm, "s") && !strings.HasSuffix(norm, "ss") {
		norm = norm[:len(norm)-1]
	}
	if len(w.normCache) >= normCacheLimit {
		w.normCache = make(map[string]string)
	}
	w.normCache[token] = norm
	return norm
}
