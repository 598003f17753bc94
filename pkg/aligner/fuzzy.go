package aligner

import (
	"go.uber.org/zap"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
	"github.com/fyrsmithlabs/textanchor/pkg/tokenizer"
)

// fuzzyAlignExtraction scans every candidate window over the source tokens
// and keeps the one with the highest matching-block ratio, accepting it
// when the ratio reaches the threshold. A cheap multiset-intersection
// pre-check skips windows that cannot reach the threshold. Ties go to the
// earliest start and smallest width: a later candidate must strictly beat
// the current best. Returns true when the extraction was aligned.
func (w *WordAligner) fuzzyAlignExtraction(
	ext *extraction.Extraction,
	sourceTokens []string,
	tokenizedSource *tokenizer.TokenizedText,
	tokenOffset, charOffset int,
	threshold float64,
) bool {
	extractionTokens := lowercaseTokens(ext.ExtractionText)
	if len(extractionTokens) == 0 {
		return false
	}
	extractionNorm := make([]string, len(extractionTokens))
	for i, tok := range extractionTokens {
		extractionNorm[i] = w.normalizeToken(tok)
	}

	w.log.Debug("fuzzy aligning extraction",
		zap.String("extraction_text", ext.ExtractionText),
		zap.Int("tokens", len(extractionTokens)))

	lenE := len(extractionTokens)
	maxWindow := len(sourceTokens)

	sourceNorm := make([]string, len(sourceTokens))
	for i, tok := range sourceTokens {
		sourceNorm[i] = w.normalizeToken(tok)
	}

	extractionCounts := countTokens(extractionNorm)
	minOverlap := int(float64(lenE) * threshold)

	matcher := difflib.NewMatcherWithJunk(nil, extractionNorm, false, nil)

	bestRatio := 0.0
	bestStart, bestWidth := -1, 0

	for windowSize := lenE; windowSize <= maxWindow; windowSize++ {
		windowCounts := countTokens(sourceNorm[:windowSize])

		for start := 0; start+windowSize <= len(sourceNorm); start++ {
			if intersectionTotal(extractionCounts, windowCounts) >= minOverlap {
				matcher.SetSeq1(sourceNorm[start : start+windowSize])
				matches := 0
				for _, block := range matcher.GetMatchingBlocks() {
					matches += block.Size
				}
				ratio := float64(matches) / float64(lenE)
				if ratio > bestRatio {
					bestRatio = ratio
					bestStart, bestWidth = start, windowSize
				}
			}

			// Slide the window one token right.
			if start+windowSize < len(sourceNorm) {
				old := sourceNorm[start]
				windowCounts[old]--
				if windowCounts[old] == 0 {
					delete(windowCounts, old)
				}
				windowCounts[sourceNorm[start+windowSize]]++
			}
		}
	}

	if bestStart < 0 || bestRatio < threshold {
		return false
	}

	ext.TokenInterval = &tokenizer.TokenInterval{
		StartIndex: bestStart + tokenOffset,
		EndIndex:   bestStart + bestWidth + tokenOffset,
	}
	startToken := tokenizedSource.Tokens[bestStart]
	endToken := tokenizedSource.Tokens[bestStart+bestWidth-1]
	ext.CharInterval = &tokenizer.CharInterval{
		StartPos: charOffset + startToken.CharInterval.StartPos,
		EndPos:   charOffset + endToken.CharInterval.EndPos,
	}
	ext.AlignmentStatus = extraction.MatchFuzzy
	return true
}

func countTokens(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}

// intersectionTotal sums the element-wise minimum of two multisets, an
// upper bound on how many tokens a window can match.
func intersectionTotal(a, b map[string]int) int {
	total := 0
	for tok, count := range a {
		if other, ok := b[tok]; ok {
			if other < count {
				total += other
			} else {
				total += count
			}
		}
	}
	return total
}
