package annotator

import (
	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
)

// mergeNonOverlappingExtractions combines per-pass extraction lists for one
// document. The first pass is kept whole; each later pass contributes only
// extractions whose character spans do not overlap anything already kept.
func mergeNonOverlappingExtractions(passes [][]*extraction.Extraction) []*extraction.Extraction {
	if len(passes) == 0 {
		return nil
	}
	merged := make([]*extraction.Extraction, 0, len(passes[0]))
	merged = append(merged, passes[0]...)

	for _, pass := range passes[1:] {
		for _, candidate := range pass {
			conflict := false
			for _, kept := range merged {
				if extractionsOverlap(candidate, kept) {
					conflict = true
					break
				}
			}
			if !conflict {
				merged = append(merged, candidate)
			}
		}
	}
	return merged
}

// extractionsOverlap reports whether two extractions occupy intersecting
// character spans. Unaligned extractions never overlap anything.
func extractionsOverlap(a, b *extraction.Extraction) bool {
	if a.CharInterval == nil || b.CharInterval == nil {
		return false
	}
	return a.CharInterval.StartPos < b.CharInterval.EndPos &&
		b.CharInterval.StartPos < a.CharInterval.EndPos
}
