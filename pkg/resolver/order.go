package resolver

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
)

// ExtractOrderedExtractions converts parsed extraction groups into
// Extraction records sorted by extraction index.
//
// Within each group, keys ending in the index suffix supply their base
// key's output position and keys ending in the attributes suffix supply
// its attributes; neither is emitted itself. When the index convention is
// active, a candidate without a sibling index key is dropped. Without it,
// a single counter spanning all groups numbers candidates in encounter
// order. The sort is stable: ties keep group-then-key encounter order.
func (r *Resolver) ExtractOrderedExtractions(groups []*OrderedMap) ([]*extraction.Extraction, error) {
	processed := []*extraction.Extraction{}
	counter := 0

	for groupIndex, group := range groups {
		for _, class := range group.Keys() {
			value, _ := group.Get(class)

			if r.indexSuffix != "" && strings.HasSuffix(class, r.indexSuffix) {
				if _, ok := value.(int); !ok {
					return nil, &SchemaError{Reason: fmt.Sprintf(
						"index key %q must hold an integer, got %T", class, value)}
				}
				continue
			}
			if r.attributesSuffix != "" && strings.HasSuffix(class, r.attributesSuffix) {
				switch value.(type) {
				case *OrderedMap, nil:
				default:
					return nil, &SchemaError{Reason: fmt.Sprintf(
						"attributes key %q must hold a mapping or null, got %T", class, value)}
				}
				continue
			}
			if !isAllowedValue(value) {
				return nil, &SchemaError{Reason: fmt.Sprintf(
					"value of key %q has disallowed type %T", class, value)}
			}

			extractionIndex := 0
			if r.indexSuffix != "" {
				rawIndex, ok := group.Get(class + r.indexSuffix)
				if !ok {
					r.log.Debug("no index value for extraction, skipping",
						zap.String("extraction_class", class), zap.Int("group_index", groupIndex))
					continue
				}
				extractionIndex, ok = rawIndex.(int)
				if !ok {
					return nil, &SchemaError{Reason: fmt.Sprintf(
						"index key %q must hold an integer, got %T", class+r.indexSuffix, rawIndex)}
				}
			} else {
				counter++
				extractionIndex = counter
			}

			var attributes map[string]any
			if r.attributesSuffix != "" {
				if rawAttrs, ok := group.Get(class + r.attributesSuffix); ok && rawAttrs != nil {
					attrMap, ok := rawAttrs.(*OrderedMap)
					if !ok {
						return nil, &SchemaError{Reason: fmt.Sprintf(
							"attributes key %q must hold a mapping or null, got %T", class+r.attributesSuffix, rawAttrs)}
					}
					attributes = attrMap.ToMap()
				}
			}

			processed = append(processed, &extraction.Extraction{
				ExtractionClass: class,
				ExtractionText:  valueToString(value),
				ExtractionIndex: extractionIndex,
				GroupIndex:      groupIndex,
				Attributes:      attributes,
			})
		}
	}

	sort.SliceStable(processed, func(i, j int) bool {
		return processed[i].ExtractionIndex < processed[j].ExtractionIndex
	})
	return processed, nil
}
