package annotator

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
)

// AnnotateText annotates a single text as one whole-document chunk. The
// document gets a generated ID.
func (a *Annotator) AnnotateText(ctx context.Context, text string) (*extraction.AnnotatedDocument, error) {
	return a.AnnotateTextWithContext(ctx, text, "")
}

// AnnotateTextWithContext is AnnotateText with additional prompt context.
func (a *Annotator) AnnotateTextWithContext(ctx context.Context, text, additionalContext string) (*extraction.AnnotatedDocument, error) {
	doc := extraction.NewDocument("", text)
	src := extraction.NewSliceSource([]extraction.TextChunk{{
		DocumentID:        doc.DocumentID,
		Text:              text,
		DocumentText:      text,
		AdditionalContext: additionalContext,
	}})

	docs, err := a.Annotate(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected one annotated document, got %d", len(docs))
	}
	return docs[0], nil
}
