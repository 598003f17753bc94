// Package extraction defines the data model shared by the resolver,
// aligner and annotator: extraction records, annotated documents, document
// chunks, and the interfaces of the external collaborators (language
// model, prompt renderer, chunk source) this engine is driven by.
package extraction

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/textanchor/pkg/tokenizer"
)

// AlignmentStatus records how an extraction was anchored to source text.
// The empty string means the aligner has not matched it (or not run yet).
type AlignmentStatus string

const (
	// MatchExact means a full token-level match was found.
	MatchExact AlignmentStatus = "match_exact"
	// MatchLesser means a partial exact match: the extraction is longer
	// than the matched source span.
	MatchLesser AlignmentStatus = "match_lesser"
	// MatchFuzzy means the best overlap window met the fuzzy threshold.
	MatchFuzzy AlignmentStatus = "match_fuzzy"
)

// FormatType selects the serialization format of model output payloads.
type FormatType string

const (
	FormatJSON FormatType = "json"
	FormatYAML FormatType = "yaml"
)

// Extraction is one labeled span produced by an extraction pass. The
// orderer creates it position-less; the aligner mutates it exactly once to
// add intervals and a status; afterwards it is read-only.
type Extraction struct {
	ExtractionClass string                   `json:"extraction_class"`
	ExtractionText  string                   `json:"extraction_text"`
	Attributes      map[string]any           `json:"attributes,omitempty"`
	ExtractionIndex int                      `json:"extraction_index"`
	GroupIndex      int                      `json:"group_index"`
	CharInterval    *tokenizer.CharInterval  `json:"char_interval,omitempty"`
	TokenInterval   *tokenizer.TokenInterval `json:"token_interval,omitempty"`
	AlignmentStatus AlignmentStatus          `json:"alignment_status,omitempty"`
}

// Aligned reports whether the extraction has been anchored to source text.
func (e *Extraction) Aligned() bool {
	return e.AlignmentStatus != ""
}

// Document is a source text to annotate. DocumentID must be unique within
// one run; when empty, NewDocument assigns a generated one.
type Document struct {
	DocumentID        string `json:"document_id"`
	Text              string `json:"text"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// NewDocument creates a Document, generating a document ID when none is
// supplied.
func NewDocument(documentID, text string) Document {
	if documentID == "" {
		documentID = "doc_" + uuid.NewString()[:8]
	}
	return Document{DocumentID: documentID, Text: text}
}

// AnnotatedDocument is the engine's output for one document: the source
// text plus its resolved, aligned extractions in extraction-index order.
type AnnotatedDocument struct {
	DocumentID  string        `json:"document_id"`
	Text        string        `json:"text"`
	Extractions []*Extraction `json:"extractions"`
}

// TextChunk is a bounded slice of a document's text as supplied by the
// upstream chunker. CharOffset and TokenOffset locate the chunk within the
// parent document and shift every interval the aligner computes.
type TextChunk struct {
	DocumentID        string `json:"document_id"`
	Text              string `json:"text"`
	CharOffset        int    `json:"char_offset"`
	TokenOffset       int    `json:"token_offset"`
	DocumentText      string `json:"document_text,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// ScoredOutput is one candidate model response with its score.
type ScoredOutput struct {
	Score  float64 `json:"score"`
	Output string  `json:"output"`
}

// LanguageModel performs inference over a batch of prompts. Implementations
// live outside this engine; retries, backoff and timeouts are theirs.
type LanguageModel interface {
	// Infer returns, for each prompt, its scored outputs.
	Infer(ctx context.Context, prompts []string) ([][]ScoredOutput, error)
}

// PromptRenderer turns a chunk's text (and optional additional context)
// into the prompt sent to the language model.
type PromptRenderer interface {
	Render(chunkText, additionalContext string) string
}

// ErrDone is returned by ChunkSource.Next when the stream is exhausted.
var ErrDone = errors.New("chunk source exhausted")

// ChunkSource supplies an ordered stream of document chunks. Chunks for
// one document must be contiguous; document order is flush order.
type ChunkSource interface {
	// Next returns the next chunk, or ErrDone after the last one.
	Next(ctx context.Context) (TextChunk, error)
}

// Resettable is implemented by chunk sources that can replay the same
// chunk boundaries, which multi-pass annotation requires.
type Resettable interface {
	Reset() error
}

// SliceSource is a replayable ChunkSource over a fixed chunk slice.
type SliceSource struct {
	chunks []TextChunk
	pos    int
}

// NewSliceSource creates a SliceSource over chunks.
func NewSliceSource(chunks []TextChunk) *SliceSource {
	return &SliceSource{chunks: chunks}
}

// Next implements ChunkSource.
func (s *SliceSource) Next(ctx context.Context) (TextChunk, error) {
	if err := ctx.Err(); err != nil {
		return TextChunk{}, err
	}
	if s.pos >= len(s.chunks) {
		return TextChunk{}, ErrDone
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// Reset implements Resettable.
func (s *SliceSource) Reset() error {
	s.pos = 0
	return nil
}

var (
	_ ChunkSource = (*SliceSource)(nil)
	_ Resettable  = (*SliceSource)(nil)
)
