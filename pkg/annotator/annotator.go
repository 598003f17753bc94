// Package annotator drives the extraction pipeline: it batches document
// chunks into prompts, runs inference, resolves the model output into
// extraction records, aligns them onto the chunk text, and assembles
// annotated documents in stream order. Multi-pass runs replay the chunk
// stream and merge later passes first-pass-wins.
package annotator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/textanchor/internal/logging"
	"github.com/fyrsmithlabs/textanchor/pkg/aligner"
	"github.com/fyrsmithlabs/textanchor/pkg/config"
	"github.com/fyrsmithlabs/textanchor/pkg/extraction"
	"github.com/fyrsmithlabs/textanchor/pkg/resolver"
)

var (
	// ErrNoScoredOutputs is returned when inference yields zero candidates
	// for a chunk.
	ErrNoScoredOutputs = errors.New("no scored outputs from language model")

	// ErrDocumentRepeat is returned when a document's chunks reappear
	// after the document was already flushed. Chunks of one document must
	// be contiguous in the stream.
	ErrDocumentRepeat = errors.New("document chunks are not contiguous")

	// ErrSourceNotReplayable is returned when extraction_passes > 1 but
	// the chunk source cannot be reset.
	ErrSourceNotReplayable = errors.New("chunk source does not support replay required for multiple passes")
)

// Annotator runs extraction over chunk streams. It is not safe for
// concurrent use; construct one per worker.
type Annotator struct {
	model    extraction.LanguageModel
	renderer extraction.PromptRenderer

	resolver  *resolver.Resolver
	aligner   *aligner.WordAligner
	alignOpts aligner.Options

	batchLength         int
	passes              int
	suppressParseErrors bool

	log *zap.Logger
}

// New creates an Annotator from validated options. A nil logger is built
// from opts.Logging.
func New(model extraction.LanguageModel, renderer extraction.PromptRenderer, opts config.Options, log *zap.Logger) (*Annotator, error) {
	if model == nil {
		return nil, errors.New("language model is required")
	}
	if renderer == nil {
		return nil, errors.New("prompt renderer is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	if log == nil {
		built, err := logging.FromStrings(opts.Logging.Level, opts.Logging.Format)
		if err != nil {
			return nil, err
		}
		log = built.Zap()
	}
	log = log.Named("annotator")

	res := resolver.New(resolver.Config{
		FenceOutput:                opts.FenceOutput,
		Format:                     extraction.FormatType(opts.Format),
		ExtractionIndexSuffix:      opts.ExtractionIndexSuffix,
		ExtractionAttributesSuffix: opts.ExtractionAttributesSuffix,
	}, log.Named("resolver"))

	return &Annotator{
		model:    model,
		renderer: renderer,
		resolver: res,
		aligner:  aligner.New(log.Named("aligner")),
		alignOpts: aligner.Options{
			EnableFuzzyAlignment:    opts.EnableFuzzyAlignment,
			FuzzyAlignmentThreshold: opts.FuzzyAlignmentThreshold,
			AcceptMatchLesser:       opts.AcceptMatchLesser,
		},
		batchLength:         opts.BatchLength,
		passes:              opts.ExtractionPasses,
		suppressParseErrors: opts.SuppressParseErrors,
		log:                 log,
	}, nil
}

// Annotate consumes the chunk stream and returns one annotated document
// per document ID, in the order documents complete. With more than one
// extraction pass the source must implement Resettable.
func (a *Annotator) Annotate(ctx context.Context, src extraction.ChunkSource) ([]*extraction.AnnotatedDocument, error) {
	if a.passes > 1 {
		return a.annotateMultiPass(ctx, src)
	}
	return a.annotateSinglePass(ctx, src)
}

func (a *Annotator) annotateSinglePass(ctx context.Context, src extraction.ChunkSource) ([]*extraction.AnnotatedDocument, error) {
	var (
		docs        []*extraction.AnnotatedDocument
		visited     = make(map[string]bool)
		currentID   string
		currentText string
		current     []*extraction.Extraction
		open        bool
	)

	flush := func() {
		docs = append(docs, &extraction.AnnotatedDocument{
			DocumentID:  currentID,
			Text:        currentText,
			Extractions: current,
		})
		visited[currentID] = true
		a.log.Debug("document complete",
			zap.String("document_id", currentID),
			zap.Int("extractions", len(current)))
		open = false
	}

	for {
		chunks, err := a.nextBatch(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			break
		}

		prompts := make([]string, len(chunks))
		for i, chunk := range chunks {
			prompts[i] = a.renderer.Render(chunk.Text, chunk.AdditionalContext)
		}

		results, err := a.model.Infer(ctx, prompts)
		if err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		if len(results) != len(chunks) {
			return nil, fmt.Errorf("inference returned %d results for %d prompts", len(results), len(chunks))
		}

		for i, chunk := range chunks {
			outputs := results[i]
			if len(outputs) == 0 {
				return nil, fmt.Errorf("%w for document %q", ErrNoScoredOutputs, chunk.DocumentID)
			}

			if open && chunk.DocumentID != currentID {
				flush()
			}
			if !open {
				if visited[chunk.DocumentID] {
					return nil, fmt.Errorf("%w: document %q seen again after flush", ErrDocumentRepeat, chunk.DocumentID)
				}
				currentID = chunk.DocumentID
				currentText = chunk.DocumentText
				current = nil
				open = true
			}
			if currentText == "" && chunk.DocumentText != "" {
				currentText = chunk.DocumentText
			}

			top := topOutput(outputs)
			exts, err := a.resolver.Resolve(top.Output, a.suppressParseErrors)
			if err != nil {
				return nil, fmt.Errorf("resolving chunk of document %q: %w", chunk.DocumentID, err)
			}
			if err := a.aligner.AlignExtractions(exts, chunk.Text, chunk.TokenOffset, chunk.CharOffset, a.alignOpts); err != nil {
				return nil, fmt.Errorf("aligning chunk of document %q: %w", chunk.DocumentID, err)
			}
			current = append(current, exts...)
		}
	}

	if open {
		flush()
	}
	return docs, nil
}

func (a *Annotator) annotateMultiPass(ctx context.Context, src extraction.ChunkSource) ([]*extraction.AnnotatedDocument, error) {
	replayable, ok := src.(extraction.Resettable)
	if !ok {
		return nil, ErrSourceNotReplayable
	}

	var order []string
	texts := make(map[string]string)
	perDoc := make(map[string][][]*extraction.Extraction)

	for pass := 0; pass < a.passes; pass++ {
		if pass > 0 {
			if err := replayable.Reset(); err != nil {
				return nil, fmt.Errorf("resetting chunk source for pass %d: %w", pass+1, err)
			}
		}
		docs, err := a.annotateSinglePass(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("extraction pass %d failed: %w", pass+1, err)
		}
		total := 0
		for _, doc := range docs {
			if _, seen := perDoc[doc.DocumentID]; !seen {
				order = append(order, doc.DocumentID)
				texts[doc.DocumentID] = doc.Text
			}
			perDoc[doc.DocumentID] = append(perDoc[doc.DocumentID], doc.Extractions)
			total += len(doc.Extractions)
		}
		a.log.Info("extraction pass complete",
			zap.Int("pass", pass+1),
			zap.Int("documents", len(docs)),
			zap.Int("extractions", total))
	}

	merged := make([]*extraction.AnnotatedDocument, 0, len(order))
	for _, id := range order {
		merged = append(merged, &extraction.AnnotatedDocument{
			DocumentID:  id,
			Text:        texts[id],
			Extractions: mergeNonOverlappingExtractions(perDoc[id]),
		})
	}
	return merged, nil
}

// nextBatch reads up to batchLength chunks, fewer at end of stream.
func (a *Annotator) nextBatch(ctx context.Context, src extraction.ChunkSource) ([]extraction.TextChunk, error) {
	chunks := make([]extraction.TextChunk, 0, a.batchLength)
	for len(chunks) < a.batchLength {
		chunk, err := src.Next(ctx)
		if errors.Is(err, extraction.ErrDone) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// topOutput picks the highest-scoring candidate; ties keep the earliest.
func topOutput(outputs []extraction.ScoredOutput) extraction.ScoredOutput {
	best := outputs[0]
	for _, out := range outputs[1:] {
		if out.Score > best.Score {
			best = out
		}
	}
	return best
}
