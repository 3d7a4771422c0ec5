package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sopqa/internal/adapter/retriever"
	"sopqa/internal/adapter/vectorindex"
	"sopqa/internal/domain"
	"sopqa/internal/logger"
	"sopqa/internal/metrics"
	"sopqa/internal/port"
)

// Options tunes pipeline behaviour. Zero values fall back to defaults.
type Options struct {
	TopK         int
	MinScore     float64
	EmbedTimeout time.Duration
	LLMTimeout   time.Duration
	Metrics      *metrics.Metrics
}

// Pipeline orchestrates the full document QA lifecycle: ingestion builds
// the index, questions are answered against the live index, and state
// transitions are serialized so at most one build runs at a time.
type Pipeline struct {
	chunker   port.Chunker
	embedder  port.Embedder
	store     port.IndexStore
	generator *AnswerGenerator

	topK         int
	minScore     float64
	embedTimeout time.Duration
	llmTimeout   time.Duration

	metrics *metrics.Metrics
	log     zerolog.Logger

	mu        sync.RWMutex
	state     domain.IndexState
	lastErr   error
	index     port.VectorIndex
	documents int
	passages  int
	stale     bool
}

func NewPipeline(chunker port.Chunker, embedder port.Embedder, store port.IndexStore, llm port.LLM, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 60 * time.Second
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 120 * time.Second
	}
	return &Pipeline{
		chunker:      chunker,
		embedder:     embedder,
		store:        store,
		generator:    NewAnswerGenerator(llm),
		topK:         opts.TopK,
		minScore:     opts.MinScore,
		embedTimeout: opts.EmbedTimeout,
		llmTimeout:   opts.LLMTimeout,
		metrics:      opts.Metrics,
		log:          logger.Component("pipeline"),
		state:        domain.StateEmpty,
	}
}

// Ingest chunks, embeds, persists and activates the given documents as
// the new index, replacing any previous one. While the build runs,
// questions keep being served from the prior index if one exists.
func (p *Pipeline) Ingest(ctx context.Context, docs []domain.Document) (domain.IngestResult, error) {
	if err := p.beginBuild(); err != nil {
		return domain.IngestResult{}, err
	}

	started := time.Now()
	runID := uuid.NewString()

	res, idx, err := p.build(ctx, runID, docs)
	if err != nil {
		p.failBuild(runID, err)
		p.metrics.ObserveIngest("failure", time.Since(started), 0, 0)
		return domain.IngestResult{}, err
	}

	p.completeBuild(idx, res)
	p.metrics.ObserveIngest("success", time.Since(started), res.DocumentsProcessed, res.PassagesCreated)
	p.log.Info().
		Str("run_id", runID).
		Int("documents", res.DocumentsProcessed).
		Int("passages", res.PassagesCreated).
		Dur("took", time.Since(started)).
		Msg("ingestion complete")
	return res, nil
}

func (p *Pipeline) beginBuild() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == domain.StateBuilding {
		return fmt.Errorf("%w: an ingestion run is already active", domain.ErrBuildInProgress)
	}
	p.state = domain.StateBuilding
	p.metrics.SetState(int(domain.StateBuilding))
	return nil
}

func (p *Pipeline) failBuild(runID string, err error) {
	p.mu.Lock()
	p.state = domain.StateFailed
	p.lastErr = err
	p.mu.Unlock()
	p.metrics.SetState(int(domain.StateFailed))
	p.log.Error().Str("run_id", runID).Str("kind", domain.ErrorKind(err)).Err(err).Msg("ingestion failed")
}

func (p *Pipeline) completeBuild(idx port.VectorIndex, res domain.IngestResult) {
	p.mu.Lock()
	p.state = domain.StateReady
	p.lastErr = nil
	p.index = idx
	p.documents = res.DocumentsProcessed
	p.passages = res.PassagesCreated
	p.stale = false
	p.mu.Unlock()
	p.metrics.SetState(int(domain.StateReady))
}

func (p *Pipeline) build(ctx context.Context, runID string, docs []domain.Document) (domain.IngestResult, port.VectorIndex, error) {
	if len(docs) == 0 {
		return domain.IngestResult{}, nil, fmt.Errorf("%w: no documents to ingest", domain.ErrInvalidInput)
	}

	var passages []domain.Passage
	for _, doc := range docs {
		ps, err := p.chunker.Chunk(doc)
		if err != nil {
			return domain.IngestResult{}, nil, fmt.Errorf("chunking %s: %w", doc.ID, err)
		}
		passages = append(passages, ps...)
	}
	if len(passages) == 0 {
		return domain.IngestResult{}, nil, fmt.Errorf("%w: documents contain no extractable text", domain.ErrInvalidInput)
	}

	texts := make([]string, len(passages))
	for i, ps := range passages {
		texts[i] = ps.Text
	}

	p.log.Debug().Str("run_id", runID).Int("passages", len(passages)).Msg("embedding passages")
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.IngestResult{}, nil, fmt.Errorf("embedding passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return domain.IngestResult{}, nil, fmt.Errorf("%w: embedder returned %d vectors for %d passages",
			domain.ErrEmbeddingUnavailable, len(vectors), len(passages))
	}

	idx := vectorindex.NewFlat(p.embedder.Dimension(), p.embedder.ModelName())
	for i, ps := range passages {
		if err := idx.Add(ps, vectors[i]); err != nil {
			return domain.IngestResult{}, nil, fmt.Errorf("indexing passage %s: %w", ps.ID, err)
		}
	}

	snap := idx.Snapshot()
	snap.RunID = runID
	snap.SavedAt = time.Now().UTC()
	if err := p.store.Save(snap); err != nil {
		return domain.IngestResult{}, nil, fmt.Errorf("persisting index: %w", err)
	}

	return domain.IngestResult{
		DocumentsProcessed: len(docs),
		PassagesCreated:    len(passages),
	}, idx, nil
}

// Ask answers a question against the live index.
func (p *Pipeline) Ask(ctx context.Context, question string) (domain.Answer, error) {
	started := time.Now()
	answer, err := p.ask(ctx, question)
	status := "success"
	if err != nil {
		status = domain.ErrorKind(err)
	}
	p.metrics.ObserveQuestion(status, time.Since(started))
	return answer, err
}

func (p *Pipeline) ask(ctx context.Context, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("%w: question must not be empty", domain.ErrInvalidInput)
	}

	idx, err := p.servableIndex()
	if err != nil {
		return domain.Answer{}, err
	}

	retr := retriever.NewSemantic(p.embedder, idx)
	retrieveCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	scored, err := retr.Retrieve(retrieveCtx, question, p.topK)
	cancel()
	if err != nil {
		return domain.Answer{}, err
	}

	scored = p.filterByThreshold(scored)
	passages := make([]domain.Passage, len(scored))
	for i, s := range scored {
		passages[i] = s.Passage
	}

	generateCtx, cancel := context.WithTimeout(ctx, p.llmTimeout)
	defer cancel()
	return p.generator.Generate(generateCtx, question, passages)
}

// servableIndex returns the index a question may be answered against:
// the live one when READY, or the previous one while a rebuild is in
// flight. EMPTY and FAILED states have nothing trustworthy to serve.
func (p *Pipeline) servableIndex() (port.VectorIndex, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch p.state {
	case domain.StateReady:
		return p.index, nil
	case domain.StateBuilding:
		if p.index != nil {
			return p.index, nil
		}
		return nil, fmt.Errorf("%w: index build in progress, try again shortly", domain.ErrIndexNotReady)
	default:
		return nil, fmt.Errorf("%w: no index is loaded, run ingestion first", domain.ErrIndexNotReady)
	}
}

func (p *Pipeline) filterByThreshold(scored []domain.ScoredPassage) []domain.ScoredPassage {
	if p.minScore <= 0 {
		return scored
	}
	kept := scored[:0]
	for _, s := range scored {
		if s.Score >= p.minScore {
			kept = append(kept, s)
		}
	}
	return kept
}

// Status reports the current pipeline state.
func (p *Pipeline) Status() domain.PipelineStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := domain.PipelineStatus{
		State:     p.state,
		Documents: p.documents,
		Passages:  p.passages,
		Stale:     p.stale,
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

// ListSources lists the distinct document sources in the persisted index.
func (p *Pipeline) ListSources() ([]string, error) {
	return p.store.ListSources()
}

// MarkStale flags that the source documents changed after the last
// build. Queries keep working; the flag is advisory.
func (p *Pipeline) MarkStale() {
	p.mu.Lock()
	changed := !p.stale && p.state == domain.StateReady
	p.stale = true
	p.mu.Unlock()
	if changed {
		p.log.Info().Msg("source documents changed since last ingestion, index marked stale")
	}
}

// Restore loads a previously persisted index. A missing index leaves the
// pipeline EMPTY and is not an error; a corrupt or incompatible one is
// reported but also leaves the pipeline EMPTY so a fresh ingestion can
// overwrite it.
func (p *Pipeline) Restore() error {
	snap, err := p.store.Load()
	if errors.Is(err, domain.ErrIndexNotFound) {
		p.log.Debug().Msg("no persisted index found")
		return nil
	}
	if err != nil {
		p.recordRestoreFailure(err)
		return err
	}

	if snap.Model != p.embedder.ModelName() {
		err := fmt.Errorf("%w: persisted index was built with model %q, configured model is %q",
			domain.ErrCorruptIndex, snap.Model, p.embedder.ModelName())
		p.recordRestoreFailure(err)
		return err
	}

	idx, err := vectorindex.FromSnapshot(snap)
	if err != nil {
		p.recordRestoreFailure(err)
		return err
	}

	res := domain.IngestResult{
		DocumentsProcessed: len(uniqueSources(snap.Passages)),
		PassagesCreated:    len(snap.Passages),
	}
	p.completeBuild(idx, res)
	p.log.Info().
		Str("run_id", snap.RunID).
		Time("saved_at", snap.SavedAt).
		Int("passages", res.PassagesCreated).
		Msg("restored persisted index")
	return nil
}

func (p *Pipeline) recordRestoreFailure(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	p.log.Warn().Err(err).Msg("persisted index could not be restored, starting empty")
}
