// Package blockservice coordinates the block store, reference graph, executor
// and event stream of one editing session.
package blockservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/float/internal/apperr"
	"github.com/starford/float/internal/blocks"
	"github.com/starford/float/internal/checksum"
	"github.com/starford/float/internal/executor"
	"github.com/starford/float/internal/graph"
	"github.com/starford/float/internal/llm"
	"github.com/starford/float/internal/markup"
	"github.com/starford/float/internal/models"
	"github.com/starford/float/internal/runlog"
	"github.com/starford/float/internal/search"
	"github.com/starford/float/internal/sse"
)

// BlockDetail is a block plus its derived views.
type BlockDetail struct {
	models.Block
	Version  string           `json:"version"`
	Segments []markup.Segment `json:"segments"`
	Links    []string         `json:"links"`
	Tags     []string         `json:"tags"`
}

// TreeEntry is one line of a rendered tree.
type TreeEntry struct {
	Depth int `json:"depth"`
	BlockDetail
}

// GraphView is the read-only reference graph.
type GraphView struct {
	Meta    map[string]any `json:"meta"`
	Nodes   []models.Node  `json:"nodes"`
	Edges   []models.Edge  `json:"edges"`
	Markers []string       `json:"markers"`
	Stats   graph.Stats    `json:"stats"`
}

// Notifier receives block change events.
type Notifier interface {
	PublishBlockEvent(kind, id string, block any)
}

type nopNotifier struct{}

func (nopNotifier) PublishBlockEvent(string, string, any) {}

// Service owns one session.
type Service struct {
	store    *blocks.Store
	graph    *graph.Graph
	exec     *executor.Executor
	runs     *runlog.DB
	notifier Notifier
	logger   *slog.Logger

	// serializes version check + write in Update
	updateMu sync.Mutex
}

// Option configures a Service.
type Option func(*settings)

type settings struct {
	notifier  Notifier
	runs      *runlog.DB
	storeOpts []blocks.Option
	execOpts  []executor.Option
}

// WithNotifier publishes block events to n.
func WithNotifier(n Notifier) Option {
	return func(s *settings) { s.notifier = n }
}

// WithRunLog journals finished executions to db.
func WithRunLog(db *runlog.DB) Option {
	return func(s *settings) { s.runs = db }
}

// WithStoreOptions passes options to the block store.
func WithStoreOptions(opts ...blocks.Option) Option {
	return func(s *settings) { s.storeOpts = append(s.storeOpts, opts...) }
}

// WithExecutorOptions passes options to the executor.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *settings) { s.execOpts = append(s.execOpts, opts...) }
}

// New builds a session from a dataset.
func New(ds *models.Dataset, gen llm.Generator, logger *slog.Logger, opts ...Option) (*Service, error) {
	var st settings
	for _, opt := range opts {
		opt(&st)
	}
	if st.notifier == nil {
		st.notifier = nopNotifier{}
	}

	g, err := graph.New(ds.Meta, ds.Nodes, ds.Edges)
	if err != nil {
		return nil, fmt.Errorf("blockservice: %w", err)
	}
	store, err := blocks.New(ds.Blocks, g, st.storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("blockservice: %w", err)
	}

	s := &Service{
		store:    store,
		graph:    g,
		runs:     st.runs,
		notifier: st.notifier,
		logger:   logger,
	}

	execOpts := append([]executor.Option{executor.WithObserver(s)}, st.execOpts...)
	if st.runs != nil {
		execOpts = append(execOpts, executor.WithObserver(runlog.NewRecorder(st.runs, logger)))
	}
	s.exec = executor.New(store, g, gen, logger, execOpts...)
	return s, nil
}

// Close cancels background executions and waits for them to settle.
func (s *Service) Close() {
	s.exec.Close()
}

// Wait blocks until background executions have finished.
func (s *Service) Wait() {
	s.exec.Wait()
}

// ExecutionChanged implements executor.Observer by forwarding state changes
// to the notifier.
func (s *Service) ExecutionChanged(b models.Block, _ *executor.Run) {
	s.notifier.PublishBlockEvent(sse.KindExecution, b.ID, detail(b))
}

// List returns every block in creation order.
func (s *Service) List(_ context.Context) []BlockDetail {
	return details(s.store.Snapshot())
}

// Get returns one block.
func (s *Service) Get(_ context.Context, id string) (*BlockDetail, error) {
	b, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("blockservice: block %q: %w", id, apperr.ErrNotFound)
	}
	d := detail(b)
	return &d, nil
}

// Tree returns the subtree at from in display order. An empty from means root.
func (s *Service) Tree(_ context.Context, from string) ([]TreeEntry, error) {
	if from == "" {
		from = models.RootID
	}
	if _, ok := s.store.Get(from); !ok {
		return nil, fmt.Errorf("blockservice: block %q: %w", from, apperr.ErrNotFound)
	}
	entries := blocks.Walk(s.store, from)
	out := make([]TreeEntry, len(entries))
	for i, e := range entries {
		out[i] = TreeEntry{Depth: e.Depth, BlockDetail: detail(e.Block)}
	}
	return out, nil
}

// Entries returns the raw walk used by terminal rendering.
func (s *Service) Entries(from string) []blocks.Entry {
	return blocks.Walk(s.store, from)
}

// Create adds a block of type t under parentID.
func (s *Service) Create(ctx context.Context, parentID string, t models.BlockType) (*BlockDetail, error) {
	id, err := s.store.Create(parentID, t)
	if err != nil {
		return nil, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.PublishBlockEvent(sse.KindCreated, id, d)
	return d, nil
}

// Update replaces a block's content. A non-empty ifMatch must equal the
// current version, otherwise apperr.ErrConflict is returned.
func (s *Service) Update(ctx context.Context, id, content, ifMatch string) (*BlockDetail, error) {
	s.updateMu.Lock()
	b, ok := s.store.Get(id)
	if !ok {
		s.updateMu.Unlock()
		return nil, fmt.Errorf("blockservice: block %q: %w", id, apperr.ErrNotFound)
	}
	if ifMatch != "" && ifMatch != checksum.Version(b.Content) {
		s.updateMu.Unlock()
		return nil, fmt.Errorf("blockservice: block %q: %w", id, apperr.ErrConflict)
	}
	err := s.store.Update(id, content)
	s.updateMu.Unlock()
	if err != nil {
		return nil, err
	}

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.PublishBlockEvent(sse.KindUpdated, id, d)
	return d, nil
}

// Inject adds a context block for a reference node at the top of root.
func (s *Service) Inject(ctx context.Context, nodeID string) (*BlockDetail, error) {
	id, err := s.store.Inject(nodeID)
	if err != nil {
		return nil, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.PublishBlockEvent(sse.KindInjected, id, d)
	return d, nil
}

// Execute runs a query or dispatch block and waits for the outcome.
func (s *Service) Execute(ctx context.Context, id string) (*BlockDetail, error) {
	b, err := s.exec.Execute(ctx, id)
	if err != nil {
		return nil, err
	}
	d := detail(b)
	return &d, nil
}

// Start runs a query or dispatch block in the background and returns it in
// the loading state.
func (s *Service) Start(ctx context.Context, id string) (*BlockDetail, error) {
	if err := s.exec.Start(id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Search filters blocks by a case-insensitive substring of content or id.
func (s *Service) Search(_ context.Context, query string) []BlockDetail {
	return details(search.Blocks(s.store.Snapshot(), query))
}

// Nodes returns the reference nodes.
func (s *Service) Nodes(_ context.Context) []models.Node {
	return s.graph.Nodes()
}

// Graph returns the reference graph with its marker index.
func (s *Service) Graph(_ context.Context) GraphView {
	return GraphView{
		Meta:    s.graph.Meta(),
		Nodes:   s.graph.Nodes(),
		Edges:   s.graph.Edges(),
		Markers: nonNilSlice(s.graph.MarkerIndex()),
		Stats:   s.graph.Stats(),
	}
}

// Runs lists journaled executions of a block, newest first.
func (s *Service) Runs(_ context.Context, id string, limit int) ([]runlog.Entry, error) {
	if _, ok := s.store.Get(id); !ok {
		return nil, fmt.Errorf("blockservice: block %q: %w", id, apperr.ErrNotFound)
	}
	if s.runs == nil {
		return []runlog.Entry{}, nil
	}
	return s.runs.List(id, limit)
}

// Stats summarizes the session.
func (s *Service) Stats(_ context.Context) (map[string]any, error) {
	out := map[string]any{
		"blocks": s.store.Len(),
		"graph":  s.graph.Stats(),
	}
	if s.runs != nil {
		rs, err := s.runs.Stats()
		if err != nil {
			return nil, err
		}
		out["runs"] = rs
	}
	return out, nil
}

func detail(b models.Block) BlockDetail {
	res := markup.Parse(b.Content)
	return BlockDetail{
		Block:    b,
		Version:  checksum.Version(b.Content),
		Segments: nonNilSlice(res.Segments),
		Links:    nonNilSlice(res.Links),
		Tags:     nonNilSlice(res.Tags),
	}
}

func details(bs []models.Block) []BlockDetail {
	out := make([]BlockDetail, len(bs))
	for i, b := range bs {
		out[i] = detail(b)
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
