// Package blocks implements the in-memory block tree owned by a session.
package blocks

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/starford/float/internal/apperr"
	"github.com/starford/float/internal/models"
)

const (
	queryTemplate = `// Enter natural language or pseudo-code query
query {
  nodes(filter: { tags: ["core"] }) {
    id
    title
  }
}`

	dispatchTemplate = `// Dispatch system event or action
float.dispatch({
  target: "system.log",
  payload: {
    event: "manual_trigger",
    priority: "high"
  }
})`
)

// Template returns the starting content for a new block of type t.
func Template(t models.BlockType) string {
	switch t {
	case models.BlockQuery:
		return queryTemplate
	case models.BlockDispatch:
		return dispatchTemplate
	default:
		return ""
	}
}

// NodeSource resolves reference nodes for injection.
type NodeSource interface {
	Node(id string) (models.Node, bool)
}

type entry struct {
	block models.Block
	seq   uint64
}

// Store maps block ids to blocks and keeps the parent/children relation a tree
// rooted at models.RootID. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	blocks map[string]*entry
	issued map[string]struct{}
	seq    uint64

	nodes  NodeSource
	now    func() time.Time
	suffix func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for identifiers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSuffix overrides the random identifier suffix generator.
func WithSuffix(fn func() string) Option {
	return func(s *Store) { s.suffix = fn }
}

// New builds a store from seed blocks. A root block is created when the seed
// has none. The seed must form a tree: unique ids, children that exist, one
// parent per block.
func New(seed []models.Block, nodes NodeSource, opts ...Option) (*Store, error) {
	s := &Store{
		blocks: make(map[string]*entry, len(seed)+1),
		issued: make(map[string]struct{}, len(seed)+1),
		nodes:  nodes,
		now:    time.Now,
		suffix: func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, b := range seed {
		if b.ID == "" {
			return nil, fmt.Errorf("blocks: seed block with empty id")
		}
		if _, dup := s.blocks[b.ID]; dup {
			return nil, fmt.Errorf("blocks: duplicate seed id %q", b.ID)
		}
		if !b.Type.Valid() {
			return nil, fmt.Errorf("blocks: seed block %q: %w: %q", b.ID, apperr.ErrInvalidType, b.Type)
		}
		b = b.Clone()
		if b.Children == nil {
			b.Children = []string{}
		}
		if b.Metadata.CharLimit <= 0 {
			b.Metadata.CharLimit = models.CharLimitFor(b.Type)
		}
		s.insertLocked(b)
	}

	root, ok := s.blocks[models.RootID]
	if !ok {
		s.insertLocked(models.Block{
			ID:       models.RootID,
			Children: []string{},
			Type:     models.BlockText,
			Metadata: models.BlockMetadata{CharLimit: models.TextCharLimit},
		})
	} else if root.block.ParentID != "" {
		return nil, fmt.Errorf("blocks: root block must not have a parent")
	}

	if err := s.checkTreeLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) checkTreeLocked() error {
	owner := make(map[string]string, len(s.blocks))
	for id, e := range s.blocks {
		for _, child := range e.block.Children {
			if _, ok := s.blocks[child]; !ok {
				return fmt.Errorf("blocks: %q lists unknown child %q", id, child)
			}
			if child == models.RootID {
				return fmt.Errorf("blocks: root listed as child of %q", id)
			}
			if prev, seen := owner[child]; seen {
				return fmt.Errorf("blocks: %q has two parents (%q, %q)", child, prev, id)
			}
			owner[child] = id
		}
	}
	for id, e := range s.blocks {
		if id == models.RootID {
			continue
		}
		parent, ok := owner[id]
		if !ok {
			return fmt.Errorf("blocks: %q is not reachable from any parent", id)
		}
		if e.block.ParentID != parent {
			e.block.ParentID = parent
		}
	}
	// Every block has one parent; a walk from root must see them all,
	// otherwise the remainder forms a cycle.
	if seen := len(Walk(s.unlockedView(), models.RootID)); seen != len(s.blocks) {
		return fmt.Errorf("blocks: %d blocks unreachable from root (cycle)", len(s.blocks)-seen)
	}
	return nil
}

func (s *Store) insertLocked(b models.Block) {
	s.seq++
	s.blocks[b.ID] = &entry{block: b, seq: s.seq}
	s.issued[b.ID] = struct{}{}
}

// newIDLocked returns an identifier that has never been issued by this store.
func (s *Store) newIDLocked(prefix string, stamp func(time.Time) string) string {
	for {
		id := prefix + stamp(s.now()) + "-" + s.suffix()
		if _, used := s.issued[id]; !used {
			return id
		}
	}
}

func base36Millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 36) }

func decimalMillis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// Create appends a new block of type t under parentID and returns its id.
func (s *Store) Create(parentID string, t models.BlockType) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("blocks: create: %w: %q", apperr.ErrInvalidType, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.blocks[parentID]
	if !ok {
		return "", fmt.Errorf("blocks: create under %q: %w", parentID, apperr.ErrNotFound)
	}

	id := s.newIDLocked("b", base36Millis)
	s.insertLocked(models.Block{
		ID:       id,
		Content:  Template(t),
		ParentID: parentID,
		Children: []string{},
		Type:     t,
		Metadata: models.BlockMetadata{CharLimit: models.CharLimitFor(t)},
	})
	parent.block.Children = append(parent.block.Children, id)
	return id, nil
}

// Update replaces the content of a block. Content longer than the block's
// limit is rejected and the stored content is left unchanged.
func (s *Store) Update(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blocks[id]
	if !ok {
		return fmt.Errorf("blocks: update %q: %w", id, apperr.ErrNotFound)
	}
	if n := utf8.RuneCountInString(content); n > e.block.Metadata.CharLimit {
		return fmt.Errorf("blocks: update %q: %w (%d > %d)", id, apperr.ErrContentTooLong, n, e.block.Metadata.CharLimit)
	}
	e.block.Content = content
	return nil
}

// Inject copies a reference node's summary into a new text block placed first
// under root.
func (s *Store) Inject(nodeID string) (string, error) {
	if s.nodes == nil {
		return "", fmt.Errorf("blocks: inject %q: %w", nodeID, apperr.ErrNotFound)
	}
	node, ok := s.nodes.Node(nodeID)
	if !ok {
		return "", fmt.Errorf("blocks: inject %q: %w", nodeID, apperr.ErrNotFound)
	}

	marker := node.Marker
	if marker == "" {
		marker = "null"
	}
	content := fmt.Sprintf("[[%s]]\n%s\n\n[marker::%s]", node.Title, node.Description, marker)

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.blocks[models.RootID]
	id := s.newIDLocked("ctx-"+nodeID+"-", decimalMillis)
	s.insertLocked(models.Block{
		ID:       id,
		Content:  content,
		ParentID: models.RootID,
		Children: []string{},
		Type:     models.BlockText,
		Metadata: models.BlockMetadata{CharLimit: models.ContextCharLimit},
	})
	root.block.Children = append([]string{id}, root.block.Children...)
	return id, nil
}

// SetExecutionState merges transient execution fields into a block.
// Setting loading clears result and error; a result clears error; a non-empty
// error clears result.
func (s *Store) SetExecutionState(id string, p models.ExecutionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blocks[id]
	if !ok {
		return fmt.Errorf("blocks: execution state %q: %w", id, apperr.ErrNotFound)
	}
	b := &e.block
	if p.Loading != nil {
		b.IsLoading = *p.Loading
		if b.IsLoading {
			b.Result = nil
			b.Error = ""
		}
	}
	if p.Result != nil {
		b.Result = p.Result
		b.Error = ""
	}
	if p.Error != nil {
		b.Error = *p.Error
		if b.Error != "" {
			b.Result = nil
		}
	}
	if p.LastRun != nil {
		t := *p.LastRun
		b.LastRun = &t
	}
	return nil
}

// Get returns a copy of the block with the given id.
func (s *Store) Get(id string) (models.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blocks[id]
	if !ok {
		return models.Block{}, false
	}
	return e.block.Clone(), true
}

// Snapshot returns copies of every block in insertion order.
func (s *Store) Snapshot() []models.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.blocks))
	for _, e := range s.blocks {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	out := make([]models.Block, len(entries))
	for i, e := range entries {
		out[i] = e.block.Clone()
	}
	return out
}

// Len returns the number of blocks, root included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// unlockedView reads blocks without taking the lock; callers must hold it.
type unlockedView struct{ s *Store }

func (s *Store) unlockedView() Source { return unlockedView{s} }

func (v unlockedView) Get(id string) (models.Block, bool) {
	e, ok := v.s.blocks[id]
	if !ok {
		return models.Block{}, false
	}
	return e.block, true
}
