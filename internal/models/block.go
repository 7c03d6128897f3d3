// Package models defines the domain types shared by the session layers.
package models

import "time"

// RootID is the identifier of the block every tree hangs from.
const RootID = "root"

// BlockType classifies a block. It is fixed at creation.
type BlockType string

// Block types.
const (
	BlockText     BlockType = "text"
	BlockQuery    BlockType = "query"
	BlockDispatch BlockType = "dispatch"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockText, BlockQuery, BlockDispatch:
		return true
	}
	return false
}

// Executable reports whether blocks of this type can be sent to the collaborator.
func (t BlockType) Executable() bool {
	return t == BlockQuery || t == BlockDispatch
}

// Character limits per block kind.
const (
	TextCharLimit     = 500
	DispatchCharLimit = 500
	QueryCharLimit    = 1000
	ContextCharLimit  = 1000
)

// CharLimitFor returns the default content limit for a new block of type t.
func CharLimitFor(t BlockType) int {
	if t == BlockQuery {
		return QueryCharLimit
	}
	return TextCharLimit
}

// BlockMetadata carries per-block editing constraints.
type BlockMetadata struct {
	CharLimit int `json:"charLimit" yaml:"charLimit"`
}

// Block is a node in the editable tree.
type Block struct {
	ID          string        `json:"id" yaml:"id"`
	Content     string        `json:"content" yaml:"content"`
	ParentID    string        `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Children    []string      `json:"children" yaml:"children"`
	Type        BlockType     `json:"type" yaml:"type"`
	IsCollapsed bool          `json:"isCollapsed" yaml:"isCollapsed"`
	Metadata    BlockMetadata `json:"metadata" yaml:"metadata"`

	IsLoading bool       `json:"isLoading" yaml:"-"`
	Result    any        `json:"result,omitempty" yaml:"-"`
	Error     string     `json:"error,omitempty" yaml:"-"`
	LastRun   *time.Time `json:"lastRun,omitempty" yaml:"-"`
}

// Clone returns a deep copy of b. Result values are shared; they are treated
// as immutable once stored.
func (b Block) Clone() Block {
	out := b
	out.Children = append([]string{}, b.Children...)
	if b.LastRun != nil {
		t := *b.LastRun
		out.LastRun = &t
	}
	return out
}

// ExecutionPatch is a partial update of a block's transient execution fields.
// Nil fields are left untouched.
type ExecutionPatch struct {
	Loading *bool
	Result  any
	Error   *string
	LastRun *time.Time
}
