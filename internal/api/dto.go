package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/float/internal/blockservice"
	"github.com/starford/float/internal/models"
	"github.com/starford/float/internal/runlog"
)

// CreateBlockRequest is the request body for creating a block.
type CreateBlockRequest struct {
	ParentID string           `json:"parentId" example:"root"`
	Type     models.BlockType `json:"type" example:"query" validate:"required"`
}

// Validate checks the request fields.
func (r *CreateBlockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required,
			validation.In(models.BlockText, models.BlockQuery, models.BlockDispatch)),
	)
}

// UpdateBlockRequest is the request body for updating a block. An empty
// string clears the content; a missing field is rejected.
type UpdateBlockRequest struct {
	Content *string `json:"content" example:"query { nodes { id } }" validate:"required"`
}

// Validate checks the request fields.
func (r *UpdateBlockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.NotNil),
	)
}

// BlockDetail is the full block response type (aliased from the domain layer).
type BlockDetail = blockservice.BlockDetail

// TreeEntry is one line of a tree response (aliased from the domain layer).
type TreeEntry = blockservice.TreeEntry

// GraphResponse is the reference graph (aliased from the domain layer).
type GraphResponse = blockservice.GraphView

// RunEntry is one journaled execution (aliased from the run log).
type RunEntry = runlog.Entry

// BlockListResponse wraps block listings.
type BlockListResponse struct {
	Blocks []BlockDetail `json:"blocks" validate:"required"`
	Total  int           `json:"total" example:"5" validate:"required"`
}

// TreeResponse wraps a tree walk.
type TreeResponse struct {
	Entries []TreeEntry `json:"entries" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []BlockDetail `json:"results" validate:"required"`
}

// NodeListResponse wraps reference nodes.
type NodeListResponse struct {
	Nodes []models.Node `json:"nodes" validate:"required"`
}

// RunListResponse wraps journaled executions.
type RunListResponse struct {
	Runs []RunEntry `json:"runs" validate:"required"`
}
