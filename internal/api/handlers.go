package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/float/internal/blockservice"
	"github.com/starford/float/internal/models"
	"github.com/starford/float/internal/termview"
)

// Handler holds API route handlers.
type Handler struct {
	svc *blockservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *blockservice.Service) *Handler {
	return &Handler{svc: svc}
}

func setETag(w http.ResponseWriter, d *BlockDetail) {
	w.Header().Set("ETag", strconv.Quote(d.Version))
}

// ListBlocks handles GET /api/blocks.
//
//	@Summary		List every block in creation order
//	@Tags			blocks
//	@Produce		json
//	@Success		200		{object}	BlockListResponse
//	@Security		BearerAuth
//	@Router			/blocks [get]
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	items := h.svc.List(r.Context())
	writeJSON(w, http.StatusOK, BlockListResponse{Blocks: items, Total: len(items)})
}

// GetBlock handles GET /api/blocks/{id}.
//
//	@Summary		Get a single block
//	@Tags			blocks
//	@Produce		json
//	@Param			id		path		string	true	"Block id"
//	@Success		200		{object}	BlockDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id} [get]
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get block", err)
		return
	}
	setETag(w, d)
	writeJSON(w, http.StatusOK, d)
}

// CreateBlock handles POST /api/blocks.
//
//	@Summary		Append a new block under a parent
//	@Tags			blocks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBlockRequest	true	"Block to create"
//	@Success		201		{object}	BlockDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks [post]
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	parent := req.ParentID
	if parent == "" {
		parent = models.RootID
	}
	d, err := h.svc.Create(r.Context(), parent, req.Type)
	if err != nil {
		writeError(w, "create block", err)
		return
	}
	setETag(w, d)
	writeJSON(w, http.StatusCreated, d)
}

// UpdateBlock handles PUT /api/blocks/{id}.
//
//	@Summary		Replace block content with optimistic concurrency
//	@Tags			blocks
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string				true	"Block id"
//	@Param			If-Match	header	string				false	"Block version for optimistic concurrency"
//	@Param			body		body	UpdateBlockRequest	true	"New content"
//	@Success		200		{object}	BlockDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id} [put]
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	d, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), *req.Content, ifMatch)
	if err != nil {
		writeError(w, "update block", err)
		return
	}
	setETag(w, d)
	writeJSON(w, http.StatusOK, d)
}

// ExecuteBlock handles POST /api/blocks/{id}/execute.
//
//	@Summary		Run a query or dispatch block
//	@Description	Returns 202 with the block in the loading state; the outcome arrives as a block.execution event. With wait=true the call blocks and returns 200 with the final block.
//	@Tags			blocks
//	@Produce		json
//	@Param			id		path		string	true	"Block id"
//	@Param			wait	query		bool	false	"Wait for the outcome"
//	@Success		200		{object}	BlockDetail
//	@Success		202		{object}	BlockDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id}/execute [post]
func (h *Handler) ExecuteBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		d, err := h.svc.Execute(r.Context(), id)
		if err != nil {
			writeError(w, "execute block", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}
	d, err := h.svc.Start(r.Context(), id)
	if err != nil {
		writeError(w, "execute block", err)
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

// BlockRuns handles GET /api/blocks/{id}/runs.
//
//	@Summary		List journaled executions of a block
//	@Tags			blocks
//	@Produce		json
//	@Param			id		path		string	true	"Block id"
//	@Param			limit	query		int		false	"Max entries"
//	@Success		200		{object}	RunListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id}/runs [get]
func (h *Handler) BlockRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// Tree handles GET /api/tree.
//
//	@Summary		Walk the block tree in display order
//	@Tags			blocks
//	@Produce		json
//	@Produce		plain
//	@Param			from	query		string	false	"Start block id (default root)"
//	@Param			format	query		string	false	"Output format"	Enums(json, text)
//	@Success		200		{object}	TreeResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	entries, err := h.svc.Tree(r.Context(), from)
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(termview.Render(h.svc.Entries(from))))
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Entries: entries})
}

// Search handles GET /api/search.
//
//	@Summary		Filter blocks by a case-insensitive substring
//	@Description	A blank query returns an empty result.
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Search text"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	results := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListNodes handles GET /api/nodes.
//
//	@Summary		List reference nodes
//	@Tags			graph
//	@Produce		json
//	@Success		200		{object}	NodeListResponse
//	@Security		BearerAuth
//	@Router			/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: h.svc.Nodes(r.Context())})
}

// InjectNode handles POST /api/nodes/{id}/inject.
//
//	@Summary		Add a context block for a reference node
//	@Tags			graph
//	@Produce		json
//	@Param			id		path		string	true	"Node id"
//	@Success		201		{object}	BlockDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/inject [post]
func (h *Handler) InjectNode(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Inject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "inject node", err)
		return
	}
	setETag(w, d)
	writeJSON(w, http.StatusCreated, d)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the reference graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Graph(r.Context()))
}

// Stats handles GET /api/stats.
//
//	@Summary		Session counters
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
