// Package search filters session blocks by a free-text query.
package search

import (
	"strings"

	"github.com/starford/float/internal/models"
)

// Blocks returns every non-root block whose content or id contains query,
// compared case-insensitively. Surrounding spaces in query are significant; a blank query matches nothing. The input order
// is preserved.
func Blocks(blocks []models.Block, query string) []models.Block {
	if strings.TrimSpace(query) == "" {
		return []models.Block{}
	}
	q := strings.ToLower(query)

	out := []models.Block{}
	for _, b := range blocks {
		if b.ID == models.RootID {
			continue
		}
		if strings.Contains(strings.ToLower(b.Content), q) || strings.Contains(strings.ToLower(b.ID), q) {
			out = append(out, b)
		}
	}
	return out
}
