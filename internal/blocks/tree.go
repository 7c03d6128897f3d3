package blocks

import "github.com/starford/float/internal/models"

// Source is the read side of a block store.
type Source interface {
	Get(id string) (models.Block, bool)
}

// Entry is one block of a tree walk together with its depth below the start.
type Entry struct {
	Block models.Block
	Depth int
}

// Walk returns the subtree under startID in pre-order, respecting each
// block's children order. An empty startID means the root. Ids that do not
// resolve are treated as empty subtrees and a block is never visited twice.
func Walk(src Source, startID string) []Entry {
	if startID == "" {
		startID = models.RootID
	}

	type frame struct {
		id    string
		depth int
	}
	var out []Entry
	visited := make(map[string]struct{})
	stack := []frame{{id: startID}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[f.id]; seen {
			continue
		}
		b, ok := src.Get(f.id)
		if !ok {
			continue
		}
		visited[f.id] = struct{}{}
		out = append(out, Entry{Block: b, Depth: f.depth})

		for i := len(b.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: b.Children[i], depth: f.depth + 1})
		}
	}
	return out
}
