package blocks

import (
	"testing"

	"github.com/starford/float/internal/models"
)

type mapSource map[string]models.Block

func (m mapSource) Get(id string) (models.Block, bool) {
	b, ok := m[id]
	return b, ok
}

func TestWalk_PreOrderWithDepth(t *testing.T) {
	src := mapSource{
		"root": {ID: "root", Children: []string{"a", "d"}},
		"a":    {ID: "a", Children: []string{"b", "c"}},
		"b":    {ID: "b"},
		"c":    {ID: "c"},
		"d":    {ID: "d"},
	}

	got := Walk(src, "")
	want := []struct {
		id    string
		depth int
	}{{"root", 0}, {"a", 1}, {"b", 2}, {"c", 2}, {"d", 1}}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Block.ID != w.id || got[i].Depth != w.depth {
			t.Errorf("entry %d = (%s,%d), want (%s,%d)", i, got[i].Block.ID, got[i].Depth, w.id, w.depth)
		}
	}
}

func TestWalk_SkipsDanglingChildren(t *testing.T) {
	src := mapSource{
		"root": {ID: "root", Children: []string{"gone", "a"}},
		"a":    {ID: "a"},
	}
	got := Walk(src, "root")
	if len(got) != 2 || got[1].Block.ID != "a" {
		t.Errorf("walk = %+v", got)
	}
}

func TestWalk_StopsOnCycle(t *testing.T) {
	src := mapSource{
		"root": {ID: "root", Children: []string{"a"}},
		"a":    {ID: "a", Children: []string{"root"}},
	}
	if got := Walk(src, "root"); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestWalk_UnknownStart(t *testing.T) {
	if got := Walk(mapSource{}, "nope"); len(got) != 0 {
		t.Errorf("walk = %+v, want empty", got)
	}
}

func TestWalk_Subtree(t *testing.T) {
	s := testStore(t)
	child, _ := s.Create("b1", models.BlockText)

	got := Walk(s, "b1")
	if len(got) != 2 || got[0].Block.ID != "b1" || got[1].Block.ID != child || got[1].Depth != 1 {
		t.Errorf("walk = %+v", got)
	}
}
