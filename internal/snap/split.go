package snap

import (
	"github.com/evolbioinfo/gotree/tree"
	"github.com/fredericlemoine/bitset"

	"orthosnap/internal/prep"
)

// SnapOG is one accepted single-copy subtree: its root node for
// provenance plus the retained and pruned leaf identifiers.
type SnapOG struct {
	Root     *tree.Node
	Retained []string
	Pruned   []string
}

// Split decomposes the prepared tree into disjoint single-copy
// compatible clades. The walk is pre-order and greedy: a clade is
// accepted before its descendants are considered, so larger ancestral
// clades win over nested ones and an accepted subtree is consumed
// whole. Leaves that never join a qualifying clade stay unassigned.
func Split(data *prep.TreeData, seqs *prep.Sequences, cfg Config) []SnapOG {
	covered := bitset.New(uint(len(data.TipRank)))
	ogs := []SnapOG{}
	type frame struct{ node, parent *tree.Node }
	stack := []frame{{data.Tree.Root(), nil}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node.Tip() {
			continue
		}
		ev := Evaluate(f.node, f.parent, data, seqs, cfg.Policy)
		if ev.Compatible && len(ev.Retained) >= cfg.Occupancy {
			claim(covered, data.TipRank, ev.Retained)
			claim(covered, data.TipRank, ev.Pruned)
			ogs = append(ogs, SnapOG{Root: f.node, Retained: ev.Retained, Pruned: ev.Pruned})
			continue
		}
		kids := children(f.node, f.parent)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.node})
		}
	}
	return ogs
}

// claim marks leaves as consumed by an accepted clade. Accepting a
// node before recursing into it guarantees disjoint coverage, so a
// doubly-claimed leaf means the traversal itself is broken.
func claim(covered *bitset.BitSet, rank map[string]int, ids []string) {
	for _, id := range ids {
		i := uint(rank[id])
		if covered.Test(i) {
			panic("leaf assigned to two SNAP-OGs")
		}
		covered.Set(i)
	}
}
