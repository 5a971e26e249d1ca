package snap

import (
	"slices"
	"sort"

	"github.com/evolbioinfo/gotree/tree"
	"gonum.org/v1/gonum/stat"

	"orthosnap/internal/prep"
)

// Evaluation is the outcome of testing one candidate clade. A
// compatible clade holds exactly one retained leaf per taxon.
type Evaluation struct {
	Compatible bool
	Retained   []string // one identifier per taxon, taxon-sorted
	Pruned     []string // inparalogs dropped from the clade, sorted
}

// Evaluate decides whether the subtree hanging below node (away from
// parent; nil parent means node is the root) could become a SNAP-OG,
// and which inparalogs to prune to get there. A clade qualifies when
// it spans at least two taxa and every multi-copy taxon's leaves form
// their own subclade, so that pruning all copies but one leaves the
// clade single-copy.
func Evaluate(node, parent *tree.Node, data *prep.TreeData, seqs *prep.Sequences, policy InparalogPolicy) Evaluation {
	byTaxon := make(map[string][]string)
	eachLeaf(node, parent, func(leaf *tree.Node) {
		taxon := seqs.ByID[leaf.Name()].Taxon
		byTaxon[taxon] = append(byTaxon[taxon], leaf.Name())
	})
	if len(byTaxon) < 2 {
		return Evaluation{}
	}
	multi := make(map[string]int)
	for taxon, ids := range byTaxon {
		if len(ids) > 1 {
			multi[taxon] = len(ids)
		}
	}
	if len(multi) > 0 && !inparalogsResolvable(node, parent, seqs, multi) {
		return Evaluation{}
	}
	taxa := make([]string, 0, len(byTaxon))
	for taxon := range byTaxon {
		taxa = append(taxa, taxon)
	}
	sort.Strings(taxa)
	ev := Evaluation{Compatible: true}
	for _, taxon := range taxa {
		keep := pickRepresentative(byTaxon[taxon], seqs, data, policy)
		ev.Retained = append(ev.Retained, keep)
		for _, id := range byTaxon[taxon] {
			if id != keep {
				ev.Pruned = append(ev.Pruned, id)
			}
		}
	}
	sort.Strings(ev.Pruned)
	return ev
}

// children returns the neighbors of node away from parent. With a nil
// parent (the root) all neighbors are children.
func children(node, parent *tree.Node) []*tree.Node {
	kids := make([]*tree.Node, 0, node.Nneigh())
	for _, n := range node.Neigh() {
		if n != parent {
			kids = append(kids, n)
		}
	}
	return kids
}

// eachLeaf visits every tip of the clade below node. The walk uses an
// explicit stack; gene-family trees can be deep and unbalanced.
func eachLeaf(node, parent *tree.Node, fn func(leaf *tree.Node)) {
	type frame struct{ node, parent *tree.Node }
	stack := []frame{{node, parent}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node.Tip() {
			fn(f.node)
			continue
		}
		for _, c := range children(f.node, f.parent) {
			stack = append(stack, frame{c, f.node})
		}
	}
}

// inparalogsResolvable reports whether every multi-copy taxon's leaves
// form their own subclade inside the candidate clade. want maps each
// multi-copy taxon to its copy count. Paralogs interleaved with other
// taxa cannot be reduced to one leaf per taxon by pruning, so such
// clades are rejected rather than partially pruned.
func inparalogsResolvable(node, parent *tree.Node, seqs *prep.Sequences, want map[string]int) bool {
	type frame struct{ node, parent *tree.Node }
	order := []frame{}
	stack := []frame{{node, parent}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, f)
		for _, c := range children(f.node, f.parent) {
			stack = append(stack, frame{c, f.node})
		}
	}
	type count struct {
		total    int
		perTaxon map[string]int
	}
	counts := make(map[*tree.Node]*count, len(order))
	resolved := make(map[string]bool, len(want))
	// reversed discovery order puts children before their parent
	for i := len(order) - 1; i >= 0; i-- {
		f := order[i]
		c := &count{perTaxon: make(map[string]int)}
		if f.node.Tip() {
			c.total = 1
			taxon := seqs.ByID[f.node.Name()].Taxon
			if _, tracked := want[taxon]; tracked {
				c.perTaxon[taxon] = 1
			}
		} else {
			for _, child := range children(f.node, f.parent) {
				cc := counts[child]
				c.total += cc.total
				for taxon, n := range cc.perTaxon {
					c.perTaxon[taxon] += n
				}
			}
		}
		counts[f.node] = c
		for taxon, n := range c.perTaxon {
			if n == want[taxon] && c.total == n {
				resolved[taxon] = true
			}
		}
	}
	return len(resolved) == len(want)
}

// pickRepresentative chooses which copy of a taxon survives pruning.
// Ties on the policy metric go to the lexicographically smallest
// identifier so reruns select the same sequence.
func pickRepresentative(ids []string, seqs *prep.Sequences, data *prep.TreeData, policy InparalogPolicy) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	metric := func(id string) float64 {
		switch policy {
		case LongestBranchLen, ShortestBranchLen, MedianBranchLen:
			return data.RootDist[id]
		default:
			return float64(seqs.ByID[id].Ungapped)
		}
	}
	vals := make([]float64, len(sorted))
	for i, id := range sorted {
		vals[i] = metric(id)
	}
	var target float64
	switch policy {
	case ShortestSeqLen, ShortestBranchLen:
		target = slices.Min(vals)
	case MedianSeqLen, MedianBranchLen:
		asc := append([]float64(nil), vals...)
		sort.Float64s(asc)
		target = stat.Quantile(0.5, stat.Empirical, asc, nil)
	default:
		target = slices.Max(vals)
	}
	for i, id := range sorted {
		if vals[i] == target {
			return id
		}
	}
	panic("no inparalog matches the selection metric")
}
