package prep

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/evolbioinfo/gotree/io/newick"
	"github.com/evolbioinfo/gotree/tree"
)

// TreeData is the prepared gene-family tree plus the leaf metadata the
// splitter needs. The tree is read-only after preparation.
type TreeData struct {
	Tree     *tree.Tree
	TipRank  map[string]int     // tip name -> stable index, lexicographic
	RootDist map[string]float64 // tip name -> tip-to-root path length
}

// ReadTree parses the newick gene-family tree and prepares it for
// splitting: leaf labels are checked one-to-one against the loaded
// sequences, the tree is midpoint rooted unless already rooted, and
// bipartitions below the support threshold are collapsed (0 disables
// collapsing).
func ReadTree(path string, seqs *Sequences, rooted bool, support float64) (*TreeData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return PrepareTree(f, seqs, rooted, support)
}

// PrepareTree is ReadTree for an already-open stream.
func PrepareTree(r io.Reader, seqs *Sequences, rooted bool, support float64) (*TreeData, error) {
	t, err := newick.NewParser(r).Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if err := crossValidate(t, seqs); err != nil {
		return nil, err
	}
	if !rooted {
		t.RerootMidPoint()
	}
	if support > 0 {
		// root-adjacent bipartitions collapse like any other
		t.CollapseLowSupport(support, true)
	}
	t.ReinitIndexes()
	return &TreeData{
		Tree:     t,
		TipRank:  tipRank(t),
		RootDist: rootDist(t),
	}, nil
}

// crossValidate enforces the one-to-one correspondence between tree
// leaves and alignment identifiers.
func crossValidate(t *tree.Tree, seqs *Sequences) error {
	inTree := make(map[string]bool, len(seqs.ByID))
	for _, tip := range t.Tips() {
		name := tip.Name()
		if inTree[name] {
			return fmt.Errorf("%w: duplicate leaf label %q", ErrMalformedTree, name)
		}
		inTree[name] = true
		if _, ok := seqs.ByID[name]; !ok {
			return fmt.Errorf("%w: leaf %q has no sequence in the alignment", ErrMalformedTree, name)
		}
	}
	for id := range seqs.ByID {
		if !inTree[id] {
			return fmt.Errorf("%w: sequence %q has no leaf in the tree", ErrMalformedTree, id)
		}
	}
	return nil
}

func tipRank(t *tree.Tree) map[string]int {
	names := t.AllTipNames()
	sort.Strings(names)
	rank := make(map[string]int, len(names))
	for i, name := range names {
		rank[name] = i
	}
	return rank
}

// rootDist accumulates tip-to-root path lengths in one pre-order pass.
// Edges without a length count as zero.
func rootDist(t *tree.Tree) map[string]float64 {
	dist := make(map[*tree.Node]float64)
	dist[t.Root()] = 0
	t.PreOrder(func(cur, prev *tree.Node, e *tree.Edge) (keep bool) {
		if prev != nil {
			l := e.Length()
			if l < 0 {
				l = 0
			}
			dist[cur] = dist[prev] + l
		}
		return true
	})
	result := make(map[string]float64, len(dist))
	for _, tip := range t.Tips() {
		result[tip.Name()] = dist[tip]
	}
	return result
}
