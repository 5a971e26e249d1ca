// Package snap splits a multi-copy gene family tree into SNAP-OGs:
// maximal subtrees that hold exactly one sequence per taxon once
// species-specific inparalogs are pruned.
package snap

// InparalogPolicy selects which copy of a species-specific inparalog
// set is kept. Sequence-length policies count non-gap residues; branch
// policies use tip-to-root path lengths.
type InparalogPolicy int

const (
	LongestSeqLen InparalogPolicy = iota
	ShortestSeqLen
	MedianSeqLen
	LongestBranchLen
	ShortestBranchLen
	MedianBranchLen
)

// ParsePolicy maps the command-line spellings to policies.
var ParsePolicy = map[string]InparalogPolicy{
	"longest_seq_len":     LongestSeqLen,
	"shortest_seq_len":    ShortestSeqLen,
	"median_seq_len":      MedianSeqLen,
	"longest_branch_len":  LongestBranchLen,
	"shortest_branch_len": ShortestBranchLen,
	"median_branch_len":   MedianBranchLen,
}

func (p InparalogPolicy) String() string {
	for name, policy := range ParsePolicy {
		if policy == p {
			return name
		}
	}
	return "unknown"
}

// Config carries one run's options. It is built once in main and
// never mutated afterwards.
type Config struct {
	Support   float64         // bipartition collapse threshold, 0 disables
	Occupancy int             // minimum taxa per SNAP-OG
	Policy    InparalogPolicy // inparalog to keep
	Rooted    bool            // input tree is already rooted
	SnapTrees bool            // also write newick files of SNAP-OGs
	KeepGaps  bool            // keep gap characters in output sequences
	OutDir    string          // output directory
}
