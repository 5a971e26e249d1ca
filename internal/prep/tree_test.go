package prep

import (
	"errors"
	"strings"
	"testing"
)

const triadFasta = ">A|1\nATGCA\n>B|1\nATGCA\n>C|1\nATGCA\n"

func loadSeqs(t *testing.T, fasta string) *Sequences {
	t.Helper()
	seqs, err := ParseFasta(strings.NewReader(fasta))
	if err != nil {
		t.Fatalf("ParseFasta: %v", err)
	}
	return seqs
}

func TestPrepareTree(t *testing.T) {
	seqs := loadSeqs(t, triadFasta)
	data, err := PrepareTree(strings.NewReader("((A|1:1,B|1:2):1,C|1:4);"), seqs, true, 0)
	if err != nil {
		t.Fatalf("PrepareTree: %v", err)
	}
	if got := len(data.Tree.Tips()); got != 3 {
		t.Errorf("tree has %d tips, want 3", got)
	}
	wantRank := map[string]int{"A|1": 0, "B|1": 1, "C|1": 2}
	for name, want := range wantRank {
		if got := data.TipRank[name]; got != want {
			t.Errorf("TipRank[%s] = %d, want %d", name, got, want)
		}
	}
	wantDist := map[string]float64{"A|1": 2, "B|1": 3, "C|1": 4}
	for name, want := range wantDist {
		if got := data.RootDist[name]; got != want {
			t.Errorf("RootDist[%s] = %v, want %v", name, got, want)
		}
	}
}

func TestPrepareTreeErrors(t *testing.T) {
	seqs := loadSeqs(t, triadFasta)
	tests := []struct {
		name   string
		nwk    string
		wantIn string
	}{
		{"leaf missing from alignment", "((A|1,X|9),C|1);", "X|9"},
		{"sequence missing from tree", "(A|1,C|1);", "B|1"},
		{"unbalanced parentheses", "((A|1,B|1,C|1;", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PrepareTree(strings.NewReader(tc.nwk), seqs, true, 0)
			if !errors.Is(err, ErrMalformedTree) {
				t.Fatalf("error = %v, want ErrMalformedTree", err)
			}
			if tc.wantIn != "" && !strings.Contains(err.Error(), tc.wantIn) {
				t.Errorf("error %q does not name %q", err, tc.wantIn)
			}
		})
	}
}

func TestMidpointRooting(t *testing.T) {
	seqs := loadSeqs(t, triadFasta)
	data, err := PrepareTree(strings.NewReader("(A|1:1,B|1:1,C|1:4);"), seqs, false, 0)
	if err != nil {
		t.Fatalf("PrepareTree: %v", err)
	}
	if got := data.Tree.Root().Nneigh(); got != 2 {
		t.Errorf("root degree after midpoint rooting = %d, want 2", got)
	}
	if got := len(data.Tree.Tips()); got != 3 {
		t.Errorf("tree has %d tips after rooting, want 3", got)
	}
}

func TestCollapseLowSupport(t *testing.T) {
	seqs := loadSeqs(t, ">A|1\nATGCA\n>B|1\nATGCA\n>C|1\nATGCA\n>D|1\nATGCA\n")
	data, err := PrepareTree(strings.NewReader("((A|1:1,B|1:1)50:1,(C|1:1,D|1:1)90:1);"), seqs, true, 80)
	if err != nil {
		t.Fatalf("PrepareTree: %v", err)
	}
	// the 50-support bipartition collapses into a root polytomy
	if got := data.Tree.Root().Nneigh(); got != 3 {
		t.Errorf("root degree after collapsing = %d, want 3", got)
	}
	if got := len(data.Tree.Tips()); got != 4 {
		t.Errorf("tree has %d tips after collapsing, want 4", got)
	}
}
