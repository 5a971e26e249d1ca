/*
orthosnap splits multi-copy gene family trees into subgroups of
single-copy orthologs (SNAP-OGs) and prunes species-specific
inparalogs, keeping one representative sequence per taxon.

usage: orthosnap -t <tree> -f <fasta> [flags]

inputs:

	<tree>	newick gene family tree; leaf labels must match the fasta
	<fasta>	gene family alignment; identifiers formatted taxon|gene

flags:

	-t file    newick tree file (required)
	-f file    fasta alignment file (required)
	-s float   support threshold for bipartition collapsing, 0 disables
	-o int     occupancy: minimum number of taxa per SNAP-OG
	-ip mode   species-specific inparalog to keep
	-op dir    output directory
	-r         input tree is already rooted (default: midpoint root)
	-st        also write newick files of SNAP-OGs
	-g         keep gap characters in output sequences
	-n int     number of parallel output writers

example:

	orthosnap -t family.nwk -f family.fa -op snapogs/
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"orthosnap/internal/out"
	"orthosnap/internal/prep"
	"orthosnap/internal/snap"
)

var errPrefix = color.New(color.FgRed).Sprint("error:")

type args struct {
	treeFile  string
	fastaFile string
	nprocs    int
	cfg       snap.Config
}

func main() {
	log.SetFlags(0)
	a := parseArgs()
	seqs, err := prep.ReadFasta(a.fastaFile)
	if err != nil {
		fatal(err)
	}
	data, err := prep.ReadTree(a.treeFile, seqs, a.cfg.Rooted, a.cfg.Support)
	if err != nil {
		fatal(err)
	}
	log.Printf("%d sequences loaded", len(seqs.ByID))
	ogs := snap.Split(data, seqs, a.cfg)
	log.Printf("%d SNAP-OGs identified", len(ogs))
	if writeAll(ogs, seqs, data, a) > 0 {
		os.Exit(1)
	}
}

// writeAll materializes every SNAP-OG, a bounded number in flight at
// once. A failed write is logged and does not stop the others; the
// number of failures is returned. Interrupting cancels cleanly with
// no partial files left behind.
func writeAll(ogs []snap.SnapOG, seqs *prep.Sequences, data *prep.TreeData, a args) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	w := out.Writer{
		Dir:       a.cfg.OutDir,
		Stem:      filepath.Base(a.fastaFile),
		KeepGaps:  a.cfg.KeepGaps,
		SnapTrees: a.cfg.SnapTrees,
	}
	var failed atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.nprocs)
	for i, og := range ogs {
		i, og := i, og
		g.Go(func() error {
			if err := w.Write(ctx, i, og, seqs, data.Tree); err != nil {
				log.Printf("%s %v", errPrefix, err)
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	return int(failed.Load())
}

func parseArgs() args {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr,
			"usage: orthosnap -t <tree> -f <fasta> [flags]\n",
			"\n",
			"inputs:\n\n",
			"  <tree>\tnewick gene family tree; leaf labels must match the fasta\n",
			"  <fasta>\tgene family alignment; identifiers formatted taxon|gene\n",
			"\n",
			"flags:\n\n",
		)
		flag.PrintDefaults()
	}
	treeFile := flag.String("t", "", "newick tree file of the multi-copy gene family")
	fastaFile := flag.String("f", "", "fasta alignment of the multi-copy gene family")
	support := flag.Float64("s", 80, "support threshold for bipartition collapsing (0 disables)")
	occupancy := flag.Int("o", 4, "occupancy: minimum number of taxa per SNAP-OG")
	ip := flag.String("ip", "longest_seq_len", "species-specific inparalog to keep "+policyNames())
	outDir := flag.String("op", ".", "output directory")
	rooted := flag.Bool("r", false, "input tree is already rooted (default: midpoint root)")
	snapTrees := flag.Bool("st", false, "also write newick files of SNAP-OGs")
	keepGaps := flag.Bool("g", false, "keep gap characters in output sequences")
	nprocs := flag.Int("n", runtime.GOMAXPROCS(0), "number of parallel output writers")
	flag.Parse()
	if *treeFile == "" || *fastaFile == "" {
		usageError("both -t and -f are required")
	}
	policy, ok := snap.ParsePolicy[*ip]
	if !ok {
		usageError(fmt.Sprintf("%q is not a valid inparalog policy", *ip))
	}
	if *occupancy < 2 {
		usageError("occupancy must be at least 2")
	}
	return args{
		treeFile:  *treeFile,
		fastaFile: *fastaFile,
		nprocs:    clampProcs(*nprocs),
		cfg: snap.Config{
			Support:   *support,
			Occupancy: *occupancy,
			Policy:    policy,
			Rooted:    *rooted,
			SnapTrees: *snapTrees,
			KeepGaps:  *keepGaps,
			OutDir:    *outDir,
		},
	}
}

func policyNames() string {
	names := make([]string, 0, len(snap.ParsePolicy))
	for name := range snap.ParsePolicy {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v", names)
}

func clampProcs(nprocs int) int {
	maxProcs := runtime.GOMAXPROCS(0)
	switch {
	case nprocs > maxProcs:
		log.Printf("%d is greater than available processes (%d); limit set to %d", nprocs, maxProcs, maxProcs)
		return maxProcs
	case nprocs <= 0:
		return 1
	default:
		return nprocs
	}
}

func usageError(message string) {
	fmt.Fprintln(os.Stderr, errPrefix, message)
	flag.Usage()
	os.Exit(1)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, errPrefix, err)
	os.Exit(1)
}
