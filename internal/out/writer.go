// Package out materializes accepted SNAP-OGs as fasta (and optionally
// newick) files.
package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/fasta"
	"github.com/evolbioinfo/gotree/tree"

	"orthosnap/internal/prep"
	"orthosnap/internal/snap"
)

// Writer writes one file set per SNAP-OG under Dir. File names are
// derived from Stem and the SNAP-OG's acceptance index, so identical
// inputs always produce identical names.
type Writer struct {
	Dir       string
	Stem      string // input fasta base name, prefix of every output file
	KeepGaps  bool
	SnapTrees bool
}

// Write emits the idx-th SNAP-OG: its retained sequences as fasta and,
// if configured, its pruned subtree as newick. Files are written to a
// temporary path and renamed so no truncated output is ever visible,
// and a canceled context abandons the SNAP-OG before anything is
// created.
func (w Writer) Write(ctx context.Context, idx int, og snap.SnapOG, seqs *prep.Sequences, t *tree.Tree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := w.fastaContent(og, seqs)
	if err != nil {
		return err
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("%s.orthosnap.%d.fa", w.Stem, idx))
	if err := writeAtomic(path, []byte(content)); err != nil {
		return err
	}
	if !w.SnapTrees {
		return nil
	}
	nwk, err := snapTree(og, t)
	if err != nil {
		return err
	}
	path = filepath.Join(w.Dir, fmt.Sprintf("%s.orthosnap.%d.nwk", w.Stem, idx))
	return writeAtomic(path, []byte(nwk))
}

func (w Writer) fastaContent(og snap.SnapOG, seqs *prep.Sequences) (string, error) {
	if w.KeepGaps {
		sub := align.NewAlign(align.UNKNOWN)
		for _, id := range og.Retained {
			if err := sub.AddSequence(id, seqs.ByID[id].Residues, ""); err != nil {
				return "", fmt.Errorf("cannot build output alignment: %w", err)
			}
		}
		return fasta.WriteAlignment(sub), nil
	}
	sub := align.NewSeqBag(align.UNKNOWN)
	for _, id := range og.Retained {
		if err := sub.AddSequence(id, stripGaps(seqs.ByID[id].Residues), ""); err != nil {
			return "", fmt.Errorf("cannot build output sequences: %w", err)
		}
	}
	return fasta.WriteSequences(sub), nil
}

// snapTree renders the accepted clade with its pruned inparalogs
// removed.
func snapTree(og snap.SnapOG, t *tree.Tree) (string, error) {
	sub := t.SubTree(og.Root)
	if len(og.Pruned) > 0 {
		if err := sub.RemoveTips(false, og.Pruned...); err != nil {
			return "", fmt.Errorf("cannot prune SNAP-OG tree: %w", err)
		}
	}
	return sub.Newick() + "\n", nil
}

func stripGaps(residues string) string {
	return strings.ReplaceAll(residues, "-", "")
}

// writeAtomic writes via a temp file in the destination directory and
// renames it into place on success.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
