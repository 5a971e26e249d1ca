package prep

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/evolbioinfo/goalign/io/fasta"
)

// TaxonSep separates the taxon name from the gene name in sequence
// identifiers, e.g. "species_a|gene_1".
const TaxonSep = "|"

// Seq is one alignment record with its parsed taxon and the number of
// non-gap residues.
type Seq struct {
	ID       string
	Taxon    string
	Residues string
	Ungapped int
}

// Sequences indexes a gene-family alignment by sequence identifier.
type Sequences struct {
	ByID map[string]Seq
}

// TaxonOf extracts the taxon name preceding the first "|" of an
// identifier. Every downstream grouping depends on this convention.
func TaxonOf(id string) (string, error) {
	taxon, _, found := strings.Cut(id, TaxonSep)
	if !found || taxon == "" {
		return "", fmt.Errorf("%w: identifier %q has no taxon delimiter %q", ErrMalformedFasta, id, TaxonSep)
	}
	return taxon, nil
}

// ReadFasta loads the multi-copy gene family alignment.
func ReadFasta(path string) (*Sequences, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFasta(f)
}

// ParseFasta parses an aligned fasta stream and indexes it. Empty
// input, duplicate identifiers and identifiers without the taxon
// delimiter are all fatal.
func ParseFasta(r io.Reader) (*Sequences, error) {
	input, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// the alignment parser renames duplicate identifiers instead of
	// failing, so repeats must be caught on the raw headers
	if err := checkDuplicateHeaders(bytes.NewReader(input)); err != nil {
		return nil, err
	}
	aln, err := fasta.NewParser(bytes.NewReader(input)).Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFasta, err)
	}
	if aln.NbSequences() == 0 {
		return nil, fmt.Errorf("%w: no sequences in input", ErrMalformedFasta)
	}
	seqs := &Sequences{ByID: make(map[string]Seq, aln.NbSequences())}
	for _, s := range aln.Sequences() {
		id := s.Name()
		if _, dup := seqs.ByID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate identifier %q", ErrMalformedFasta, id)
		}
		taxon, err := TaxonOf(id)
		if err != nil {
			return nil, err
		}
		res := s.Sequence()
		seqs.ByID[id] = Seq{
			ID:       id,
			Taxon:    taxon,
			Residues: res,
			Ungapped: len(res) - strings.Count(res, "-"),
		}
	}
	return seqs, nil
}

// checkDuplicateHeaders rejects repeated record identifiers. The
// identifier is the first whitespace-separated field of the header
// line.
func checkDuplicateHeaders(r io.Reader) error {
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, ">") {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(line, ">"))
		if fields := strings.Fields(id); len(fields) > 0 {
			id = fields[0]
		}
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate identifier %q", ErrMalformedFasta, id)
		}
		seen[id] = true
	}
	return sc.Err()
}
