package prep

import "errors"

// Input errors are fatal: nothing is split and nothing is written if
// either input cannot be trusted.
var (
	ErrMalformedFasta = errors.New("malformed fasta")
	ErrMalformedTree  = errors.New("malformed tree")
)
