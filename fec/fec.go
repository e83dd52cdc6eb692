// Package fec holds the fixed-size block and the contract of the block codec
// that computes and checks its parity symbols.
package fec

import (
	"golang.org/x/xerrors"
)

var ErrUncorrectable = xerrors.New("block is not correctable")

// Codec is a block forward-error-correction code with fixed Params.
// Implementations must be safe for concurrent use by many workers.
type Codec interface {
	// Encode computes b.Parity from b.Data.
	Encode(b *Block) error

	// Decode checks the block and corrects its symbols in place.
	Decode(b *Block) error

	Params() Params
}

// New creates the codec registered under name.
func New(name string, p Params) (Codec, error) {
	switch name {
	case "infectious", "":
		return NewInfectious(p)
	case "reedsolomon":
		return NewReedSolomon(p)
	default:
		return nil, xerrors.Errorf("unknown codec %q", name)
	}
}
