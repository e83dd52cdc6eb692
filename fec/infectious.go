package fec

import (
	"golang.org/x/xerrors"
	"storj.io/infectious"

	u "github.com/m-ll/backup/util"
)

// Infectious is a Reed-Solomon code where every symbol of the code word is
// its own one byte share. Decoding runs Berlekamp-Welch over all shares, so
// up to FecLength/2 corrupted symbols per block are corrected.
type Infectious struct {
	fc *infectious.FEC
	p  Params
}

func NewInfectious(p Params) (*Infectious, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fc, err := infectious.NewFEC(p.DataLength, p.CodeLength())
	if err != nil {
		return nil, u.WrapErr("new fec", err)
	}
	return &Infectious{fc: fc, p: p}, nil
}

func (c *Infectious) Params() Params { return c.p }

func (c *Infectious) Encode(b *Block) error {
	k := c.p.DataLength
	// The code is systematic: shares below k are the data symbols themselves.
	err := c.fc.Encode(b.Data, func(s infectious.Share) {
		if s.Number >= k {
			b.Parity[s.Number-k] = s.Data[0]
		}
	})
	if err != nil {
		return u.WrapErr("encode block", err)
	}
	return nil
}

func (c *Infectious) Decode(b *Block) error {
	word := b.Word()
	shares := make([]infectious.Share, len(word))
	scratch := make([]byte, len(word))
	copy(scratch, word)
	for i := range shares {
		shares[i] = infectious.Share{Number: i, Data: scratch[i : i+1]}
	}

	// Correct reorders shares and fixes their bytes, write them back by number.
	if err := c.fc.Correct(shares); err != nil {
		return xerrors.Errorf("%w: %v", ErrUncorrectable, err)
	}
	for _, s := range shares {
		word[s.Number] = s.Data[0]
	}
	return nil
}
