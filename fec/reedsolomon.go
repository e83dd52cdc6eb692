package fec

import (
	"github.com/klauspost/reedsolomon"
	"golang.org/x/xerrors"

	u "github.com/m-ll/backup/util"
)

// ReedSolomon computes parity with a systematic Vandermonde code, one shard
// per symbol. It has no error locator: Decode only verifies the code word
// and reports a corrupted block as uncorrectable.
type ReedSolomon struct {
	enc reedsolomon.Encoder
	p   Params
}

func NewReedSolomon(p Params) (*ReedSolomon, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	enc, err := reedsolomon.New(p.DataLength, p.FecLength)
	if err != nil {
		return nil, u.WrapErr("new reedsolomon", err)
	}
	return &ReedSolomon{enc: enc, p: p}, nil
}

func (c *ReedSolomon) Params() Params { return c.p }

func (c *ReedSolomon) shards(b *Block) [][]byte {
	word := b.Word()
	shards := make([][]byte, len(word))
	for i := range shards {
		shards[i] = word[i : i+1 : i+1]
	}
	return shards
}

func (c *ReedSolomon) Encode(b *Block) error {
	if err := c.enc.Encode(c.shards(b)); err != nil {
		return u.WrapErr("encode block", err)
	}
	return nil
}

func (c *ReedSolomon) Decode(b *Block) error {
	ok, err := c.enc.Verify(c.shards(b))
	if err != nil {
		return u.WrapErr("verify block", err)
	}
	if !ok {
		return xerrors.Errorf("%w: parity mismatch", ErrUncorrectable)
	}
	return nil
}
