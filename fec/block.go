package fec

import "golang.org/x/xerrors"

// Default block geometry of the 255/32/8 Reed-Solomon code.
const (
	DefaultCodeLength = 255
	DefaultFecLength  = 32
	DefaultDataLength = DefaultCodeLength - DefaultFecLength
)

// Symbols are bytes, so a code word can't be longer than the field.
const maxCodeLength = 256

var ErrParams = xerrors.New("invalid block parameters")

// Params fixes the number of data and parity symbols of every block in a run.
type Params struct {
	DataLength int
	FecLength  int
}

func DefaultParams() Params {
	return Params{DataLength: DefaultDataLength, FecLength: DefaultFecLength}
}

func (p Params) CodeLength() int {
	return p.DataLength + p.FecLength
}

func (p Params) Validate() error {
	switch {
	case p.DataLength < 1:
		return xerrors.Errorf("%w: data length %d < 1", ErrParams, p.DataLength)
	case p.FecLength < 1:
		return xerrors.Errorf("%w: fec length %d < 1", ErrParams, p.FecLength)
	case p.CodeLength() > maxCodeLength:
		return xerrors.Errorf("%w: code length %d > %d", ErrParams, p.CodeLength(), maxCodeLength)
	}
	return nil
}

// Block is a single code word: DataLength data symbols followed by FecLength
// parity symbols. Both slices share one backing array.
type Block struct {
	Data   []byte
	Parity []byte

	buf []byte
}

func NewBlock(p Params) *Block {
	buf := make([]byte, p.CodeLength())
	return &Block{
		Data:   buf[:p.DataLength:p.DataLength],
		Parity: buf[p.DataLength:],
		buf:    buf,
	}
}

// Load fills the data symbols from data, zero padding up to DataLength, and
// the parity symbols from parity (nil leaves them zeroed).
// It returns the number of real data symbols.
func (b *Block) Load(data, parity []byte) int {
	n := copy(b.Data, data)
	clear(b.Data[n:])
	m := copy(b.Parity, parity)
	clear(b.Parity[m:])
	return n
}

// Word returns the whole code word, data symbols first.
func (b *Block) Word() []byte {
	return b.buf
}
