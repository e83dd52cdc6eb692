package segment

import (
	"go.uber.org/zap"

	"github.com/m-ll/backup/chunk"
	"github.com/m-ll/backup/fec"
)

type Encoder struct {
	codec fec.Codec
	log   *zap.Logger
}

func NewEncoder(codec fec.Codec, log *zap.Logger) *Encoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Encoder{codec: codec, log: log}
}

func (e *Encoder) Params() fec.Params { return e.codec.Params() }

// Encode computes the parity of one chunk, FecLength bytes per block in block
// order. The final partial block is encoded as if zero padded. A block the
// codec refuses ends the chunk: its parity and everything after it is missing.
func (e *Encoder) Encode(index int, data []byte) *Result {
	p := e.codec.Params()
	r := &Result{Index: index}
	if len(data) == 0 {
		r.Empty = true
		e.log.Warn("empty segment", zap.String("op", "encode"), zap.Int("chunk", index))
		return r
	}

	r.Output = make([]byte, 0, chunk.ParitySize(len(data), p))
	blk := fec.NewBlock(p)
	for start, ix := 0, 0; start < len(data); start, ix = start+p.DataLength, ix+1 {
		end := min(start+p.DataLength, len(data))
		blk.Load(data[start:end], nil)
		r.Blocks++

		if err := e.codec.Encode(blk); err != nil {
			be := r.fail("encode", ix, err)
			e.log.Warn("encode block failed", zap.Int("chunk", index), zap.Int("block", ix), zap.Error(be.Err))
			break
		}
		r.Output = append(r.Output, blk.Parity...)
	}
	return r
}
