package segment

import (
	"bytes"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/m-ll/backup/chunk"
	"github.com/m-ll/backup/fec"
)

type Decoder struct {
	codec  fec.Codec
	policy Policy
	log    *zap.Logger
}

func NewDecoder(codec fec.Codec, policy Policy, log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{codec: codec, policy: policy, log: log}
}

func (d *Decoder) Params() fec.Params { return d.codec.Params() }

func (d *Decoder) Policy() Policy { return d.policy }

// Decode corrects one data chunk with its parity chunk and returns the
// recovered data. parity must hold exactly FecLength bytes for every block
// of data; a mismatch is reported before any block is decoded.
func (d *Decoder) Decode(index int, data, parity []byte) (*Result, error) {
	p := d.codec.Params()
	if want := chunk.ParitySize(len(data), p); len(parity) != want {
		return nil, xerrors.Errorf("%w: chunk %d has %d parity bytes for %d data bytes, want %d",
			chunk.ErrLayout, index, len(parity), len(data), want)
	}

	r := &Result{Index: index}
	if len(data) == 0 {
		r.Empty = true
		d.log.Warn("empty segment", zap.String("op", "decode"), zap.Int("chunk", index))
		return r, nil
	}

	r.Output = make([]byte, 0, len(data))
	blk := fec.NewBlock(p)
	orig := make([]byte, p.CodeLength())
	for ix := 0; ix < chunk.Blocks(len(data), p.DataLength); ix++ {
		start := ix * p.DataLength
		end := min(start+p.DataLength, len(data))
		fecStart := ix * p.FecLength
		n := blk.Load(data[start:end], parity[fecStart:fecStart+p.FecLength])
		copy(orig, blk.Word())
		r.Blocks++

		if err := d.codec.Decode(blk); err != nil {
			be := r.fail("decode", ix, err)
			d.log.Warn("decode block failed",
				zap.Int("chunk", index), zap.Int("block", ix), zap.Stringer("policy", d.policy), zap.Error(be.Err))
			if d.policy == Stop {
				break
			}
			if d.policy == Keep {
				r.Output = append(r.Output, data[start:end]...)
			}
			continue
		}

		if !bytes.Equal(orig, blk.Word()) {
			r.Repaired++
			d.log.Debug("block repaired", zap.Int("chunk", index), zap.Int("block", ix))
		}
		// Only the real symbols, the padding of a short block is dropped.
		r.Output = append(r.Output, blk.Data[:n]...)
	}
	return r, nil
}
