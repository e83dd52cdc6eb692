// Package chunk splits a buffered stream into block aligned chunks, one per
// worker, and joins the per-chunk outputs back together in chunk order.
package chunk

import (
	"golang.org/x/xerrors"

	"github.com/m-ll/backup/fec"
	u "github.com/m-ll/backup/util"
)

// ErrLayout marks inputs whose sizes can't describe a valid chunk layout.
var ErrLayout = xerrors.New("invalid layout")

// Chunk is the half-open byte range [Start, Start+Size) of a stream.
type Chunk struct {
	Index int
	Start int
	Size  int
}

func (c Chunk) End() int { return c.Start + c.Size }

// Layout is an ordered list of contiguous, non-overlapping chunks.
type Layout []Chunk

func (l Layout) Total() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1].End()
}

func (l Layout) Sizes() []int {
	sizes := make([]int, len(l))
	for i, c := range l {
		sizes[i] = c.Size
	}
	return sizes
}

// Split returns one view into buf per chunk. buf must be exactly as long as
// the layout, which is checked once here instead of at every block.
func (l Layout) Split(buf []byte) ([][]byte, error) {
	if len(buf) != l.Total() {
		return nil, xerrors.Errorf("%w: buffer of %d bytes for layout of %d bytes", ErrLayout, len(buf), l.Total())
	}
	views := make([][]byte, len(l))
	for i, c := range l {
		views[i] = buf[c.Start:c.End():c.End()]
	}
	return views, nil
}

// Blocks is the number of blocks a segment of size bytes is cut into.
func Blocks(size, dataLength int) int {
	return u.CeilDiv(size, dataLength)
}

// ParitySize is the parity length produced for size bytes of data.
func ParitySize(size int, p fec.Params) int {
	return Blocks(size, p.DataLength) * p.FecLength
}

// TargetSize is the smallest multiple of dataLength that splits total bytes
// into at most workers chunks. It is 0 when there is nothing to split or no
// valid block length.
func TargetSize(total, workers, dataLength int) int {
	if total <= 0 || dataLength < 1 {
		return 0
	}
	if workers < 1 {
		workers = 1
	}
	perWorker := u.CeilDiv(total, workers)
	return u.CeilDiv(perWorker, dataLength) * dataLength
}

// Partition cuts total bytes into chunks of target bytes, the last chunk
// holding whatever remains. An empty stream has no chunks.
func Partition(total, target int) (Layout, error) {
	switch {
	case total < 0:
		return nil, xerrors.Errorf("%w: negative length %d", ErrLayout, total)
	case total == 0:
		return Layout{}, nil
	case target <= 0:
		return nil, xerrors.Errorf("%w: chunk size %d", ErrLayout, target)
	}

	layout := make(Layout, 0, u.CeilDiv(total, target))
	start := 0
	for remaining := total; remaining > 0; {
		size := target
		if remaining < target {
			size = remaining
		}
		layout = append(layout, Chunk{Index: len(layout), Start: start, Size: size})
		start += size
		remaining -= size
	}
	return layout, nil
}

// ForWorkers is the partition policy used by every processing unit.
func ForWorkers(total, workers, dataLength int) (Layout, error) {
	if dataLength < 1 {
		return nil, xerrors.Errorf("%w: data length %d", ErrLayout, dataLength)
	}
	return Partition(total, TargetSize(total, workers, dataLength))
}

// ParityLayout derives the parity chunks matching a data layout. Each parity
// chunk covers exactly the blocks of its data chunk.
func ParityLayout(data Layout, p fec.Params) Layout {
	layout := make(Layout, len(data))
	start := 0
	for i, c := range data {
		size := ParitySize(c.Size, p)
		layout[i] = Chunk{Index: i, Start: start, Size: size}
		start += size
	}
	return layout
}

// CheckSize verifies that a parity stream of paritySize bytes can belong to
// a data stream of dataSize bytes.
func CheckSize(dataSize, paritySize int, p fec.Params) error {
	if dataSize < 0 || paritySize < 0 {
		return xerrors.Errorf("%w: negative size", ErrLayout)
	}
	if paritySize%p.FecLength != 0 {
		return xerrors.Errorf("%w: parity size %d is not a multiple of %d", ErrLayout, paritySize, p.FecLength)
	}
	blocks := paritySize / p.FecLength
	lo, hi := (blocks-1)*p.DataLength+1, blocks*p.DataLength
	if blocks == 0 {
		lo = 0
	}
	if dataSize < lo || dataSize > hi {
		return xerrors.Errorf("%w: data size %d is not between %d and %d for %d parity blocks",
			ErrLayout, dataSize, lo, hi, blocks)
	}
	return nil
}
