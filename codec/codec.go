// Package codec runs a block codec over whole files or buffers: it cuts the
// stream into chunks, hands them to a processing unit and puts the results
// back together.
package codec

import (
	"context"
	"io"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/m-ll/backup/chunk"
	"github.com/m-ll/backup/fec"
	fio "github.com/m-ll/backup/io"
	proc_unit "github.com/m-ll/backup/pu"
	"github.com/m-ll/backup/segment"
	u "github.com/m-ll/backup/util"
)

var mon = monkit.Package()

type Config struct {
	// Workers bounds the number of chunks, runtime.NumCPU() if not positive.
	Workers int
	Policy  segment.Policy
	Logger  *zap.Logger
}

type Codec struct {
	fec fec.Codec
	pu  proc_unit.PU
	fs  afero.Fs

	workers int
	policy  segment.Policy
	log     *zap.Logger
}

func NewCodec(fc fec.Codec, pu proc_unit.PU, fs afero.Fs, cfg Config) *Codec {
	c := &Codec{
		fec:     fc,
		pu:      pu,
		fs:      fs,
		workers: cfg.Workers,
		policy:  cfg.Policy,
		log:     cfg.Logger,
	}
	if c.workers < 1 {
		c.workers = runtime.NumCPU()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

func (c *Codec) Params() fec.Params { return c.fec.Params() }

// EncodeBytes computes the parity of data. The parity is Report.Output().
func (c *Codec) EncodeBytes(ctx context.Context, data []byte) (_ *Report, err error) {
	defer mon.Task()(&ctx)(&err)
	p := c.fec.Params()

	layout, err := chunk.ForWorkers(len(data), c.workers, p.DataLength)
	if err != nil {
		return nil, err
	}
	views, err := layout.Split(data)
	if err != nil {
		return nil, err
	}
	c.log.Info("encode",
		zap.String("size", humanize.IBytes(uint64(len(data)))),
		zap.Int("chunks", len(layout)),
		zap.Int("workers", c.workers))

	results, err := c.pu.Encode(ctx, segment.NewEncoder(c.fec, c.log), views)
	if err != nil {
		return nil, u.WrapErr("encode", err)
	}
	return c.report(data, results), nil
}

// DecodeBytes corrects data with its parity. The recovered data is
// Report.Output().
func (c *Codec) DecodeBytes(ctx context.Context, data, parity []byte) (_ *Report, err error) {
	defer mon.Task()(&ctx)(&err)
	p := c.fec.Params()

	if err := chunk.CheckSize(len(data), len(parity), p); err != nil {
		return nil, err
	}
	layout, err := chunk.ForWorkers(len(data), c.workers, p.DataLength)
	if err != nil {
		return nil, err
	}
	views, err := layout.Split(data)
	if err != nil {
		return nil, err
	}
	parityViews, err := chunk.ParityLayout(layout, p).Split(parity)
	if err != nil {
		return nil, err
	}
	c.log.Info("decode",
		zap.String("size", humanize.IBytes(uint64(len(data)))),
		zap.String("parity", humanize.IBytes(uint64(len(parity)))),
		zap.Int("chunks", len(layout)),
		zap.Stringer("policy", c.policy))

	dec := segment.NewDecoder(c.fec, c.policy, c.log)
	results, err := c.pu.Decode(ctx, dec, views, parityViews)
	if err != nil {
		return nil, u.WrapErr("decode", err)
	}
	return c.report(data, results), nil
}

func (c *Codec) report(input []byte, results []*segment.Result) *Report {
	r := newReport(input, results)
	if r.Failed > 0 {
		c.log.Warn("blocks failed", zap.Int("failed", r.Failed), zap.Int("blocks", r.Blocks))
	}
	c.log.Info("done",
		zap.Int("blocks", r.Blocks),
		zap.Int("repaired", r.Repaired),
		zap.String("output", humanize.IBytes(uint64(r.OutputSize))))
	return r
}

// Encode writes the parity of the file at dataPath to parityPath.
func (c *Codec) Encode(ctx context.Context, dataPath, parityPath string) (*Report, error) {
	data, err := fio.ReadStream(c.fs, dataPath)
	if err != nil {
		return nil, err
	}
	r, err := c.EncodeBytes(ctx, data)
	if err != nil {
		return nil, err
	}
	return r, c.write(parityPath, r)
}

// Decode corrects the file at dataPath with the parity at parityPath and
// writes the recovered data to outPath. Sizes are checked before anything is
// read.
func (c *Codec) Decode(ctx context.Context, dataPath, parityPath, outPath string) (*Report, error) {
	data, parity, err := c.readPair(dataPath, parityPath)
	if err != nil {
		return nil, err
	}
	r, err := c.DecodeBytes(ctx, data, parity)
	if err != nil {
		return nil, err
	}
	return r, c.write(outPath, r)
}

// Check decodes in memory only. The report tells how many blocks were
// repaired or lost and whether the recovered data differs from the file.
func (c *Codec) Check(ctx context.Context, dataPath, parityPath string) (*Report, error) {
	data, parity, err := c.readPair(dataPath, parityPath)
	if err != nil {
		return nil, err
	}
	return c.DecodeBytes(ctx, data, parity)
}

// CheckSize verifies that the parity file can belong to the data file.
func (c *Codec) CheckSize(dataPath, parityPath string) error {
	dataSize, err := fio.FileSize(c.fs, dataPath)
	if err != nil {
		return err
	}
	paritySize, err := fio.FileSize(c.fs, parityPath)
	if err != nil {
		return err
	}
	return chunk.CheckSize(int(dataSize), int(paritySize), c.fec.Params())
}

func (c *Codec) readPair(dataPath, parityPath string) (data, parity []byte, err error) {
	if err := c.CheckSize(dataPath, parityPath); err != nil {
		return nil, nil, err
	}
	if data, err = fio.ReadStream(c.fs, dataPath); err != nil {
		return nil, nil, err
	}
	if parity, err = fio.ReadStream(c.fs, parityPath); err != nil {
		return nil, nil, err
	}
	return data, parity, nil
}

func (c *Codec) write(path string, r *Report) error {
	return fio.WriteStream(c.fs, path, func(w io.Writer) error {
		_, err := chunk.WriteTo(w, r.Parts())
		return err
	})
}
