package vanilla

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/m-ll/backup/pu"
	"github.com/m-ll/backup/segment"
)

var mon = monkit.Package()

// VanillaPU spawns one goroutine per chunk and joins them all.
type VanillaPU struct {
	log *zap.Logger
}

func NewVanillaPU(log *zap.Logger) *VanillaPU {
	if log == nil {
		log = zap.NewNop()
	}
	return &VanillaPU{log: log}
}

func (v *VanillaPU) Encode(ctx context.Context, enc *segment.Encoder, data [][]byte) (_ []*segment.Result, err error) {
	defer mon.Task()(&ctx)(&err)
	return v.run(ctx, pu.EncodeTasks(data), pu.EncodeWork(enc))
}

func (v *VanillaPU) Decode(ctx context.Context, dec *segment.Decoder, data, parity [][]byte) (_ []*segment.Result, err error) {
	defer mon.Task()(&ctx)(&err)
	tasks, err := pu.DecodeTasks(data, parity)
	if err != nil {
		return nil, err
	}
	return v.run(ctx, tasks, pu.DecodeWork(dec))
}

func (v *VanillaPU) run(ctx context.Context, tasks []*pu.Task, work pu.Work) ([]*segment.Result, error) {
	// Finished tasks come back over done, never through shared slots.
	done := make(chan *pu.Task, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v.log.Debug("chunk started", zap.Int("chunk", t.Index), zap.Int("size", len(t.Data)))
			work(t)
			done <- t
			return t.Err
		})
	}
	err := g.Wait()
	close(done)
	if err != nil {
		return nil, err
	}

	finished := make([]*pu.Task, 0, len(tasks))
	for t := range done {
		finished = append(finished, t)
	}
	return pu.Collect(len(tasks), finished)
}
