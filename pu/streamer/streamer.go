package streamer

import (
	"context"

	"github.com/moratsam/etherscan/pipeline"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"github.com/m-ll/backup/pu"
	"github.com/m-ll/backup/segment"
)

var mon = monkit.Package()

// StreamerPU feeds chunk tasks through a pipeline: a worker pool stage that
// runs the segment coders, then a FIFO stage that reports each finished chunk.
type StreamerPU struct {
	log *zap.Logger
}

func NewStreamerPU(log *zap.Logger) *StreamerPU {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamerPU{log: log}
}

func (s *StreamerPU) Encode(ctx context.Context, enc *segment.Encoder, data [][]byte) (_ []*segment.Result, err error) {
	defer mon.Task()(&ctx)(&err)
	return s.run(ctx, pu.EncodeTasks(data), pu.EncodeWork(enc))
}

func (s *StreamerPU) Decode(ctx context.Context, dec *segment.Decoder, data, parity [][]byte) (_ []*segment.Result, err error) {
	defer mon.Task()(&ctx)(&err)
	tasks, err := pu.DecodeTasks(data, parity)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, tasks, pu.DecodeWork(dec))
}

func (s *StreamerPU) run(ctx context.Context, tasks []*pu.Task, work pu.Work) ([]*segment.Result, error) {
	if len(tasks) == 0 {
		return pu.Collect(0, nil)
	}

	// One worker per chunk, the partitioner already bounds the chunk count.
	pip := pipeline.New(
		pipeline.DynamicWorkerPool(&coder{work: work}, len(tasks)),
		pipeline.FIFO(&reporter{log: s.log}),
	)
	sink := &taskSink{c: make(chan *pu.Task, len(tasks))}
	if err := pip.Process(ctx, &taskSource{tasks: tasks}, sink); err != nil {
		return nil, err
	}
	// The source stops early on a cancelled context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	close(sink.c)

	finished := make([]*pu.Task, 0, len(tasks))
	for t := range sink.c {
		finished = append(finished, t)
	}
	return pu.Collect(len(tasks), finished)
}

// Source of the pipeline, emits the tasks in chunk order.
type taskSource struct {
	tasks []*pu.Task
	next  int
}

func (s *taskSource) Error() error { return nil }

func (s *taskSource) Next(ctx context.Context) bool {
	if ctx.Err() != nil || s.next >= len(s.tasks) {
		return false
	}
	s.next++
	return true
}

func (s *taskSource) Payload() pipeline.Payload {
	p := payloadPool.Get().(*taskPayload)
	p.task = s.tasks[s.next-1]
	return p
}

// Runs the segment coder of a task.
type coder struct {
	work pu.Work
}

func (c *coder) Process(_ context.Context, payload pipeline.Payload) (pipeline.Payload, error) {
	p := payload.(*taskPayload)
	c.work(p.task)
	if p.task.Err != nil {
		return nil, p.task.Err
	}
	return p, nil
}

type reporter struct {
	log *zap.Logger
}

func (r *reporter) Process(_ context.Context, payload pipeline.Payload) (pipeline.Payload, error) {
	res := payload.(*taskPayload).task.Result
	mon.Meter("chunk_bytes").Mark(len(res.Output))
	r.log.Debug("chunk finished",
		zap.Int("chunk", res.Index), zap.Int("blocks", res.Blocks), zap.Int("failures", len(res.Failures)))
	return payload, nil
}

// Sink of the pipeline. The task is taken out of the payload before the
// payload goes back to the pool.
type taskSink struct {
	c chan *pu.Task
}

func (s *taskSink) Consume(_ context.Context, payload pipeline.Payload) error {
	s.c <- payload.(*taskPayload).task
	return nil
}
