package streamer

import (
	"sync"

	"github.com/moratsam/etherscan/pipeline"

	"github.com/m-ll/backup/pu"
)

var payloadPool = sync.Pool{New: func() interface{} { return new(taskPayload) }}

type taskPayload struct {
	task *pu.Task
}

// Doesn't really clone, the task is owned by whichever stage holds it.
func (p *taskPayload) Clone() pipeline.Payload {
	c := payloadPool.Get().(*taskPayload)
	c.task = p.task
	return c
}

func (p *taskPayload) MarkAsProcessed() {
	p.task = nil
	payloadPool.Put(p)
}
