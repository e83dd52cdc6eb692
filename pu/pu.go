// Package pu defines the processing units that run one segment coder per
// chunk and hand the results back in chunk order.
package pu

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"golang.org/x/xerrors"

	"github.com/m-ll/backup/segment"
)

var mon = monkit.Package()

type PU interface {
	// Encode returns the parity of every data chunk, indexed like data.
	Encode(ctx context.Context, enc *segment.Encoder, data [][]byte) ([]*segment.Result, error)

	// Decode returns the recovered data of every chunk, indexed like data.
	// parity[i] must hold the parity of exactly the blocks of data[i].
	Decode(ctx context.Context, dec *segment.Decoder, data, parity [][]byte) ([]*segment.Result, error)
}

// Task is one chunk of work. A worker owns its task until it hands it back.
type Task struct {
	Index  int
	Data   []byte
	Parity []byte

	Result *segment.Result
	Err    error
}

// Work fills in the Result (or Err) of a task.
type Work func(t *Task)

func EncodeTasks(data [][]byte) []*Task {
	tasks := make([]*Task, len(data))
	for i := range data {
		tasks[i] = &Task{Index: i, Data: data[i]}
	}
	return tasks
}

func DecodeTasks(data, parity [][]byte) ([]*Task, error) {
	if len(data) != len(parity) {
		return nil, xerrors.Errorf("%d data chunks but %d parity chunks", len(data), len(parity))
	}
	tasks := make([]*Task, len(data))
	for i := range data {
		tasks[i] = &Task{Index: i, Data: data[i], Parity: parity[i]}
	}
	return tasks, nil
}

func EncodeWork(enc *segment.Encoder) Work {
	return func(t *Task) {
		t.Result = enc.Encode(t.Index, t.Data)
	}
}

func DecodeWork(dec *segment.Decoder) Work {
	return func(t *Task) {
		t.Result, t.Err = dec.Decode(t.Index, t.Data, t.Parity)
	}
}

// Collect places finished tasks by their index, whatever order they finished
// in, and returns their results.
func Collect(n int, finished []*Task) ([]*segment.Result, error) {
	results := make([]*segment.Result, n)
	for _, t := range finished {
		if t.Index < 0 || t.Index >= n {
			return nil, xerrors.Errorf("task index %d out of range [0, %d)", t.Index, n)
		}
		if t.Err != nil {
			return nil, xerrors.Errorf("chunk %d: %w", t.Index, t.Err)
		}
		if results[t.Index] != nil {
			return nil, xerrors.Errorf("chunk %d finished twice", t.Index)
		}
		results[t.Index] = t.Result
	}

	var failures, repaired int64
	for i, r := range results {
		if r == nil {
			return nil, xerrors.Errorf("chunk %d did not finish", i)
		}
		failures += int64(len(r.Failures))
		repaired += int64(r.Repaired)
	}
	mon.Counter("chunks").Inc(int64(n))
	mon.Counter("block_failures").Inc(failures)
	mon.Counter("blocks_repaired").Inc(repaired)
	return results, nil
}
