// Package segment drives a block codec over one chunk of a stream.
package segment

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Policy decides what the decoder does after a block fails to decode.
type Policy int

const (
	// Stop drops the failed block and leaves the rest of the chunk undecoded.
	Stop Policy = iota
	// Skip drops the failed block and goes on with the next one.
	Skip
	// Keep writes the failed block's data symbols as read and goes on.
	Keep
)

var policyNames = map[Policy]string{Stop: "stop", Skip: "skip", Keep: "keep"}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return Stop, xerrors.Errorf("unknown policy %q", s)
}

// BlockError is a codec failure on one block of one chunk.
type BlockError struct {
	Op    string
	Chunk int
	Block int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s chunk %d block %d: %v", e.Op, e.Chunk, e.Block, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// Result is what a worker hands back for its chunk.
type Result struct {
	Index  int
	Output []byte

	// Empty is set when the chunk had no bytes to code.
	Empty bool
	// Blocks counts blocks handed to the codec.
	Blocks int
	// Repaired counts decoded blocks whose symbols the codec changed.
	Repaired int
	Failures []*BlockError
}

func (r *Result) Failed() bool { return len(r.Failures) > 0 }

func (r *Result) fail(op string, block int, err error) *BlockError {
	be := &BlockError{Op: op, Chunk: r.Index, Block: block, Err: err}
	r.Failures = append(r.Failures, be)
	return be
}
