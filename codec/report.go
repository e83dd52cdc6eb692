package codec

import (
	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/m-ll/backup/chunk"
	"github.com/m-ll/backup/segment"
)

// Report sums up one run over a whole stream.
type Report struct {
	// Results of every chunk, in chunk order.
	Results []*segment.Result

	Chunks   int
	Blocks   int
	Repaired int
	Failed   int

	InputSize    int
	OutputSize   int
	InputDigest  uint64
	OutputDigest uint64
}

func newReport(input []byte, results []*segment.Result) *Report {
	r := &Report{
		Results:     results,
		Chunks:      len(results),
		InputSize:   len(input),
		InputDigest: xxhash.Sum64(input),
	}
	d := xxhash.New()
	for _, res := range results {
		r.Blocks += res.Blocks
		r.Repaired += res.Repaired
		r.Failed += len(res.Failures)
		r.OutputSize += len(res.Output)
		d.Write(res.Output)
	}
	r.OutputDigest = d.Sum64()
	return r
}

// Parts are the per-chunk outputs in chunk order.
func (r *Report) Parts() [][]byte {
	parts := make([][]byte, len(r.Results))
	for i, res := range r.Results {
		parts[i] = res.Output
	}
	return parts
}

// Output is the reassembled output of the run.
func (r *Report) Output() []byte {
	return chunk.Reassemble(r.Parts())
}

// Differs tells whether the output bytes are not the input bytes. After a
// decode it means the codec changed the data.
func (r *Report) Differs() bool {
	return r.InputSize != r.OutputSize || r.InputDigest != r.OutputDigest
}

func (r *Report) Failures() []*segment.BlockError {
	var errs []*segment.BlockError
	for _, res := range r.Results {
		errs = append(errs, res.Failures...)
	}
	return errs
}

// Err aggregates every block failure of the run, nil if there was none.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, be := range r.Failures() {
		result = multierror.Append(result, be)
	}
	return result.ErrorOrNil()
}
