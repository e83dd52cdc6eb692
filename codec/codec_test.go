package codec

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/m-ll/backup/chunk"
	"github.com/m-ll/backup/fec"
	proc_unit "github.com/m-ll/backup/pu"
	"github.com/m-ll/backup/pu/streamer"
	"github.com/m-ll/backup/pu/vanilla"
	"github.com/m-ll/backup/segment"
)

func processingUnits() map[string]proc_unit.PU {
	return map[string]proc_unit.PU{
		"vanilla":  vanilla.NewVanillaPU(nil),
		"streamer": streamer.NewStreamerPU(nil),
	}
}

func randomBytes(n int, seed int64) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

func newInfectious(t *testing.T, p fec.Params) fec.Codec {
	c, err := fec.NewInfectious(p)
	require.NoError(t, err)
	return c
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	fc := newInfectious(t, fec.DefaultParams())

	for name, pu := range processingUnits() {
		for _, size := range []int{0, 1, 222, 223, 224, 4096, 50001} {
			for workers := 1; workers <= 4; workers++ {
				t.Run(fmt.Sprintf("%s/size=%d/workers=%d", name, size, workers), func(t *testing.T) {
					fs := afero.NewMemMapFs()
					data := randomBytes(size, int64(size))
					require.NoError(t, afero.WriteFile(fs, "data", data, 0o644))

					c := NewCodec(fc, pu, fs, Config{Workers: workers})
					enc, err := c.Encode(ctx, "data", "data.ecc")
					require.NoError(t, err)
					require.NoError(t, enc.Err())
					require.LessOrEqual(t, enc.Chunks, workers)

					parity, err := afero.ReadFile(fs, "data.ecc")
					require.NoError(t, err)
					require.Len(t, parity, chunk.ParitySize(size, fc.Params()))
					require.NoError(t, c.CheckSize("data", "data.ecc"))

					dec, err := c.Decode(ctx, "data", "data.ecc", "out")
					require.NoError(t, err)
					require.NoError(t, dec.Err())
					require.False(t, dec.Differs())

					out, err := afero.ReadFile(fs, "out")
					require.NoError(t, err)
					require.Equal(t, len(data), len(out))
					if size > 0 {
						require.Equal(t, data, out)
					}
				})
			}
		}
	}
}

func TestParityIndependentOfWorkers(t *testing.T) {
	ctx := context.Background()
	fc := newInfectious(t, fec.DefaultParams())
	data := randomBytes(20000, 3)

	var want []byte
	for workers := 1; workers <= 8; workers++ {
		c := NewCodec(fc, vanilla.NewVanillaPU(nil), afero.NewMemMapFs(), Config{Workers: workers})
		r, err := c.EncodeBytes(ctx, data)
		require.NoError(t, err)
		if want == nil {
			want = r.Output()
		}
		require.Equal(t, want, r.Output(), "workers=%d", workers)
	}
}

func TestExampleABCDEFG(t *testing.T) {
	ctx := context.Background()
	fc := newInfectious(t, fec.Params{DataLength: 4, FecLength: 2})
	c := NewCodec(fc, vanilla.NewVanillaPU(nil), afero.NewMemMapFs(), Config{Workers: 2})

	enc, err := c.EncodeBytes(ctx, []byte("ABCDEFG"))
	require.NoError(t, err)
	require.Equal(t, 2, enc.Chunks)
	require.Equal(t, 2, enc.Blocks)
	parity := enc.Output()
	require.Len(t, parity, 4)

	dec, err := c.DecodeBytes(ctx, []byte("ABCDEFG"), parity)
	require.NoError(t, err)
	require.Equal(t, "ABCDEFG", string(dec.Output()))
}

func TestDecodeRepairsCorruption(t *testing.T) {
	ctx := context.Background()
	p := fec.DefaultParams()
	fc := newInfectious(t, p)

	for name, pu := range processingUnits() {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			data := randomBytes(10*p.DataLength+17, 11)
			c := NewCodec(fc, pu, fs, Config{Workers: 3})

			enc, err := c.EncodeBytes(ctx, data)
			require.NoError(t, err)

			// One bad symbol in three different blocks.
			damaged := append([]byte(nil), data...)
			for _, pos := range []int{0, 5*p.DataLength + 7, len(data) - 1} {
				damaged[pos] ^= 0xff
			}
			require.NoError(t, afero.WriteFile(fs, "data", damaged, 0o644))
			require.NoError(t, afero.WriteFile(fs, "data.ecc", enc.Output(), 0o644))

			check, err := c.Check(ctx, "data", "data.ecc")
			require.NoError(t, err)
			require.Equal(t, 3, check.Repaired)
			require.Zero(t, check.Failed)
			require.True(t, check.Differs())
			require.Equal(t, data, check.Output())

			_, err = c.Decode(ctx, "data", "data.ecc", "out")
			require.NoError(t, err)
			out, err := afero.ReadFile(fs, "out")
			require.NoError(t, err)
			require.Equal(t, data, out)
		})
	}
}

func TestCheckCleanFile(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	fc := newInfectious(t, fec.DefaultParams())
	c := NewCodec(fc, vanilla.NewVanillaPU(nil), fs, Config{Workers: 2})

	require.NoError(t, afero.WriteFile(fs, "data", randomBytes(1000, 5), 0o644))
	_, err := c.Encode(ctx, "data", "data.ecc")
	require.NoError(t, err)

	r, err := c.Check(ctx, "data", "data.ecc")
	require.NoError(t, err)
	require.Zero(t, r.Repaired)
	require.Zero(t, r.Failed)
	require.False(t, r.Differs())
	require.Equal(t, 5, r.Blocks)
}

func TestDecodeKeepsUnrepairableBlocks(t *testing.T) {
	ctx := context.Background()
	p := fec.Params{DataLength: 8, FecLength: 4}
	rs, err := fec.NewReedSolomon(p)
	require.NoError(t, err)
	c := NewCodec(rs, vanilla.NewVanillaPU(nil), afero.NewMemMapFs(), Config{Workers: 2, Policy: segment.Keep})

	data := []byte("0123456789abcdefghijklmnopqrstuv")
	enc, err := c.EncodeBytes(ctx, data)
	require.NoError(t, err)

	damaged := append([]byte(nil), data...)
	damaged[9] = 'X'
	dec, err := c.DecodeBytes(ctx, damaged, enc.Output())
	require.NoError(t, err)
	require.Equal(t, 1, dec.Failed)
	require.Equal(t, damaged, dec.Output())
	require.Error(t, dec.Err())

	failures := dec.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, "decode", failures[0].Op)
	require.Equal(t, 0, failures[0].Chunk)
	require.Equal(t, 1, failures[0].Block)
	require.True(t, xerrors.Is(failures[0], fec.ErrUncorrectable))
}

func TestCheckSizeRejects(t *testing.T) {
	fs := afero.NewMemMapFs()
	fc := newInfectious(t, fec.DefaultParams())
	c := NewCodec(fc, vanilla.NewVanillaPU(nil), fs, Config{})

	write := func(name string, n int) {
		require.NoError(t, afero.WriteFile(fs, name, make([]byte, n), 0o644))
	}
	write("data", 500)
	write("short.ecc", 64)
	write("odd.ecc", 95)
	write("good.ecc", 96)

	require.NoError(t, c.CheckSize("data", "good.ecc"))
	require.True(t, xerrors.Is(c.CheckSize("data", "short.ecc"), chunk.ErrLayout))
	require.True(t, xerrors.Is(c.CheckSize("data", "odd.ecc"), chunk.ErrLayout))
	require.Error(t, c.CheckSize("data", "missing.ecc"))

	_, err := c.Decode(context.Background(), "data", "short.ecc", "out")
	require.True(t, xerrors.Is(err, chunk.ErrLayout))
	exists, err := afero.Exists(fs, "out")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestEncodeMissingInput(t *testing.T) {
	fc := newInfectious(t, fec.DefaultParams())
	c := NewCodec(fc, vanilla.NewVanillaPU(nil), afero.NewMemMapFs(), Config{})
	_, err := c.Encode(context.Background(), "nope", "nope.ecc")
	require.Error(t, err)
}
