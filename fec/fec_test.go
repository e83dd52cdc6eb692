package fec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.Equal(t, 255, DefaultParams().CodeLength())
	require.NoError(t, Params{DataLength: 4, FecLength: 2}.Validate())

	for _, p := range []Params{
		{DataLength: 0, FecLength: 2},
		{DataLength: 4, FecLength: 0},
		{DataLength: 250, FecLength: 10},
	} {
		err := p.Validate()
		require.Error(t, err)
		require.True(t, xerrors.Is(err, ErrParams))
	}
}

func TestBlockLoadPads(t *testing.T) {
	b := NewBlock(Params{DataLength: 4, FecLength: 2})
	copy(b.Word(), []byte{9, 9, 9, 9, 9, 9})

	n := b.Load([]byte("EFG"), nil)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{'E', 'F', 'G', 0}, b.Data)
	require.Equal(t, []byte{0, 0}, b.Parity)

	n = b.Load([]byte("ABCD"), []byte{1, 2})
	require.Equal(t, 4, n)
	require.Equal(t, []byte("ABCD\x01\x02"), b.Word())
}

func TestNew(t *testing.T) {
	c, err := New("infectious", DefaultParams())
	require.NoError(t, err)
	require.IsType(t, &Infectious{}, c)

	c, err = New("reedsolomon", DefaultParams())
	require.NoError(t, err)
	require.IsType(t, &ReedSolomon{}, c)

	_, err = New("opencl", DefaultParams())
	require.Error(t, err)

	_, err = New("infectious", Params{DataLength: 255, FecLength: 32})
	require.Error(t, err)
}

func randomBlock(p Params, seed int64) *Block {
	b := NewBlock(p)
	rand.New(rand.NewSource(seed)).Read(b.Data)
	return b
}

func TestCodecsCleanRoundTrip(t *testing.T) {
	for _, name := range []string{"infectious", "reedsolomon"} {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			c, err := New(name, p)
			require.NoError(t, err)
			require.Equal(t, p, c.Params())

			b := randomBlock(p, 1)
			want := append([]byte(nil), b.Data...)
			require.NoError(t, c.Encode(b))
			require.NotEqual(t, make([]byte, p.FecLength), b.Parity)

			require.NoError(t, c.Decode(b))
			require.Equal(t, want, b.Data)
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	c, err := NewInfectious(DefaultParams())
	require.NoError(t, err)

	b1 := randomBlock(c.Params(), 7)
	b2 := randomBlock(c.Params(), 7)
	require.NoError(t, c.Encode(b1))
	require.NoError(t, c.Encode(b2))
	require.Equal(t, b1.Parity, b2.Parity)
}

func TestInfectiousCorrects(t *testing.T) {
	p := DefaultParams()
	c, err := NewInfectious(p)
	require.NoError(t, err)

	b := randomBlock(p, 3)
	require.NoError(t, c.Encode(b))
	want := append([]byte(nil), b.Word()...)

	// Up to FecLength/2 symbol errors, spread over data and parity.
	rng := rand.New(rand.NewSource(4))
	for _, i := range rng.Perm(p.CodeLength())[:p.FecLength/2] {
		b.Word()[i] ^= 0xA5
	}
	require.NotEqual(t, want, b.Word())

	require.NoError(t, c.Decode(b))
	require.Equal(t, want, b.Word())
}

func TestInfectiousTooManyErrors(t *testing.T) {
	p := Params{DataLength: 4, FecLength: 2}
	c, err := NewInfectious(p)
	require.NoError(t, err)

	b := NewBlock(p)
	b.Load([]byte("ABCD"), nil)
	require.NoError(t, c.Encode(b))

	b.Data[0] ^= 1
	b.Data[2] ^= 1
	b.Data[3] ^= 1
	// Beyond the correction radius the codec either gives up or lands on a
	// different code word, never on the encoded data.
	err = c.Decode(b)
	if err != nil {
		require.True(t, xerrors.Is(err, ErrUncorrectable))
		return
	}
	require.NotEqual(t, []byte("ABCD"), b.Data)
}

func TestReedSolomonDetects(t *testing.T) {
	p := DefaultParams()
	c, err := NewReedSolomon(p)
	require.NoError(t, err)

	b := randomBlock(p, 5)
	require.NoError(t, c.Encode(b))
	b.Data[10] ^= 0xFF

	err = c.Decode(b)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, ErrUncorrectable))
}
