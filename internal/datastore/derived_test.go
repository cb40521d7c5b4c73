package datastore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-svr/internal/registry"
)

func TestRatioDivisionGuard(t *testing.T) {
	s := testStore(t, Derive("ratio", "", Ratio, "a", "b"))

	require.NoError(t, s.Append("a", 5))
	require.NoError(t, s.Append("b", 0))

	v, ok := s.GetCurrent("ratio")
	require.True(t, ok)
	assert.Equal(t, Infinite, v)
	assert.False(t, math.IsNaN(v))
	assert.False(t, math.IsInf(v, 0))

	h, ok := s.GetHistory("ratio", 0)
	require.True(t, ok)
	assert.Equal(t, Infinite, h)
}

func TestUndefinedResultsBecomeInfinite(t *testing.T) {
	s := testStore(t,
		Derive("share", "", Share, "a", "b"),
		Derive("raw_div", "", func(v []float64) float64 { return v[0] / v[1] }, "a", "b"),
	)
	require.NoError(t, s.Append("a", 0))
	require.NoError(t, s.Append("b", 0))

	share, _ := s.GetCurrent("share")
	assert.Equal(t, Infinite, share)
	div, _ := s.GetCurrent("raw_div")
	assert.Equal(t, Infinite, div)

	require.NoError(t, s.AppendMissing("a"))
	require.NoError(t, s.Append("b", 1))
	h, ok := s.GetHistory("raw_div", 1)
	require.True(t, ok)
	assert.Equal(t, Infinite, h, "missing parent sample")
}

func TestDerivedRecomputesOnEveryRead(t *testing.T) {
	s := testStore(t, Derive("ratio", "", Ratio, "a", "b"))

	_, ok := s.GetCurrent("ratio")
	assert.False(t, ok, "no parent values yet")

	require.NoError(t, s.Append("a", 10))
	require.NoError(t, s.Append("b", 2))
	v, _ := s.GetCurrent("ratio")
	assert.Equal(t, 5.0, v)

	require.NoError(t, s.SetCurrent("b", 5))
	v, _ = s.GetCurrent("ratio")
	assert.Equal(t, 2.0, v)
}

func TestDerivedLengthIsShortestParent(t *testing.T) {
	s := testStore(t, Derive("ratio", "", Ratio, "a", "b"))
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Append("a", float64(i*2)))
	}
	require.NoError(t, s.Append("b", 2))
	require.NoError(t, s.Append("b", 4))

	assert.Equal(t, 2, s.Len("ratio"))
	assert.Equal(t, []float64{1, 1}, s.GetRange("ratio", -1, 10))
	_, ok := s.GetHistory("ratio", 2)
	assert.False(t, ok)
}

func TestDerivedConnectedIsAndOfParents(t *testing.T) {
	s := testStore(t, Derive("ratio", "", Ratio, "a", "b"))

	require.NoError(t, s.MarkConnected(1))
	assert.False(t, s.IsConnected("ratio"))
	require.NoError(t, s.MarkConnected(2))
	assert.True(t, s.IsConnected("ratio"))
}

func TestDerivedChains(t *testing.T) {
	s := testStore(t,
		Derive("double", "", Scale(2), "ratio"),
		Derive("ratio", "", Ratio, "a", "b"),
	)
	require.NoError(t, s.Append("a", 9))
	require.NoError(t, s.Append("b", 3))

	v, ok := s.GetCurrent("double")
	require.True(t, ok)
	assert.Equal(t, 6.0, v)
	assert.Equal(t, []string{"a", "b", "x", "y", "z", "ratio", "double"}, s.Names())
}

func TestLinkRejectsBadGraphs(t *testing.T) {
	tests := []struct {
		name string
		defs []Derivation
		want error
	}{
		{
			name: "missing parent",
			defs: []Derivation{Derive("r", "", Ratio, "a", "ghost")},
			want: ErrMissingParent,
		},
		{
			name: "cycle",
			defs: []Derivation{
				Derive("p", "", Scale(1), "q"),
				Derive("q", "", Scale(1), "p"),
			},
			want: ErrCycle,
		},
		{
			name: "self loop",
			defs: []Derivation{Derive("p", "", Scale(1), "p")},
			want: ErrCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(testRegistry(t), tt.defs)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(testRegistry(t), []Derivation{Derive("a", "", Scale(1), "b")})
	assert.Error(t, err, "shadowing a registry name")
	_, err = New(testRegistry(t), []Derivation{Derive("r", "", nil, "a")})
	assert.Error(t, err, "nil transfer")
}

func TestDefaultDerivedLinksAgainstDefaultRegistry(t *testing.T) {
	reg := registry.Default()
	s, err := New(reg, DefaultDerived(reg))
	require.NoError(t, err)

	require.NoError(t, s.Append(registry.NamePositionEngine, 48))
	rev, ok := s.GetCurrent("engine_revolutions")
	require.True(t, ok)
	assert.Equal(t, 2.0, rev)

	require.NoError(t, s.Append(registry.NameSpeedEngine, 3000))
	require.NoError(t, s.Append(registry.NameSpeedSecondary, 0))
	cvt, _ := s.GetCurrent("cvt_ratio")
	assert.Equal(t, Infinite, cvt)
}

func TestDefaultDerivedSkipsMissingParents(t *testing.T) {
	reg, err := registry.New("test",
		registry.Single(registry.SpeedSecondary, registry.Field(registry.NameSpeedSecondary, 2, registry.Speed{PulsesPerRev: 6})),
	)
	require.NoError(t, err)

	defs := DefaultDerived(reg)
	require.Len(t, defs, 1)
	assert.Equal(t, "vehicle_speed_mph", defs[0].Name)

	_, err = New(reg, defs)
	assert.NoError(t, err)
}
