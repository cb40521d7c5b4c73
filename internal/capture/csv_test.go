package capture

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-svr/internal/datastore"
	"daq-svr/internal/registry"
)

func newStore(t *testing.T) *datastore.Store {
	t.Helper()
	reg, err := registry.New("test",
		registry.Single(1, registry.Field("a", 2, registry.Generic{})),
		registry.Composite(2, "combo",
			registry.Field("x", 4, registry.Generic{}),
			registry.Field("y", 4, registry.Generic{}),
		),
	)
	require.NoError(t, err)
	store, err := datastore.New(reg, []datastore.Derivation{
		datastore.Derive("sum_ratio", "", datastore.Ratio, "x", "y"),
	})
	require.NoError(t, err)
	return store
}

func TestWriteCSVGroupsComposites(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Append("a", 1))
	require.NoError(t, store.AppendFields("combo", 4, 2))
	require.NoError(t, store.AppendMissing("a"))
	require.NoError(t, store.AppendFields("combo", 9, 3))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, store, nil))

	want := "a,combo,combo,sum_ratio\n" +
		"1,4,2,2\n" +
		",9,3,3\n"
	assert.Equal(t, want, buf.String())
}

func TestReadCSVRoundTrip(t *testing.T) {
	src := newStore(t)
	require.NoError(t, src.Append("a", 5))
	require.NoError(t, src.AppendFields("combo", 1, 2))
	require.NoError(t, src.Append("a", 6))
	require.NoError(t, src.AppendFields("combo", 3, 4))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, src, nil))

	dst := newStore(t)
	rows, err := ReadCSV(&buf, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	for _, name := range []string{"a", "x", "y", "sum_ratio"} {
		assert.Equal(t, src.GetRange(name, -1, 10), dst.GetRange(name, -1, 10), name)
	}
}

func TestReadCSVPartialCompositeRow(t *testing.T) {
	store := newStore(t)
	in := "combo,combo,a\n7,,1\n"

	rows, err := ReadCSV(strings.NewReader(in), store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	x, _ := store.GetHistory("x", 0)
	y, _ := store.GetHistory("y", 0)
	assert.Equal(t, 7.0, x)
	assert.True(t, math.IsNaN(y))
	a, _ := store.GetHistory("a", 0)
	assert.Equal(t, 1.0, a)
}

func TestReadCSVSkipsUnknownAndDerived(t *testing.T) {
	store := newStore(t)
	in := "bogus,sum_ratio,a,combo\n1,2,3,4\n"

	rows, err := ReadCSV(strings.NewReader(in), store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
	assert.Equal(t, []float64{3}, store.GetRange("a", -1, 10))
	assert.Equal(t, 0, store.Len("x"), "a lone composite column is not enough")
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), newStore(t), nil)
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = ReadCSV(strings.NewReader("a\nnot-a-number\n"), newStore(t), nil)
	assert.Error(t, err)
}

func TestWriteCSVKeepsCompositeFieldsTogether(t *testing.T) {
	cases := []struct {
		name     string
		channels []string
		want     string
	}{
		{"reordered fields", []string{"y", "x"}, "combo,combo\n10,20\n"},
		{"single field", []string{"x"}, "combo,combo\n10,20\n"},
		{"container name", []string{"combo"}, "combo,combo\n10,20\n"},
		{"mixed with single", []string{"y", "a", "x"}, "combo,combo,a\n10,20,7\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := newStore(t)
			require.NoError(t, src.Append("a", 7))
			require.NoError(t, src.AppendFields("combo", 10, 20))

			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, src, tc.channels))
			assert.Equal(t, tc.want, buf.String())

			dst := newStore(t)
			rows, err := ReadCSV(&buf, dst, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, rows)

			x, ok := dst.GetHistory("x", 0)
			require.True(t, ok)
			assert.Equal(t, 10.0, x)
			y, ok := dst.GetHistory("y", 0)
			require.True(t, ok)
			assert.Equal(t, 20.0, y)
		})
	}
}
