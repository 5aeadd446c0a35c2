package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const testKey = "0123456789abcdef0123456789abcdef"

func testEntry() *Entry {
	return &Entry{
		Strain:   mat.NewDense(2, 1, []float64{1e-3, -2e-4}),
		Velocity: mat.NewDense(2, 2, []float64{0, 1, 2, 3}),
		Meta: Metadata{
			Sample:  "bilayer",
			Method:  "RK23",
			Delays:  2,
			Layers:  2,
			Elapsed: 0.25,
			Metrics: map[string]float64{"residual_energy": 1e-4},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	_, err := st.Load(testKey)
	require.ErrorIs(t, err, ErrMiss)
	assert.False(t, st.Exists(testKey))

	require.NoError(t, st.Save(testKey, testEntry()))
	assert.True(t, st.Exists(testKey))

	got, err := st.Load(testKey)
	require.NoError(t, err)
	assert.True(t, mat.Equal(testEntry().Strain, got.Strain))
	assert.True(t, mat.Equal(testEntry().Velocity, got.Velocity))
	assert.Equal(t, "bilayer", got.Meta.Sample)
	assert.Equal(t, 2, got.Meta.Rows)
	assert.Equal(t, 1, got.Meta.Cols)
	assert.Equal(t, testKey, got.Meta.Key)
	assert.Equal(t, 1e-4, got.Meta.Metrics["residual_energy"])

	leftovers, err := filepath.Glob(filepath.Join(st.Dir(), ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must be renamed or removed")
}

func TestStoreSaveCreatesDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, st.Save(testKey, testEntry()))
	assert.FileExists(t, st.StrainPath(testKey))
	assert.FileExists(t, st.VelocityPath(testKey))
	assert.FileExists(t, st.MetaPath(testKey))
}

func TestStoreCorruptEntries(t *testing.T) {
	tests := []struct {
		name   string
		damage func(st *Store)
	}{
		{"truncated strain", func(st *Store) {
			require.NoError(t, os.WriteFile(st.StrainPath(testKey), []byte{1, 2, 3}, 0644))
		}},
		{"missing velocity", func(st *Store) {
			require.NoError(t, os.Remove(st.VelocityPath(testKey)))
		}},
		{"garbage metadata", func(st *Store) {
			require.NoError(t, os.WriteFile(st.MetaPath(testKey), []byte("{not json"), 0644))
		}},
		{"row mismatch", func(st *Store) {
			data, err := mat.NewDense(5, 2, nil).MarshalBinary()
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(st.VelocityPath(testKey), data, 0644))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New(t.TempDir())
			require.NoError(t, st.Save(testKey, testEntry()))
			tt.damage(st)

			_, err := st.Load(testKey)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
			assert.False(t, errors.Is(err, ErrMiss))
		})
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	st := New(t.TempDir())
	for _, key := range []string{"", "../etc/passwd", "ABCDEF", "12 34"} {
		_, err := st.Load(key)
		assert.ErrorIs(t, err, ErrBadKey, key)
		assert.ErrorIs(t, st.Save(key, testEntry()), ErrBadKey, key)
	}
}

func TestStoreListAndRemove(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	older := testEntry()
	older.Meta.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, st.Save("aa", older))
	require.NoError(t, st.Save("bb", testEntry()))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "bb", runs[0].Key)
	assert.Equal(t, "aa", runs[1].Key)

	require.NoError(t, st.Remove("aa"))
	require.NoError(t, st.Remove("aa"))
	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	_, err = st.Load("aa")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
