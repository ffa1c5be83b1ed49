package organizer

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair[K comparable, V any] struct {
	Key    K
	Values []V
}

func collect[K interface{ ~string | ~int }, V any](t *testing.T, it *Iterator[K, V]) []pair[K, V] {
	t.Helper()
	defer it.Close()
	var out []pair[K, V]
	for it.Next() {
		out = append(out, pair[K, V]{it.Key(), it.Values()})
	}
	require.NoError(t, it.Err())
	return out
}

func TestOrganizerFlushMerge(t *testing.T) {
	o, err := New[string, int]([]string{"a"}, t.TempDir())
	require.NoError(t, err)
	defer o.Remove()

	require.NoError(t, o.Add("b", 1))
	require.NoError(t, o.Add("a", 2))
	require.NoError(t, o.Add("c", 3))
	require.NoError(t, o.Add("a", 4))
	assert.Equal(t, 4, o.Buffered())
	require.NoError(t, o.Flush())
	assert.Equal(t, 0, o.Buffered())

	size, err := o.Merge(1)
	require.NoError(t, err)
	assert.Positive(t, size)

	assert.Equal(t, []pair[string, int]{
		{"a", []int{2, 4}},
		{"b", []int{1}},
		{"c", []int{3}},
	}, collect(t, o.Iterator()))
}

func TestOrganizerRanges(t *testing.T) {
	o, err := New[int, string]([]int{10, 20, 30}, t.TempDir())
	require.NoError(t, err)
	defer o.Remove()

	// spread adds over several flushes so run files hold many blocks
	for round := 0; round < 3; round++ {
		for k := 45; k >= 10; k -= 5 {
			require.NoError(t, o.Add(k, fmt.Sprintf("r%d", round)))
		}
		require.NoError(t, o.Flush())
	}
	_, err = o.Merge(4)
	require.NoError(t, err)

	got := collect(t, o.Iterator())
	require.Len(t, got, 8)
	for i, p := range got {
		assert.Equal(t, 10+5*i, p.Key)
		assert.Equal(t, []string{"r0", "r1", "r2"}, p.Values)
	}

	t.Run("key below first boundary", func(t *testing.T) {
		assert.ErrorIs(t, o.Add(9, "x"), ErrKeyBelowRange)
		assert.ErrorIs(t, o.Write(-1, nil), ErrKeyBelowRange)
	})

	t.Run("merge refuses unflushed values", func(t *testing.T) {
		require.NoError(t, o.Add(10, "late"))
		_, err := o.Merge(1)
		assert.Error(t, err)
	})
}

func TestOrganizerInvalidKeys(t *testing.T) {
	_, err := New[string, int](nil, t.TempDir())
	assert.Error(t, err)
	_, err = New[string, int]([]string{"b", "a"}, t.TempDir())
	assert.Error(t, err)
	_, err = New[string, int]([]string{"a", "a"}, t.TempDir())
	assert.Error(t, err)
}

func TestOrganizerWriteAndRemove(t *testing.T) {
	o, err := New[string, int]([]string{"A", "M"}, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, o.Write("B", []int{1, 2}))
	require.NoError(t, o.Write("C", []int{3}))
	require.NoError(t, o.Write("N", []int{4}))

	assert.Equal(t, []pair[string, int]{
		{"B", []int{1, 2}},
		{"C", []int{3}},
		{"N", []int{4}},
	}, collect(t, o.Iterator()))

	size, err := o.Size()
	require.NoError(t, err)
	assert.Positive(t, size)

	dir := o.Dir()
	require.NoError(t, o.Remove())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestOrganizerEmpty(t *testing.T) {
	o, err := New[string, int]([]string{"a", "m"}, t.TempDir())
	require.NoError(t, err)
	defer o.Remove()

	size, err := o.Merge(2)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Empty(t, collect(t, o.Iterator()))
}

func TestMergeIterators(t *testing.T) {
	keys := []string{"A"}
	var its []*Iterator[string, int]
	for w, adds := range [][]string{{"B", "A", "D"}, {"C", "B"}, {}} {
		o, err := New[string, int](keys, t.TempDir())
		require.NoError(t, err)
		defer o.Remove()
		for _, k := range adds {
			require.NoError(t, o.Add(k, w))
		}
		require.NoError(t, o.Flush())
		_, err = o.Merge(1)
		require.NoError(t, err)
		its = append(its, o.Iterator())
	}

	var got []pair[string, int]
	err := MergeIterators(its, func(k string, vs []int) error {
		got = append(got, pair[string, int]{k, vs})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []pair[string, int]{
		{"A", []int{0}},
		{"B", []int{0, 1}},
		{"C", []int{1}},
		{"D", []int{0}},
	}, got)
}

func TestBoundaries(t *testing.T) {
	assert.Equal(t, []string{"a", "d", "g"}, Boundaries([]string{"a", "b", "c", "d", "e", "f", "g"}, 3))
	assert.Equal(t, []int{1, 2}, Boundaries([]int{1, 2}, 0))
	assert.Nil(t, Boundaries([]int{}, 5))
}
