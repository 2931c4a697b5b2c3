package render

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowFilter(t *testing.T) {
	columns := []string{"film_id", "title", "rental_rate"}
	rows := [][]any{
		{int64(1), "academy dinosaur", decimal.RequireFromString("0.99")},
		{int64(2), "ace goldfinger", decimal.RequireFromString("4.99")},
		{int64(3), "adaptation holes", decimal.RequireFromString("2.99")},
	}

	match := func(t *testing.T, f *RowFilter) []int64 {
		t.Helper()
		var ids []int64
		for idx, row := range rows {
			ok, err := f.Matches(columns, row, idx)
			require.NoError(t, err)
			if ok {
				ids = append(ids, row[0].(int64))
			}
		}
		return ids
	}

	t.Run("empty expression matches everything", func(t *testing.T) {
		f, err := NewRowFilter("")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, match(t, f))
	})

	t.Run("column predicate", func(t *testing.T) {
		f, err := NewRowFilter("record.film_id > 1")
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, match(t, f))
	})

	t.Run("numeric values compare as floats", func(t *testing.T) {
		f, err := NewRowFilter("record.rental_rate >= 2.99")
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, match(t, f))
	})

	t.Run("string functions", func(t *testing.T) {
		f, err := NewRowFilter(`record.title startsWith "ac"`)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, match(t, f))
	})

	t.Run("row number", func(t *testing.T) {
		f, err := NewRowFilter("row_number % 2 == 0")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, match(t, f))
	})
}

func TestRowFilterCompileError(t *testing.T) {
	_, err := NewRowFilter("record.film_id >")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unable to compile filter expression")
}

func TestRowFilterRequiresBoolean(t *testing.T) {
	f, err := NewRowFilter("record.title")
	require.NoError(t, err)
	_, err = f.Matches([]string{"title"}, []any{"academy dinosaur"}, 0)
	require.Error(t, err)
	assert.ErrorContains(t, err, "filter expression should return boolean")
}
