package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
)

func TestRowCoercesDriverValues(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	row := Row{
		"id":         []byte("42"),
		"score":      "7.5",
		"points":     int64(10),
		"title":      []byte("  Two Sum "),
		"checked_at": ts,
		"empty":      "",
		"nothing":    nil,
		"padded":     "08",
	}

	require.Equal(t, int64(42), row.Int64("id"))
	require.Equal(t, uint(42), row.Uint("id"))
	require.Equal(t, 7.5, row.Float64("score"))
	require.Equal(t, pointer.Float64(10), row.OptionalFloat("points"))
	require.Equal(t, "Two Sum", row.String("title"))
	require.Equal(t, int64(8), row.Int64("padded"))
	require.Nil(t, row.OptionalFloat("empty"))
	require.Nil(t, row.OptionalFloat("nothing"))
	require.Equal(t, "", row.String("nothing"))
	require.Zero(t, row.Int64("missing"))

	checked := row.OptionalTime("checked_at")
	require.NotNil(t, checked)
	require.True(t, ts.Equal(*checked))
	require.Nil(t, row.OptionalTime("nothing"))
}

func TestExcerpt(t *testing.T) {
	require.Equal(t, "short text", Excerpt("short\n  text", 40))
	require.Equal(t, "abc…", Excerpt("abcdef", 3))
	require.Equal(t, "héllo wörld", Excerpt("héllo wörld", 0))
}
