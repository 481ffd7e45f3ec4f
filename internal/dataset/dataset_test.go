package dataset

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "\xef\xbb\xbfpost.text,post.posted_time,post.username,user.followers_count,post_metrics.like_count,internal_id\n" +
	"hello world,2024-03-01 10:00:00,alice,100,5,x1\n" +
	"\"quoted, text\",2024-03-02 11:30:00,bob,2500,12,x2\n" +
	"another post,2024-03-02 12:00:00,alice,100,,x3\n"

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := ReadCSV(strings.NewReader(sampleCSV), LoadOptions{})
	require.NoError(t, err)
	return f
}

func TestReadCSV_MapsAndDropsColumns(t *testing.T) {
	f := sampleFrame(t)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"text", "timestamp", "username", "followers", "likes"}, f.Columns())
	assert.False(t, f.Has("internal_id"))

	assert.Equal(t, KindString, f.Kind("text"))
	assert.Equal(t, KindTime, f.Kind("timestamp"))
	assert.Equal(t, KindInt, f.Kind("followers"))
	assert.Equal(t, KindInt, f.Kind("likes"))

	assert.Equal(t, "quoted, text", f.Strings("text")[1])
	likes := f.Floats("likes")
	assert.Equal(t, 12.0, likes[1])
	assert.True(t, math.IsNaN(likes[2]), "blank cell is missing")
}

func TestReadCSV_KeepUnmapped(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV), LoadOptions{KeepUnmapped: true})
	require.NoError(t, err)
	assert.True(t, f.Has("internal_id"))
}

func TestReadCSV_NoRecognizedColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoColumns))

	_, err = ReadCSV(strings.NewReader(""), LoadOptions{})
	assert.True(t, errors.Is(err, ErrNoColumns))
}

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  Kind
	}{
		{"ints", []string{"1", "2", ""}, KindInt},
		{"floats", []string{"1", "2.5"}, KindFloat},
		{"bools", []string{"true", "FALSE"}, KindBool},
		{"dates", []string{"2024-01-01", "2024-02-01"}, KindTime},
		{"twitter time", []string{"Wed Oct 10 20:19:24 +0000 2018"}, KindTime},
		{"mixed", []string{"1", "abc"}, KindString},
		{"all blank", []string{"", " "}, KindString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferColumn("c", tt.cells).Kind)
		})
	}
}

func TestUnknownColumn(t *testing.T) {
	f := sampleFrame(t)

	_, err := f.Column("nope")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	assert.Contains(t, err.Error(), "available: text")

	assert.Panics(t, func() { f.Floats("nope") })
}

func TestClone_IsIndependent(t *testing.T) {
	f := sampleFrame(t)
	c := f.Clone()
	c.SetDisplay(FullDisplay())
	c.cols[0].values[0] = "mutated"

	assert.Equal(t, "hello world", f.Strings("text")[0])
	assert.Equal(t, DefaultDisplay(), f.Display())
	assert.Equal(t, FullDisplay(), c.Display())
}

func TestFilterSortHead(t *testing.T) {
	f := sampleFrame(t)

	alice := f.Filter(func(r Row) bool { return r["username"] == "alice" })
	assert.Equal(t, 2, alice.Len())
	assert.Equal(t, 3, f.Len(), "source frame untouched")

	byLikes := f.SortBy("likes", true)
	assert.Equal(t, []string{"12", "5", ""}, byLikes.Strings("likes"))

	asc := f.SortBy("likes", false)
	assert.Equal(t, []string{"5", "12", ""}, asc.Strings("likes"), "missing sorts last")

	assert.Equal(t, 1, f.Head(1).Len())
	assert.Equal(t, 3, f.Head(10).Len())
	assert.Equal(t, []string{"another post"}, f.Tail(1).Strings("text"))

	sel := f.Select("likes", "text")
	assert.Equal(t, []string{"likes", "text"}, sel.Columns())
}

func TestValueCountsAndGroupBy(t *testing.T) {
	f := sampleFrame(t)

	want := []Count{{Value: "alice", N: 2}, {Value: "bob", N: 1}}
	if diff := cmp.Diff(want, f.ValueCounts("username")); diff != "" {
		t.Errorf("ValueCounts mismatch (-want +got):\n%s", diff)
	}

	g := f.GroupBy("username")
	assert.Equal(t, []string{"alice", "bob"}, g.Keys())
	assert.Equal(t, 2, g.Group("alice").Len())
	assert.Equal(t, want, g.Count())

	followers := g.Agg("followers", "mean")
	assert.Equal(t, []Aggregate{{Key: "bob", Value: 2500}, {Key: "alice", Value: 100}}, followers)

	likes := g.Agg("likes", "sum")
	assert.Equal(t, Aggregate{Key: "bob", Value: 12}, likes[0])

	assert.Panics(t, func() { g.Agg("likes", "mode") })
}

func TestInfo(t *testing.T) {
	info := sampleFrame(t).Info()
	assert.True(t, strings.HasPrefix(info, "The dataset `df` has 3 rows and these columns:\n"))
	assert.Contains(t, info, "likes")
	assert.Contains(t, info, "2 non-null")
	assert.Contains(t, info, "time")
}

func TestString_DisplayOptions(t *testing.T) {
	long := strings.Repeat("x", 80)
	vals := make([]any, 100)
	for i := range vals {
		vals[i] = long
	}
	f := MustNew(NewColumn("text", KindString, vals))

	out := f.String()
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "[100 rows x 1 columns]")
	assert.NotContains(t, out, long)

	f.SetDisplay(FullDisplay())
	out = f.String()
	assert.NotContains(t, out, "rows x")
	assert.Contains(t, out, long)
	assert.Equal(t, 101, strings.Count(out, "\n"))
}

func TestDescribe(t *testing.T) {
	f := sampleFrame(t)
	sums := f.Describe()
	require.Len(t, sums, 2)
	assert.Equal(t, "followers", sums[0].Column)
	assert.Equal(t, 3, sums[0].Count)
	assert.Equal(t, 100.0, sums[0].Min)
	assert.Equal(t, 2500.0, sums[0].Max)
	assert.Equal(t, 2, sums[1].Count)

	assert.Contains(t, f.DescribeString(), "mean")
}

func TestTimes(t *testing.T) {
	f := sampleFrame(t)
	ts := f.Times("timestamp")
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), ts[1])
	assert.Equal(t, "2024-03-02 11:30:00", f.Strings("timestamp")[1])
}

func TestNew_RejectsMismatchedColumns(t *testing.T) {
	_, err := New(
		NewColumn("a", KindInt, []any{int64(1)}),
		NewColumn("b", KindInt, []any{int64(1), int64(2)}),
	)
	assert.Error(t, err)

	_, err = New(NewColumn("a", KindInt, nil), NewColumn("a", KindInt, nil))
	assert.Error(t, err)
}
