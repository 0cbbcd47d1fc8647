package fdtable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

func preopen(t *Table, path string) int32 {
	return t.Preopen(&Descriptor{
		Filetype:    wasiabi.FiletypeDirectory,
		PreopenPath: path,
	})
}

func TestPreopensThenEndInitStartsRealFDsAtThree(t *testing.T) {
	table := New()
	stdin := preopen(table, "")
	stdout := preopen(table, "")
	stderr := preopen(table, "")
	require.Equal(t, int32(0), stdin)
	require.Equal(t, int32(1), stdout)
	require.Equal(t, int32(2), stderr)

	table.EndInit()
	fd := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})
	require.Equal(t, int32(FirstRealFD), fd)
}

func TestClosePreopenReturnsNotsup(t *testing.T) {
	table := New()
	fd := preopen(table, "/workspace")
	table.EndInit()
	require.Equal(t, wasiabi.ErrnoNotsup, table.Close(fd))

	_, ok := table.Lookup(fd)
	require.True(t, ok, "preopen must survive a rejected close")
}

func TestCloseUnknownFDReturnsBadf(t *testing.T) {
	table := New()
	table.EndInit()
	require.Equal(t, wasiabi.ErrnoBadf, table.Close(99))
}

func TestRenumberOntoSelfIsNoop(t *testing.T) {
	table := New()
	table.EndInit()
	fd := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})
	require.Equal(t, wasiabi.ErrnoSuccess, table.Renumber(fd, fd))
	_, ok := table.Lookup(fd)
	require.True(t, ok)
}

func TestRenumberUnknownFromReturnsBadf(t *testing.T) {
	table := New()
	table.EndInit()
	to := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})
	require.Equal(t, wasiabi.ErrnoBadf, table.Renumber(99, to))
}

func TestRenumberFromPreopenReturnsNotsup(t *testing.T) {
	table := New()
	stdin := preopen(table, "")
	table.EndInit()
	to := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})
	require.Equal(t, wasiabi.ErrnoNotsup, table.Renumber(stdin, to))
}

func TestRenumberOntoPreopenReturnsNotsup(t *testing.T) {
	table := New()
	root := preopen(table, "/workspace")
	table.EndInit()
	from := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})
	require.Equal(t, wasiabi.ErrnoNotsup, table.Renumber(from, root))
	_, ok := table.Lookup(from)
	require.True(t, ok, "rejected renumber must leave the source fd intact")
}

func TestRenumberReplacesTargetAndFreesSource(t *testing.T) {
	table := New()
	table.EndInit()
	from := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile, PreopenPath: "from"})
	to := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile, PreopenPath: "to"})

	require.Equal(t, wasiabi.ErrnoSuccess, table.Renumber(from, to))

	_, ok := table.Lookup(from)
	require.False(t, ok, "source fd must be vacated after renumber")

	d, ok := table.Lookup(to)
	require.True(t, ok)
	require.Equal(t, "from", d.PreopenPath, "target fd must now alias the source descriptor")
}

func TestPreopensListsOnlyInitPhaseDescriptors(t *testing.T) {
	table := New()
	preopen(table, "/workspace")
	preopen(table, "/ext")
	table.EndInit()
	table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})

	require.Equal(t, []int32{0, 1}, table.Preopens())
}

func TestOpenNeverReturnsFDBelowFirstRealFDEvenWithFewerPreopens(t *testing.T) {
	table := New()
	preopen(table, "/workspace") // only fd 0 used, 1 and 2 left free
	table.EndInit()

	fd := table.Open(&Descriptor{Filetype: wasiabi.FiletypeRegularFile})
	require.Equal(t, int32(FirstRealFD), fd)
}

func TestRangeVisitsOnlyOccupiedFDs(t *testing.T) {
	table := New()
	preopen(table, "/workspace")
	table.EndInit()

	var seen []int32
	table.Range(func(fd int32, d *Descriptor) bool {
		seen = append(seen, fd)
		return true
	})
	require.Equal(t, []int32{0}, seen)
}
