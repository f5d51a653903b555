package extraction

import (
	"archive/zip"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
}

func writeZip(t *testing.T, path string, entries []entry) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		if e.body != "" {
			_, err = fw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
}

func collect(seq iter.Seq[Event]) (ticks []int, last Event) {
	for ev := range seq {
		if ev.Done {
			last = ev
			continue
		}
		ticks = append(ticks, ev.Tick)
	}
	return ticks, last
}

func expectedTicks(budget int) []int {
	out := make([]int, budget)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestZipExtract_AllEntriesAndFullTickRun(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "level.zip")
	writeZip(t, archive, []entry{
		{name: "TRLE/"},
		{name: "TRLE/tomb4.exe", body: "exe"},
		{name: "TRLE/data/level1.tr4", body: "level one"},
		{name: "TRLE/data/"},
		{name: "TRLE/audio/001.wav", body: "wav"},
	})

	out := filepath.Join(dir, "out")
	ticks, last := collect(NewZip(DefaultBudget).Extract(context.Background(), archive, out))

	require.True(t, last.Done)
	require.NoError(t, last.Err)
	assert.Equal(t, expectedTicks(DefaultBudget), ticks)
	assert.Equal(t, 3, countFiles(t, out))

	data, err := os.ReadFile(filepath.Join(out, "TRLE", "data", "level1.tr4"))
	require.NoError(t, err)
	assert.Equal(t, "level one", string(data))
}

func TestZipExtract_ManyEntriesNeverExceedBudget(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "many.zip")

	var entries []entry
	for i := 0; i < 137; i++ {
		entries = append(entries, entry{name: fmt.Sprintf("pak/%d/file_%03d.bin", i%7, i), body: "x"})
	}
	writeZip(t, archive, entries)

	out := filepath.Join(dir, "out")
	ticks, last := collect(NewZip(10).Extract(context.Background(), archive, out))

	require.NoError(t, last.Err)
	assert.Equal(t, expectedTicks(10), ticks)
	assert.Equal(t, 137, countFiles(t, out))
}

func TestZipExtract_EmptyArchiveStillFlushes(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "empty.zip")
	writeZip(t, archive, []entry{{name: "only-a-dir/"}})

	ticks, last := collect(NewZip(DefaultBudget).Extract(context.Background(), archive, filepath.Join(dir, "out")))

	require.True(t, last.Done)
	require.NoError(t, last.Err)
	assert.Equal(t, expectedTicks(DefaultBudget), ticks)
}

func TestZipExtract_RejectsEscapingEntry(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, []entry{
		{name: "ok.txt", body: "fine"},
		{name: "../escape.txt", body: "nope"},
	})

	_, last := collect(NewZip(DefaultBudget).Extract(context.Background(), archive, filepath.Join(dir, "out")))

	require.True(t, last.Done)
	assert.Error(t, last.Err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestZipExtract_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "broken.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK\x03\x04 definitely not a zip"), 0644))

	ticks, last := collect(NewZip(DefaultBudget).Extract(context.Background(), archive, filepath.Join(dir, "out")))

	assert.Empty(t, ticks)
	require.True(t, last.Done)
	assert.Error(t, last.Err)
}

func TestZipExtract_ConsumerCanStopEarly(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "level.zip")
	writeZip(t, archive, []entry{
		{name: "a.txt", body: "a"},
		{name: "b.txt", body: "b"},
		{name: "c.txt", body: "c"},
		{name: "d.txt", body: "d"},
	})

	out := filepath.Join(dir, "out")
	seen := 0
	for ev := range NewZip(4).Extract(context.Background(), archive, out) {
		seen++
		if ev.Tick == 1 {
			break
		}
	}

	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, countFiles(t, out))
}

func TestZipExtract_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "level.zip")
	writeZip(t, archive, []entry{{name: "a.txt", body: "a"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, last := collect(NewZip(DefaultBudget).Extract(ctx, archive, filepath.Join(dir, "out")))
	assert.ErrorIs(t, last.Err, context.Canceled)
}

func TestZipCanExtract(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "no-extension")
	writeZip(t, archive, []entry{{name: "a.txt", body: "a"}})

	ok, err := NewZip(0).CanExtract(archive)
	require.NoError(t, err)
	assert.True(t, ok)

	plain := filepath.Join(dir, "plain.zip")
	require.NoError(t, os.WriteFile(plain, []byte("hello"), 0644))
	ok, err = NewZip(0).CanExtract(plain)
	require.NoError(t, err)
	assert.False(t, ok)

	empty := filepath.Join(dir, "empty.zip")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	ok, err = NewZip(0).CanExtract(empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerExtract_Unsupported(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(plain, []byte("not an archive"), 0644))

	_, last := collect(NewManager(DefaultBudget).Extract(context.Background(), plain, filepath.Join(dir, "out")))
	assert.ErrorIs(t, last.Err, ErrUnsupported)
}

func TestManagerAvailableExtractors(t *testing.T) {
	names := NewManager(DefaultBudget).AvailableExtractors()
	require.NotEmpty(t, names)
	assert.Equal(t, "ZIP", names[0], "the native zip extractor is always first")
}

func TestTicker(t *testing.T) {
	tk := newTicker(50, 3)
	assert.Equal(t, expectedTicks(16), tk.advance(1))
	assert.Len(t, tk.advance(2), 17)
	assert.Len(t, tk.advance(3), 17)
	assert.Empty(t, tk.flush())

	zero := newTicker(5, 0)
	assert.Empty(t, zero.advance(1))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, zero.flush())
}
