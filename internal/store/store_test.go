package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "{timestamp}-{random}", "month")
	require.NoError(t, err)
	return s
}

func saveOne(t *testing.T, s *Store, capturedAt time.Time) Metadata {
	t.Helper()
	meta, err := s.Save([]byte("not-really-a-png"), Metadata{
		CapturedAt:    capturedAt,
		Width:         800,
		Height:        600,
		Format:        "png",
		CaptureMode:   "fullscreen",
		DisplayServer: "x11",
	})
	require.NoError(t, err)
	return meta
}

func TestSaveThenGet(t *testing.T) {
	s := testStore(t)
	captured := time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC)

	meta := saveOne(t, s, captured)
	require.NotEmpty(t, meta.ID)
	assert.Equal(t, int64(len("not-really-a-png")), meta.FileSize)

	// Image lands under the YYYY-MM month directory
	assert.Equal(t, "2024-03", filepath.Dir(filepath.FromSlash(meta.Path)))

	abs, err := s.ImagePath(&meta)
	require.NoError(t, err)
	_, err = os.Stat(abs)
	require.NoError(t, err)
	_, err = os.Stat(abs + ".json")
	require.NoError(t, err)

	got, err := s.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestGetByPrefix(t *testing.T) {
	s := testStore(t)
	meta := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))

	got, err := s.Get(meta.ID[:12])
	require.NoError(t, err)
	assert.Equal(t, meta.ID, got.ID)

	_, err = s.Get("20990101")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	captured := time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC)
	saveOne(t, s, captured)
	saveOne(t, s, captured)

	// Both ids share the timestamp half; only the random suffix differs
	_, err := s.Get("20240315-142233")
	assert.ErrorIs(t, err, ErrAmbiguousID)
}

func TestListNewestFirst(t *testing.T) {
	s := testStore(t)
	old := saveOne(t, s, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	mid := saveOne(t, s, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	neu := saveOne(t, s, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{neu.ID, mid.ID, old.ID},
		[]string{records[0].ID, records[1].ID, records[2].ID})

	limited, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, neu.ID, limited[0].ID)
}

func TestTagIdempotentUnion(t *testing.T) {
	s := testStore(t)
	meta := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))

	got, err := s.Tag(meta.ID, "vacation", "beach")
	require.NoError(t, err)
	assert.Equal(t, []string{"vacation", "beach"}, got.Tags)

	// Re-tagging adds nothing; case and whitespace normalize away
	got, err = s.Tag(meta.ID, "Vacation", " sunset ")
	require.NoError(t, err)
	assert.Equal(t, []string{"vacation", "beach", "sunset"}, got.Tags)

	got, err = s.Untag(meta.ID, "Beach", "never-there")
	require.NoError(t, err)
	assert.Equal(t, []string{"vacation", "sunset"}, got.Tags)
}

func TestNote(t *testing.T) {
	s := testStore(t)
	meta := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))

	got, err := s.Note(meta.ID, "the bug reproduced here")
	require.NoError(t, err)
	assert.Equal(t, "the bug reproduced here", got.Notes)

	// Persisted, not just returned
	got, err = s.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "the bug reproduced here", got.Notes)
}

func TestSearch(t *testing.T) {
	s := testStore(t)
	a := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))
	b := saveOne(t, s, time.Date(2024, 3, 16, 14, 22, 33, 0, time.UTC))
	saveOne(t, s, time.Date(2024, 3, 17, 14, 22, 33, 0, time.UTC))

	_, err := s.Tag(a.ID, "Vacation")
	require.NoError(t, err)
	_, err = s.Note(b.ID, "photos from the vacation trip")
	require.NoError(t, err)

	// Case-insensitive, matches tags and notes
	hits, err := s.Search("vacation")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = s.Search("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteAndRestore(t *testing.T) {
	s := testStore(t)
	meta := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))

	before, err := s.Delete(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta, before)

	// Gone from every live view, Get included
	records, err := s.List(0)
	require.NoError(t, err)
	assert.Empty(t, records)
	hits, err := s.Search("2024")
	require.NoError(t, err)
	assert.Empty(t, hits)
	_, err = s.Get(meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// But the bytes sit in the trash
	trash, err := s.ListTrash()
	require.NoError(t, err)
	require.Len(t, trash, 1)

	restored, err := s.Restore(meta.ID)
	require.NoError(t, err)
	assert.False(t, restored.Trashed)
	assert.Equal(t, meta.Path, restored.Path)

	abs, err := s.ImagePath(&restored)
	require.NoError(t, err)
	_, err = os.Stat(abs)
	require.NoError(t, err)

	records, err = s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestDeleteTwiceFails(t *testing.T) {
	s := testStore(t)
	meta := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))

	_, err := s.Delete(meta.ID)
	require.NoError(t, err)
	_, err = s.Delete(meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImagePathRejectsTraversal(t *testing.T) {
	s := testStore(t)
	meta := Metadata{Path: "../outside/secret.png"}
	_, err := s.ImagePath(&meta)
	require.Error(t, err)
}

func TestCorruptSidecarSkipped(t *testing.T) {
	s := testStore(t)
	meta := saveOne(t, s, time.Date(2024, 3, 15, 14, 22, 33, 0, time.UTC))

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "broken.json"), []byte("{nope"), 0o644))

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, meta.ID, records[0].ID)
}
