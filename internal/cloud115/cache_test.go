package cloud115

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertFileThenFindFile(t *testing.T) {
	c := NewCache()
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 100, PickCode: "pc1"})

	entry, ok := c.FindFile("parent1", "a.bin")
	require.True(t, ok)
	require.Equal(t, int64(100), entry.Size)
	require.Equal(t, "pc1", entry.PickCode)
}

func TestInsertFileUniquenessOverwrites(t *testing.T) {
	c := NewCache()
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 100})
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 200})

	entries := c.List("parent1")
	require.Len(t, entries, 1)
	require.Equal(t, int64(200), entries[0].Size)
}

func TestRemoveFile(t *testing.T) {
	c := NewCache()
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 1})
	c.RemoveFile("parent1", "a.bin")

	_, ok := c.FindFile("parent1", "a.bin")
	require.False(t, ok)
}

func TestRemoveFileAlsoEvictsHint(t *testing.T) {
	c := NewCache()
	// Simulates upload-then-delete within the hint TTL: an upload installs
	// a FileEntry and a hint, and a delete must drop both so a subsequent
	// lookup doesn't resurrect the file via the surviving hint.
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 1, PickCode: "pc1"})
	c.PutHint("parent1", "a.bin", FileHint{FileID: "f1", PickCode: "pc1", Size: 1})

	c.RemoveFile("parent1", "a.bin")

	_, ok := c.FindFile("parent1", "a.bin")
	require.False(t, ok)
}

func TestHintPrecedenceOnlyWhenEntryLacksPickCode(t *testing.T) {
	c := NewCache()
	// Entry has no pick code yet; hint should fill it in.
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 1})
	c.PutHint("parent1", "a.bin", FileHint{FileID: "f1", PickCode: "hint-pc", Size: 1})

	entry, ok := c.FindFile("parent1", "a.bin")
	require.True(t, ok)
	require.Equal(t, "hint-pc", entry.PickCode)

	// Now the entry gets its own pick code (e.g. from a listing refresh) —
	// the hint must no longer override it.
	c.InsertFile("parent1", FileEntry{Name: "a.bin", Size: 1, PickCode: "real-pc"})
	entry, ok = c.FindFile("parent1", "a.bin")
	require.True(t, ok)
	require.Equal(t, "real-pc", entry.PickCode)
}

func TestFindFileFallsBackToHintWhenNoEntry(t *testing.T) {
	c := NewCache()
	c.PutHint("parent1", "fresh.bin", FileHint{FileID: "f2", PickCode: "pc2", Size: 42})

	entry, ok := c.FindFile("parent1", "fresh.bin")
	require.True(t, ok)
	require.Equal(t, int64(42), entry.Size)
	require.Equal(t, "pc2", entry.PickCode)
}

func TestReplaceListingPromotesAndDropsHints(t *testing.T) {
	c := NewCache()
	c.PutHint("parent1", "a.bin", FileHint{FileID: "f1", PickCode: "hint-pc", Size: 1})

	c.ReplaceListing("parent1", []FileEntry{
		{Name: "a.bin", Size: 1, PickCode: "listed-pc"},
		{Name: "b.bin", Size: 2},
	})

	entries := c.List("parent1")
	require.Len(t, entries, 2)

	entry, ok := c.FindFile("parent1", "a.bin")
	require.True(t, ok)
	require.Equal(t, "listed-pc", entry.PickCode)
}

func TestTicketTTLCappedToCeiling(t *testing.T) {
	c := NewCache()
	farFuture := time.Now().Add(1 * time.Hour)
	c.PutTicket("pc1", "https://example.com/signed", farFuture)

	ticket, ok := c.Ticket("pc1")
	require.True(t, ok)
	require.True(t, ticket.expiresAt.Before(farFuture))
}

func TestTicketExpiredNotReturned(t *testing.T) {
	c := NewCache()
	c.PutTicket("pc1", "https://example.com/signed", time.Now().Add(-1*time.Minute))

	_, ok := c.Ticket("pc1")
	require.False(t, ok)
}

func TestEvictTicket(t *testing.T) {
	c := NewCache()
	c.PutTicket("pc1", "https://example.com/signed", time.Now().Add(time.Minute))
	c.EvictTicket("pc1")

	_, ok := c.Ticket("pc1")
	require.False(t, ok)
}

func TestDirByPathAndID(t *testing.T) {
	c := NewCache()
	c.PutDir(DirHandle{ID: "d1", Path: "/root/keys"})

	byPath, ok := c.DirByPath("/root/keys")
	require.True(t, ok)
	require.Equal(t, "d1", byPath.ID)

	byID, ok := c.DirByID("d1")
	require.True(t, ok)
	require.Equal(t, "/root/keys", byID.Path)
}
