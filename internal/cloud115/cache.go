package cloud115

import (
	"sync"
	"time"
)

// hintTTL and ticketMaxTTL bound the short-lived cache entries populated by
// upload callbacks and download-URL resolution.
const (
	hintTTL      = 5 * time.Minute
	ticketMaxTTL = 5 * time.Minute
)

// entryID is a stable arena key for a FileEntry. Per the cyclic-reference
// design note, the path index and the parent index both hold
// entryIDs into a flat arena rather than holding pointers to each other.
type entryID uint64

// DirHandle is a provider-assigned directory, addressed by its absolute
// logical path. Immutable once created.
type DirHandle struct {
	ID   string
	Path string
}

// FileEntry is a file known to the cache, either from a listing or from an
// upload callback.
type FileEntry struct {
	Name     string
	ParentID string
	Size     int64
	PickCode string
	FileID   string
}

// FileHint records file identity observed from an OSS upload callback,
// before the provider's own indexer has made the file visible to a
// listing.
type FileHint struct {
	FileID    string
	PickCode  string
	Size      int64
	expiresAt time.Time
}

// DownloadTicket is a cached signed download URL.
type DownloadTicket struct {
	URL       string
	expiresAt time.Time
}

// Cache is the single source of truth for read-path operations: directory handles by path, file entries by (parent, name), file
// hints bridging the read-after-write gap, and download tickets.
type Cache struct {
	mu sync.RWMutex

	nextID  entryID
	entries map[entryID]*FileEntry

	dirsByPath map[string]*DirHandle
	dirsByID   map[string]*DirHandle

	// fileIndex indexes entryIDs by (parentID, name) for uniqueness and
	// byParent by parentID alone for listing.
	fileIndex  map[string]entryID            // key: parentID + "\x00" + name
	byParent   map[string]map[string]entryID // parentID -> name -> entryID

	hints   map[string]*FileHint // key: parentID + "\x00" + name
	tickets map[string]*DownloadTicket
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entries:    make(map[entryID]*FileEntry),
		dirsByPath: make(map[string]*DirHandle),
		dirsByID:   make(map[string]*DirHandle),
		fileIndex:  make(map[string]entryID),
		byParent:   make(map[string]map[string]entryID),
		hints:      make(map[string]*FileHint),
		tickets:    make(map[string]*DownloadTicket),
	}
}

func fileKey(parentID, name string) string {
	return parentID + "\x00" + name
}

// PutDir installs an observed directory handle, keyed by both path and id.
func (c *Cache) PutDir(d DirHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle := &DirHandle{ID: d.ID, Path: d.Path}
	c.dirsByPath[d.Path] = handle
	c.dirsByID[d.ID] = handle
}

// DirByPath returns the directory handle for an exact logical path, if known.
func (c *Cache) DirByPath(path string) (DirHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dirsByPath[path]
	if !ok {
		return DirHandle{}, false
	}
	return *d, true
}

// DirByID returns the directory handle for a provider-assigned id, if known.
func (c *Cache) DirByID(id string) (DirHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dirsByID[id]
	if !ok {
		return DirHandle{}, false
	}
	return *d, true
}

// InsertFile installs or replaces a FileEntry for (parentID, name). Writes
// always supersede whatever was cached before, per the freshness
// monotonicity invariant — there is no timestamp comparison
// because a direct write is always considered newer than any prior listing.
func (c *Cache) InsertFile(parentID string, entry FileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertFileLocked(parentID, entry)
}

func (c *Cache) insertFileLocked(parentID string, entry FileEntry) entryID {
	key := fileKey(parentID, entry.Name)
	entry.ParentID = parentID

	if id, exists := c.fileIndex[key]; exists {
		c.entries[id] = &entry
		return id
	}

	c.nextID++
	id := c.nextID
	c.entries[id] = &entry
	c.fileIndex[key] = id

	if c.byParent[parentID] == nil {
		c.byParent[parentID] = make(map[string]entryID)
	}
	c.byParent[parentID][entry.Name] = id
	return id
}

// RemoveFile evicts the FileEntry and any FileHint for (parentID, name).
// Both must go together: a surviving hint would make FindFile keep
// reporting the file present after a delete, since hints are exactly the
// fallback FindFile uses when no entry exists.
func (c *Cache) RemoveFile(parentID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fileKey(parentID, name)
	delete(c.hints, key)
	id, ok := c.fileIndex[key]
	if !ok {
		return
	}
	delete(c.fileIndex, key)
	delete(c.entries, id)
	if names := c.byParent[parentID]; names != nil {
		delete(names, name)
	}
}

// FindFile looks up (parentID, name), consulting the FileHint table as a
// fallback when the entry isn't in the listing-derived cache yet. Hint precedence: when both exist, the hint's PickCode
// is used only if the FileEntry lacks one.
func (c *Cache) FindFile(parentID, name string) (FileEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := fileKey(parentID, name)
	if id, ok := c.fileIndex[key]; ok {
		entry := *c.entries[id]
		if entry.PickCode == "" {
			if hint, ok := c.validHintLocked(key); ok {
				entry.PickCode = hint.PickCode
				if entry.FileID == "" {
					entry.FileID = hint.FileID
				}
			}
		}
		return entry, true
	}

	if hint, ok := c.validHintLocked(key); ok {
		return FileEntry{
			Name:     name,
			ParentID: parentID,
			Size:     hint.Size,
			PickCode: hint.PickCode,
			FileID:   hint.FileID,
		}, true
	}
	return FileEntry{}, false
}

func (c *Cache) validHintLocked(key string) (*FileHint, bool) {
	hint, ok := c.hints[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(hint.expiresAt) {
		return nil, false
	}
	return hint, true
}

// PutHint installs a FileHint keyed by (parentID, name) with the standard
// TTL, called from the upload pipeline after a callback.
func (c *Cache) PutHint(parentID, name string, hint FileHint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hint.expiresAt = time.Now().Add(hintTTL)
	c.hints[fileKey(parentID, name)] = &hint
}

// List returns every FileEntry cached under parentID.
func (c *Cache) List(parentID string) []FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := c.byParent[parentID]
	out := make([]FileEntry, 0, len(names))
	for _, id := range names {
		out = append(out, *c.entries[id])
	}
	return out
}

// ReplaceListing overwrites the cached file set for parentID with a fresh
// listing, promoting any hint that the listing confirms and dropping hints
// the listing supersedes.
func (c *Cache) ReplaceListing(parentID string, entries []FileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if names := c.byParent[parentID]; names != nil {
		for name, id := range names {
			delete(c.fileIndex, fileKey(parentID, name))
			delete(c.entries, id)
		}
	}
	c.byParent[parentID] = make(map[string]entryID)

	for _, entry := range entries {
		c.insertFileLocked(parentID, entry)
		delete(c.hints, fileKey(parentID, entry.Name))
	}
}

// PutTicket installs a download ticket, capping its TTL to the lesser of
// the issuer's stated expiry and the local ceiling.
func (c *Cache) PutTicket(pickCode string, url string, issuerExpiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ceiling := time.Now().Add(ticketMaxTTL)
	expiry := issuerExpiry
	if expiry.IsZero() || expiry.After(ceiling) {
		expiry = ceiling
	}
	c.tickets[pickCode] = &DownloadTicket{URL: url, expiresAt: expiry}
}

// Ticket returns a non-expired download ticket for pickCode, if any.
func (c *Cache) Ticket(pickCode string) (DownloadTicket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickets[pickCode]
	if !ok || time.Now().After(t.expiresAt) {
		return DownloadTicket{}, false
	}
	return *t, true
}

// EvictTicket removes a download ticket, e.g. after a 403/410 from the CDN
//.
func (c *Cache) EvictTicket(pickCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tickets, pickCode)
}
