package cloud115

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/gaoyifan/restic-115/internal/namespace"
)

// listChunk is the page size used when paginating /open/ufile/files.
const listChunk = 1000

// listGroup ensures at most one paginated listing per parent id is in
// flight at a time; concurrent callers attach to the in-flight result.
var listGroup singleflight.Group

// filesListResponse is the subset of /open/ufile/files' data payload the
// adapter needs.
type filesListResponse struct {
	Items []struct {
		FileID   string `json:"fid"`
		Name     string `json:"fn"`
		Size     int64  `json:"fs"`
		PickCode string `json:"pc"`
		IsDir    int    `json:"fc"` // 0 = file, 1 = dir, per 115's files listing convention
	} `json:"data"`
	Count int `json:"count"`
}

// FindPathID resolves an absolute logical path to a directory id, walking
// segment by segment; each segment already in cache skips a provider call.
// It does not create anything — callers on the write path that need
// creation use ensurePath instead.
func (a *Adapter) FindPathID(ctx context.Context, logicalPath string) (string, error) {
	clean := strings.Trim(path.Clean(logicalPath), "/")
	if clean == "" || clean == "." {
		return rootParentID, nil
	}
	if d, ok := a.cache.DirByPath("/" + clean); ok {
		return d.ID, nil
	}

	parentID := rootParentID
	built := ""
	for _, segment := range strings.Split(clean, "/") {
		built = path.Join(built, segment)
		if d, ok := a.cache.DirByPath("/" + built); ok {
			parentID = d.ID
			continue
		}
		dirID, found, err := a.findDirInParent(ctx, parentID, segment)
		if err != nil {
			return "", err
		}
		if !found {
			return "", &NotFoundError{Path: "/" + built}
		}
		a.cache.PutDir(DirHandle{ID: dirID, Path: "/" + built})
		parentID = dirID
	}
	return parentID, nil
}

// findDirInParent uses the name-based search fast path to resolve a single
// subdirectory without listing the whole parent.
func (a *Adapter) findDirInParent(ctx context.Context, parentID, name string) (string, bool, error) {
	query := url.Values{}
	query.Set("search_value", name)
	query.Set("cid", parentID)

	data, err := a.client.GetJSON(ctx, PathFileSearch, query)
	if err != nil {
		return "", false, err
	}

	var results struct {
		Data []struct {
			FileID   string `json:"file_id"`
			FileName string `json:"file_name"`
			IsDir    int    `json:"is_dir"`
			ParentID string `json:"parent_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &results); err != nil {
		return "", false, fmt.Errorf("%w: parsing search response: %v", ErrInternal, err)
	}
	for _, r := range results.Data {
		if r.FileName == name && r.ParentID == parentID && r.IsDir == 1 {
			return r.FileID, true, nil
		}
	}
	return "", false, nil
}

// findFileInParent consults the cache, then falls back to the name search
// fast path rather than a full listing, since the caller only needs one
// entry.
func (a *Adapter) findFileInParent(ctx context.Context, parentID, name string) (FileEntry, bool, error) {
	if entry, ok := a.cache.FindFile(parentID, name); ok {
		return entry, true, nil
	}

	query := url.Values{}
	query.Set("search_value", name)
	query.Set("cid", parentID)

	data, err := a.client.GetJSON(ctx, PathFileSearch, query)
	if err != nil {
		return FileEntry{}, false, err
	}

	var results struct {
		Data []struct {
			FileID   string `json:"file_id"`
			FileName string `json:"file_name"`
			ParentID string `json:"parent_id"`
			Size     int64  `json:"size"`
			PickCode string `json:"pick_code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &results); err != nil {
		return FileEntry{}, false, fmt.Errorf("%w: parsing search response: %v", ErrInternal, err)
	}
	for _, r := range results.Data {
		if r.FileName == name && r.ParentID == parentID {
			entry := FileEntry{Name: name, ParentID: parentID, Size: r.Size, PickCode: r.PickCode, FileID: r.FileID}
			a.cache.InsertFile(parentID, entry)
			return entry, true, nil
		}
	}
	return FileEntry{}, false, nil
}

// List returns the FileEntry set cached under parentID, repopulating via
// paginated listing when forceRefresh is set or the cache has nothing for
// this parent yet. The root is never listed as part of steady-state
// operation — callers must pass a non-root parent id.
func (a *Adapter) List(ctx context.Context, parentID string, forceRefresh bool) ([]FileEntry, error) {
	if !forceRefresh {
		if cached := a.cache.List(parentID); len(cached) > 0 {
			return cached, nil
		}
	}

	v, err, _ := listGroup.Do(parentID, func() (any, error) {
		entries, _, err := a.fetchEntriesFromAPI(ctx, parentID)
		if err != nil {
			return nil, err
		}
		a.cache.ReplaceListing(parentID, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]FileEntry), nil
}

// dirListing names a directory entry seen while paginating a parent.
type dirListing struct {
	Name string
	ID   string
}

// fetchEntriesFromAPI walks the paginated files endpoint until exhausted,
// splitting the page into files and subdirectories.
func (a *Adapter) fetchEntriesFromAPI(ctx context.Context, parentID string) ([]FileEntry, []dirListing, error) {
	var files []FileEntry
	var dirs []dirListing
	offset := 0
	for {
		query := url.Values{}
		query.Set("cid", parentID)
		query.Set("limit", strconv.Itoa(listChunk))
		query.Set("offset", strconv.Itoa(offset))

		data, err := a.client.GetJSON(ctx, PathFilesList, query)
		if err != nil {
			return nil, nil, fmt.Errorf("listing parent %q: %w", parentID, err)
		}

		var page filesListResponse
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, nil, fmt.Errorf("%w: parsing files list page: %v", ErrInternal, err)
		}

		for _, item := range page.Items {
			if item.IsDir == 1 {
				dirs = append(dirs, dirListing{Name: item.Name, ID: item.FileID})
				continue
			}
			files = append(files, FileEntry{
				Name:     item.Name,
				ParentID: parentID,
				Size:     item.Size,
				PickCode: item.PickCode,
				FileID:   item.FileID,
			})
		}

		if len(page.Items) < listChunk {
			break
		}
		offset += listChunk
	}
	return files, dirs, nil
}

// ListDataTree enumerates every extant shard subdirectory under data/ and
// concatenates their contents, since the sharded layout means no single
// listing call covers every object stored under data/.
func (a *Adapter) ListDataTree(ctx context.Context) ([]FileEntry, error) {
	dataRoot := namespace.DataDir(a.root)
	dataRootID, err := a.FindPathID(ctx, dataRoot)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	_, shardDirs, err := a.fetchEntriesFromAPI(ctx, dataRootID)
	if err != nil {
		return nil, err
	}

	var all []FileEntry
	for _, shard := range shardDirs {
		a.cache.PutDir(DirHandle{ID: shard.ID, Path: path.Join(dataRoot, shard.Name)})
		entries, err := a.List(ctx, shard.ID, false)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
