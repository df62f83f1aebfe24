package cloud115

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gaoyifan/restic-115/internal/namespace"
)

// rootParentID is the provider's id for the top-level of the drive, the
// parent of any directory created directly under the account root.
const rootParentID = "0"

// folderAddResponse is the subset of /open/folder/add's data payload the
// adapter needs.
type folderAddResponse struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// InitRepository ensures <root> and <root>/{data,keys,locks,snapshots,index}
// exist, creating any missing segment idempotently. config is
// deliberately not a directory so it
// is not created here.
func (a *Adapter) InitRepository(ctx context.Context) error {
	rootID, err := a.ensurePath(ctx, a.root)
	if err != nil {
		return fmt.Errorf("bootstrapping repository root: %w", err)
	}

	for _, t := range namespace.BootstrapDirs() {
		if _, err := a.CreateDirectory(ctx, rootID, string(t)); err != nil {
			return fmt.Errorf("bootstrapping %s: %w", t, err)
		}
	}
	return nil
}

// ensurePath walks and creates every segment of an absolute logical path,
// returning the final segment's directory id. Used only from the write
// path (InitRepository, upload) — never from a read handler.
func (a *Adapter) ensurePath(ctx context.Context, logicalPath string) (string, error) {
	clean := strings.Trim(path.Clean(logicalPath), "/")
	if clean == "" || clean == "." {
		return rootParentID, nil
	}

	parentID := rootParentID
	built := ""
	for _, segment := range strings.Split(clean, "/") {
		built = path.Join(built, segment)
		if d, ok := a.cache.DirByPath("/" + built); ok {
			parentID = d.ID
			continue
		}
		id, err := a.CreateDirectory(ctx, parentID, segment)
		if err != nil {
			return "", err
		}
		a.cache.PutDir(DirHandle{ID: id, Path: "/" + built})
		parentID = id
	}
	return parentID, nil
}

// CreateDirectory is idempotent: if name already exists under
// parent, it returns the existing id rather than erroring. 115's
// folder/add endpoint itself reports "already exists" rather than failing,
// so on that signal the adapter falls back to a name search under parent
// to recover the existing id.
func (a *Adapter) CreateDirectory(ctx context.Context, parentID, name string) (string, error) {
	form := url.Values{}
	form.Set("pid", parentID)
	form.Set("file_name", name)

	data, err := a.client.PostFormJSON(ctx, PathFolderAdd, form)
	if err == nil {
		var resp folderAddResponse
		if uerr := json.Unmarshal(data, &resp); uerr != nil {
			return "", fmt.Errorf("%w: parsing folder/add response: %v", ErrInternal, uerr)
		}
		return resp.FileID, nil
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) || !isDuplicateNameCode(upstream.Code) {
		return "", fmt.Errorf("creating directory %q under %q: %w", name, parentID, err)
	}

	existing, found, err := a.searchDirByName(ctx, parentID, name)
	if err != nil {
		return "", fmt.Errorf("recovering existing directory %q under %q: %w", name, parentID, err)
	}
	if !found {
		return "", fmt.Errorf("%w: folder/add reported duplicate but search found nothing for %q under %q", ErrInternal, name, parentID)
	}
	return existing, nil
}

// isDuplicateNameCode reports whether a folder/add error code means "a
// directory with this name already exists under this parent" rather than
// a real failure. 115 has used multiple such codes across API versions;
// this recognizes the documented one and treats any other non-zero code
// as a genuine failure.
func isDuplicateNameCode(code int) bool {
	return code == 20004
}

// searchDirByName uses the name-based search fast path scoped
// to a parent, to recover a directory id after a reported duplicate-name
// conflict without listing the whole parent.
func (a *Adapter) searchDirByName(ctx context.Context, parentID, name string) (string, bool, error) {
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
