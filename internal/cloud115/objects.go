package cloud115

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/gaoyifan/restic-115/internal/namespace"
)

// ObjectInfo is the name/size pair the REST surface's listing handler
// serializes for a given object type.
type ObjectInfo struct {
	Name string
	Size int64
}

// HeadConfig reports the size of the repository's config object.
func (a *Adapter) HeadConfig(ctx context.Context) (int64, bool, error) {
	return a.headByPath(ctx, namespace.ConfigPath(a.root))
}

// GetConfig streams the repository's config object.
func (a *Adapter) GetConfig(ctx context.Context, rangeHeader string) (*DownloadStream, error) {
	return a.Download(ctx, namespace.ConfigPath(a.root), rangeHeader)
}

// PutConfig uploads the repository's config object.
func (a *Adapter) PutConfig(ctx context.Context, content UploadBody) error {
	return a.UploadObject(ctx, namespace.ConfigPath(a.root), content)
}

// HeadObject reports the size of a typed, named object (keys/locks/snapshots/index/data).
func (a *Adapter) HeadObject(ctx context.Context, t namespace.Type, name string) (int64, bool, error) {
	objectPath, err := namespace.ObjectPathFor(a.root, t, name)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return a.headByPath(ctx, objectPath)
}

func (a *Adapter) headByPath(ctx context.Context, objectPath string) (int64, bool, error) {
	dir, name := path.Split(objectPath)
	parentID, err := a.FindPathID(ctx, dir)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	entry, found, err := a.findFileInParent(ctx, parentID, name)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	return entry.Size, true, nil
}

// GetObject streams a typed, named object, honoring rangeHeader verbatim.
func (a *Adapter) GetObject(ctx context.Context, t namespace.Type, name, rangeHeader string) (*DownloadStream, error) {
	objectPath, err := namespace.ObjectPathFor(a.root, t, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return a.Download(ctx, objectPath, rangeHeader)
}

// PutObject uploads a typed, named object.
func (a *Adapter) PutObject(ctx context.Context, t namespace.Type, name string, content UploadBody) error {
	objectPath, err := namespace.ObjectPathFor(a.root, t, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return a.UploadObject(ctx, objectPath, content)
}

// DeleteObject removes a typed, named object. Absent targets are not an
// error: delete is idempotent by contract, always reporting success.
func (a *Adapter) DeleteObject(ctx context.Context, t namespace.Type, name string) error {
	objectPath, err := namespace.ObjectPathFor(a.root, t, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	dir, fname := path.Split(objectPath)
	parentID, err := a.FindPathID(ctx, dir)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	entry, found, err := a.findFileInParent(ctx, parentID, fname)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	form := url.Values{}
	form.Set("file_ids", entry.FileID)
	if _, err := a.client.PostFormJSON(ctx, PathFileDelete, form); err != nil {
		return fmt.Errorf("deleting %q: %w", objectPath, err)
	}
	a.cache.RemoveFile(parentID, fname)
	return nil
}

// ListType returns every object of the given type. data/ is assembled from
// every extant shard; every other type lists its single directory
// directly.
func (a *Adapter) ListType(ctx context.Context, t namespace.Type) ([]ObjectInfo, error) {
	var entries []FileEntry
	var err error

	if t == namespace.TypeData {
		entries, err = a.ListDataTree(ctx)
	} else {
		dir, derr := namespace.TypeDir(a.root, t)
		if derr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, derr)
		}
		parentID, ferr := a.FindPathID(ctx, dir)
		if ferr != nil {
			if isNotFound(ferr) {
				return []ObjectInfo{}, nil
			}
			return nil, ferr
		}
		entries, err = a.List(ctx, parentID, false)
	}
	if err != nil {
		return nil, err
	}

	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ObjectInfo{Name: e.Name, Size: e.Size})
	}
	return out, nil
}
