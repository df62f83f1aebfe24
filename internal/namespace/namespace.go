// Package namespace translates restic's flat object namespace into the
// 115 Open Platform's folder-tree layout. It is pure: no I/O, no caching,
// no network calls — just string manipulation, so it can be unit tested
// in isolation from the cloud115 adapter.
package namespace

import (
	"fmt"
	"path"
	"strings"
)

// Type enumerates the restic object kinds the gateway understands.
type Type string

const (
	TypeConfig    Type = "config"
	TypeKeys      Type = "keys"
	TypeLocks     Type = "locks"
	TypeSnapshots Type = "snapshots"
	TypeIndex     Type = "index"
	TypeData      Type = "data"
)

// ShardWidth is the number of leading hex characters of a data/ object name
// used as its shard directory.
const ShardWidth = 2

// ValidTypes is the set of restic object kinds other than "config" that
// support listing and per-name operations.
var ValidTypes = map[Type]bool{
	TypeKeys:      true,
	TypeLocks:     true,
	TypeSnapshots: true,
	TypeIndex:     true,
	TypeData:      true,
}

// IsValidType reports whether t is one of the kinds the gateway serves,
// config included. Used to validate the {type} path segment before doing
// anything else.
func IsValidType(t string) bool {
	switch Type(t) {
	case TypeConfig, TypeKeys, TypeLocks, TypeSnapshots, TypeIndex, TypeData:
		return true
	}
	return false
}

// ConfigPath returns the provider-side path of the repository's config
// object: a file directly under the repository root, not inside a
// config/ subfolder. Every caller (bootstrap, upload, download, listing)
// must go through this function rather than hard-coding the layout.
func ConfigPath(root string) string {
	return path.Join(root, "config")
}

// TypeDir returns the provider-side directory for a non-config, non-sharded
// type (keys, locks, snapshots, index).
func TypeDir(root string, t Type) (string, error) {
	if t == TypeConfig {
		return "", fmt.Errorf("namespace: config has no directory, use ConfigPath")
	}
	if t == TypeData {
		return "", fmt.Errorf("namespace: data is sharded, use DataShardDir/DataObjectPath")
	}
	if !ValidTypes[t] {
		return "", fmt.Errorf("namespace: invalid type %q", t)
	}
	return path.Join(root, string(t)), nil
}

// ObjectPath returns the provider-side path for a non-data, non-config
// object (keys/<name>, locks/<name>, snapshots/<name>, index/<name>).
func ObjectPath(root string, t Type, name string) (string, error) {
	dir, err := TypeDir(root, t)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("namespace: empty object name")
	}
	return path.Join(dir, name), nil
}

// DataShard returns the 2-hex-character shard directory name for a data
// object name. The name must be at least ShardWidth hex characters.
func DataShard(name string) (string, error) {
	if len(name) < ShardWidth {
		return "", fmt.Errorf("namespace: data object name %q shorter than shard width %d", name, ShardWidth)
	}
	return strings.ToLower(name[:ShardWidth]), nil
}

// DataShardDir returns the provider-side shard directory for a data object
// name, e.g. <root>/data/ab.
func DataShardDir(root, name string) (string, error) {
	shard, err := DataShard(name)
	if err != nil {
		return "", err
	}
	return path.Join(root, string(TypeData), shard), nil
}

// DataObjectPath returns the full provider-side path for a data object,
// e.g. <root>/data/ab/abcdef0123...
func DataObjectPath(root, name string) (string, error) {
	dir, err := DataShardDir(root, name)
	if err != nil {
		return "", err
	}
	return path.Join(dir, name), nil
}

// DataDir returns the top-level data directory (the parent of all shard
// directories), e.g. <root>/data.
func DataDir(root string) string {
	return path.Join(root, string(TypeData))
}

// ObjectPathFor resolves the provider-side path for any restic object,
// dispatching on type. config is rejected — callers must special-case it
// via ConfigPath since config has no {name} component.
func ObjectPathFor(root string, t Type, name string) (string, error) {
	switch t {
	case TypeConfig:
		return "", fmt.Errorf("namespace: config has no per-name path, use ConfigPath")
	case TypeData:
		return DataObjectPath(root, name)
	default:
		return ObjectPath(root, t, name)
	}
}

// BootstrapDirs returns the canonical set of subdirectories created under
// the repository root by init_repository, in the order they
// should be created.
func BootstrapDirs() []Type {
	return []Type{TypeData, TypeKeys, TypeLocks, TypeSnapshots, TypeIndex}
}
