package namespace

import "testing"

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/restic-backup")
	want := "/restic-backup/config"
	if got != want {
		t.Fatalf("ConfigPath: got %q, want %q", got, want)
	}
}

func TestObjectPath(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		obj     string
		want    string
		wantErr bool
	}{
		{name: "keys", typ: TypeKeys, obj: "abc123", want: "/root/keys/abc123"},
		{name: "locks", typ: TypeLocks, obj: "lock1", want: "/root/locks/lock1"},
		{name: "snapshots", typ: TypeSnapshots, obj: "snap1", want: "/root/snapshots/snap1"},
		{name: "index", typ: TypeIndex, obj: "idx1", want: "/root/index/idx1"},
		{name: "config rejected", typ: TypeConfig, obj: "config", wantErr: true},
		{name: "data rejected", typ: TypeData, obj: "abcdef0123", wantErr: true},
		{name: "empty name", typ: TypeKeys, obj: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ObjectPath("/root", tt.typ, tt.obj)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDataObjectPath(t *testing.T) {
	got, err := DataObjectPath("/root", "abcdef0123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "/root/data/ab/abcdef0123456789"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDataObjectPathTooShort(t *testing.T) {
	if _, err := DataObjectPath("/root", "a"); err == nil {
		t.Fatal("expected error for short name")
	}
}

func TestDataShardDir(t *testing.T) {
	got, err := DataShardDir("/root", "ABCDEF0123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// shard is lowercased regardless of input case
	want := "/root/data/ab"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsValidType(t *testing.T) {
	for _, ok := range []string{"config", "keys", "locks", "snapshots", "index", "data"} {
		if !IsValidType(ok) {
			t.Fatalf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"", "Config", "metadata", "blobs"} {
		if IsValidType(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestBootstrapDirsOrder(t *testing.T) {
	dirs := BootstrapDirs()
	want := []Type{TypeData, TypeKeys, TypeLocks, TypeSnapshots, TypeIndex}
	if len(dirs) != len(want) {
		t.Fatalf("got %d dirs, want %d", len(dirs), len(want))
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Fatalf("dirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}
