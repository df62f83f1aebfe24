package cloud115

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPersistCredentialPreservesOtherLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	initial := "FOO=bar\nOPEN115_ACCESS_TOKEN=old-access\n# a comment\nOPEN115_REFRESH_TOKEN=old-refresh\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	require.NoError(t, persistCredential(path, &Credential{AccessToken: "new-access", RefreshToken: "new-refresh"}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(got)

	require.True(t, strings.Contains(text, "FOO=bar"))
	require.True(t, strings.Contains(text, "OPEN115_ACCESS_TOKEN=new-access"))
	require.True(t, strings.Contains(text, "OPEN115_REFRESH_TOKEN=new-refresh"))
	require.True(t, strings.Contains(text, "# a comment"))
	require.False(t, strings.Contains(text, "old-access"))
	require.False(t, strings.Contains(text, "old-refresh"))
}

func TestPersistCredentialCreatesMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("UNRELATED=1\n"), 0o644))

	require.NoError(t, persistCredential(path, &Credential{AccessToken: "a", RefreshToken: "r"}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(got)
	require.True(t, strings.Contains(text, "OPEN115_ACCESS_TOKEN=a"))
	require.True(t, strings.Contains(text, "OPEN115_REFRESH_TOKEN=r"))
}

func TestTruthyStatePolymorphic(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"bool true", `true`, true},
		{"bool false", `false`, false},
		{"int 1", `1`, true},
		{"int 0", `0`, false},
		{"string 1", `"1"`, true},
		{"string true", `"true"`, true},
		{"string 0", `"0"`, false},
		{"absent", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, truthyState([]byte(tt.raw)))
		})
	}
}
