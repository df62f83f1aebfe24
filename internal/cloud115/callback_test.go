package cloud115

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCallbackPlainJSON(t *testing.T) {
	raw := []byte(`{"file_id":"123","pick_code":"abc","cid":"sha1hex","file_size":1024}`)
	result, err := ParseCallback(raw)
	require.NoError(t, err)
	require.Equal(t, "123", result.FileID)
	require.Equal(t, "abc", result.PickCode)
	require.Equal(t, "sha1hex", result.Cid)
	require.Equal(t, int64(1024), result.Size)
}

func TestParseCallbackBase64Wrapped(t *testing.T) {
	inner := `{"pickcode":"def456","fileId":"789","size":2048}`
	raw := []byte(base64.StdEncoding.EncodeToString([]byte(inner)))

	result, err := ParseCallback(raw)
	require.NoError(t, err)
	require.Equal(t, "def456", result.PickCode)
	require.Equal(t, "789", result.FileID)
	require.Equal(t, int64(2048), result.Size)
}

func TestParseCallbackNestedUnderData(t *testing.T) {
	raw := []byte(`{"state":true,"data":{"pick_code":"nested-pc","file_id":"f1","filesize":512}}`)
	result, err := ParseCallback(raw)
	require.NoError(t, err)
	require.Equal(t, "nested-pc", result.PickCode)
	require.Equal(t, int64(512), result.Size)
}

func TestParseCallbackMissingPickCodeErrors(t *testing.T) {
	raw := []byte(`{"file_id":"123"}`)
	_, err := ParseCallback(raw)
	require.Error(t, err)
}

func TestParseCallbackGarbageErrors(t *testing.T) {
	_, err := ParseCallback([]byte("not json and not base64 either!!"))
	require.Error(t, err)
}
