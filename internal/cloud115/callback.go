package cloud115

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CallbackResult is the authoritative file identity synthesized from an
// OSS upload callback.
type CallbackResult struct {
	FileID   string
	PickCode string
	Cid      string
	Size     int64
}

// candidateKeys lists the field name variants the 115 callback body has
// been observed to use for each logical field, since the provider nests
// them differently across upload strategies (instant-dedup vs OSS PUT vs
// multipart).
var candidateKeys = map[string][]string{
	"file_id":   {"file_id", "fileId", "FileID"},
	"pick_code": {"pick_code", "pickcode", "pick_code_", "PickCode"},
	"cid":       {"cid", "file_cid", "sha1"},
	"file_size": {"file_size", "size", "filesize"},
}

// ParseCallback decodes a raw OSS callback body into a CallbackResult. The
// body may be plain JSON, base64-wrapped JSON, or JSON with the fields
// nested one level under a "data" key — this function tries each shape
// rather than assuming one.
func ParseCallback(raw []byte) (*CallbackResult, error) {
	parsed, err := decodeMaybeBase64JSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing OSS callback: %v", ErrInternal, err)
	}

	flat := flattenCallback(parsed)

	result := &CallbackResult{
		FileID:   firstString(flat, candidateKeys["file_id"]),
		PickCode: firstString(flat, candidateKeys["pick_code"]),
		Cid:      firstString(flat, candidateKeys["cid"]),
		Size:     firstInt(flat, candidateKeys["file_size"]),
	}
	if result.PickCode == "" {
		return nil, fmt.Errorf("%w: OSS callback missing pick_code", ErrUpstreamFailure)
	}
	return result, nil
}

// decodeMaybeBase64JSON tries raw JSON first, then base64-decodes and
// retries, since some upload paths wrap the callback body in base64.
func decodeMaybeBase64JSON(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("not JSON and not base64: %w", err)
	}
	if err := json.Unmarshal(decoded, &m); err != nil {
		return nil, fmt.Errorf("base64-decoded body not JSON: %w", err)
	}
	return m, nil
}

// flattenCallback merges top-level fields with anything nested one level
// under a handful of commonly observed wrapper keys ("data", "callback",
// "result"), so candidate-key lookups see a single flat map regardless of
// nesting.
func flattenCallback(m map[string]any) map[string]any {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		flat[k] = v
	}
	for _, wrapper := range []string{"data", "callback", "result"} {
		nested, ok := m[wrapper].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range nested {
			if _, exists := flat[k]; !exists {
				flat[k] = v
			}
		}
	}
	return flat
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val
			}
		case float64:
			return fmt.Sprintf("%.0f", val)
		}
	}
	return ""
}

func firstInt(m map[string]any, keys []string) int64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return int64(val)
		case string:
			var n int64
			if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
				return n
			}
		}
	}
	return 0
}
