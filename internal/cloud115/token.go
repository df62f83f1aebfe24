package cloud115

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Credential is the current access/refresh token pair. Both fields are
// replaced atomically on a successful refresh.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// TokenManager holds the current credential and performs refreshes,
// guaranteeing at most one refresh in flight at a time.
type TokenManager struct {
	cred atomic.Pointer[Credential]

	httpClient *http.Client
	userAgent  string

	persist   bool
	storePath string

	group singleflight.Group
}

// NewTokenManager constructs a TokenManager seeded with an initial
// credential pair.
func NewTokenManager(httpClient *http.Client, userAgent string, initial Credential, persist bool, storePath string) *TokenManager {
	tm := &TokenManager{
		httpClient: httpClient,
		userAgent:  userAgent,
		persist:    persist,
		storePath:  storePath,
	}
	tm.cred.Store(&Credential{
		AccessToken:  initial.AccessToken,
		RefreshToken: initial.RefreshToken,
	})
	return tm
}

// Current returns the current access token without blocking.
func (tm *TokenManager) Current() string {
	return tm.cred.Load().AccessToken
}

// refreshResponse tolerates the refresh endpoint's polymorphic `state`
// field (bool, int, or stringified int) and a failure shape of `data: {}`
//.
type refreshResponse struct {
	State json.RawMessage `json:"state"`
	Data  struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"data"`
	Message string `json:"message"`
}

// Refresh performs a single-flight token refresh: concurrent callers join
// the in-flight request rather than issuing another call, since 115 rate
// limits refreshes aggressively.
func (tm *TokenManager) Refresh(ctx context.Context) error {
	_, err, _ := tm.group.Do("refresh", func() (any, error) {
		return nil, tm.doRefresh(ctx)
	})
	return err
}

func (tm *TokenManager) doRefresh(ctx context.Context) error {
	current := tm.cred.Load()

	form := url.Values{}
	form.Set("refresh_token", current.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointRefreshToken, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", tm.userAgent)

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decoding refresh response: %w", err)
	}

	if !truthyState(rr.State) || rr.Data.AccessToken == "" || rr.Data.RefreshToken == "" {
		return fmt.Errorf("%w: refresh failed: %s", ErrUpstreamFailure, rr.Message)
	}

	next := &Credential{
		AccessToken:  rr.Data.AccessToken,
		RefreshToken: rr.Data.RefreshToken,
	}
	tm.cred.Store(next)

	if tm.persist {
		if err := persistCredential(tm.storePath, next); err != nil {
			// Persistence failure doesn't invalidate the refresh itself.
			return fmt.Errorf("refresh succeeded but persisting tokens failed: %w", err)
		}
	}
	return nil
}

// persistCredential rewrites OPEN115_ACCESS_TOKEN / OPEN115_REFRESH_TOKEN
// lines in a key=value file by key, preserving every other line untouched.
func persistCredential(path string, cred *Credential) error {
	lines, err := readLines(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	wantKeys := map[string]string{
		"OPEN115_ACCESS_TOKEN":  cred.AccessToken,
		"OPEN115_REFRESH_TOKEN": cred.RefreshToken,
	}
	found := map[string]bool{}

	for i, line := range lines {
		key, ok := lineKey(line)
		if !ok {
			continue
		}
		if val, want := wantKeys[key]; want {
			lines[i] = key + "=" + val
			found[key] = true
		}
	}
	for key, val := range wantKeys {
		if !found[key] {
			lines = append(lines, key+"="+val)
		}
	}

	return writeLines(path, lines)
}

func lineKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	key, _, ok := strings.Cut(trimmed, "=")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(key), true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
