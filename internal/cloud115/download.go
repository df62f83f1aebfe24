package cloud115

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// downURLResponse is the subset of /open/ufile/downurl's data payload the
// adapter needs. The provider keys the returned object by file_id.
type downURLResponse map[string]struct {
	URL struct {
		URL string `json:"url"`
	} `json:"url"`
	FileName string `json:"file_name"`
	FileSize string `json:"file_size"`
}

// defaultTicketLifetime is the expiry given to every resolved download URL.
// The downurl response's own expiry is not read, so a ticket lives this
// long (within the cache's ceiling) even if the issuer's URL expires sooner.
const defaultTicketLifetime = 5 * time.Minute

// Download resolves objectPath to a signed URL and streams it back,
// honoring rangeHeader verbatim by forwarding it to the signed URL (the
// CDN enforces Range semantics, not this adapter). A stale ticket that the
// CDN rejects with 403/410 is evicted and re-resolved exactly once before
// giving up.
func (a *Adapter) Download(ctx context.Context, objectPath, rangeHeader string) (*DownloadStream, error) {
	dir, name := path.Split(objectPath)
	parentID, err := a.FindPathID(ctx, dir)
	if err != nil {
		return nil, err
	}

	entry, found, err := a.findFileInParent(ctx, parentID, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Path: objectPath}
	}
	if entry.PickCode == "" {
		return nil, fmt.Errorf("%w: %q has no pick_code", ErrUpstreamFailure, objectPath)
	}

	stream, err := a.downloadByPickCode(ctx, entry.PickCode, rangeHeader)
	if err != nil {
		return nil, err
	}
	stream.Size = entry.Size
	return stream, nil
}

// DownloadStream carries a response body ready to copy to the client, plus
// enough header metadata for the REST surface to set Content-Length /
// Content-Range / status code itself.
type DownloadStream struct {
	Body          io.ReadCloser
	StatusCode    int
	ContentRange  string
	ContentLength int64
	Size          int64
	Header        http.Header
}

func (a *Adapter) downloadByPickCode(ctx context.Context, pickCode, rangeHeader string) (*DownloadStream, error) {
	ticket, ok := a.cache.Ticket(pickCode)
	if !ok {
		resolved, err := a.resolveDownloadURL(ctx, pickCode)
		if err != nil {
			return nil, err
		}
		ticket = resolved
	}

	stream, retryable, err := a.streamFromTicket(ctx, ticket, rangeHeader)
	if err == nil {
		return stream, nil
	}
	if !retryable {
		return nil, err
	}

	a.cache.EvictTicket(pickCode)
	resolved, rerr := a.resolveDownloadURL(ctx, pickCode)
	if rerr != nil {
		return nil, rerr
	}
	stream, _, err = a.streamFromTicket(ctx, resolved, rangeHeader)
	return stream, err
}

// resolveDownloadURL calls the provider's downurl endpoint and installs
// the result in the ticket cache with defaultTicketLifetime; no
// issuer-stated expiry is taken from the response.
func (a *Adapter) resolveDownloadURL(ctx context.Context, pickCode string) (DownloadTicket, error) {
	form := url.Values{}
	form.Set("pick_code", pickCode)

	data, err := a.client.PostFormJSON(ctx, PathDownURL, form)
	if err != nil {
		return DownloadTicket{}, fmt.Errorf("resolving download URL for %q: %w", pickCode, err)
	}

	var resp downURLResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return DownloadTicket{}, fmt.Errorf("%w: parsing downurl response: %v", ErrInternal, err)
	}

	for _, entry := range resp {
		if entry.URL.URL == "" {
			continue
		}
		ticket := DownloadTicket{URL: entry.URL.URL}
		a.cache.PutTicket(pickCode, ticket.URL, time.Now().Add(defaultTicketLifetime))
		t, _ := a.cache.Ticket(pickCode)
		return t, nil
	}
	return DownloadTicket{}, fmt.Errorf("%w: downurl response for %q carried no URL", ErrUpstreamFailure, pickCode)
}

// streamFromTicket issues the ranged GET against a signed URL. retryable
// is true when the failure is a 403/410 that likely means the ticket
// expired early, so the caller should evict and re-resolve once.
func (a *Adapter) streamFromTicket(ctx context.Context, ticket DownloadTicket, rangeHeader string) (*DownloadStream, bool, error) {
	resp, err := a.client.StreamGet(ctx, ticket.URL, rangeHeader)
	if err != nil {
		return nil, false, fmt.Errorf("streaming from CDN: %w", err)
	}

	switch resp.StatusCode {
	case 403, 410:
		resp.Body.Close()
		return nil, true, fmt.Errorf("%w: signed URL rejected with status %d", ErrUpstreamFailure, resp.StatusCode)
	case 200, 206:
		return &DownloadStream{
			Body:          resp.Body,
			StatusCode:    resp.StatusCode,
			ContentRange:  resp.Header.Get("Content-Range"),
			ContentLength: resp.ContentLength,
			Header:        resp.Header,
		}, false, nil
	case 416:
		resp.Body.Close()
		return nil, false, ErrRangeNotSatisfiable
	default:
		resp.Body.Close()
		return nil, false, fmt.Errorf("%w: CDN responded with status %d", ErrUpstreamFailure, resp.StatusCode)
	}
}
