package restserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gaoyifan/restic-115/internal/cloud115"
	"github.com/gaoyifan/restic-115/internal/namespace"
)

const resticAPIV2JSON = "application/vnd.x.restic.rest.v2+json"

// handleBootstrap creates the repository's canonical subtree. The
// `create=true` query parameter is mandatory, mirroring the restic REST v2
// protocol's bootstrap contract.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("create") != "true" {
		http.Error(w, "missing create=true", http.StatusBadRequest)
		return
	}
	if err := s.adapter.InitRepository(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDeleteRepo is not implemented: whole-repository deletion is out of
// scope for this gateway.
func (s *Server) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, cloud115.ErrNotImplemented)
}

func (s *Server) handleHeadConfig(w http.ResponseWriter, r *http.Request) {
	size, found, err := s.adapter.HeadConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.streamObject(w, r, func(rangeHeader string) (*cloud115.DownloadStream, error) {
		return s.adapter.GetConfig(r.Context(), rangeHeader)
	}, func() (int64, bool, error) {
		return s.adapter.HeadConfig(r.Context())
	})
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	s.receiveObject(w, r, func(body cloud115.UploadBody) error {
		return s.adapter.PutConfig(r.Context(), body)
	})
}

// handleListType lists every object of the given type, in the restic REST
// v2 JSON shape.
func (s *Server) handleListType(w http.ResponseWriter, r *http.Request) {
	typeParam := chi.URLParam(r, "type")
	if !namespace.IsValidType(typeParam) || namespace.Type(typeParam) == namespace.TypeConfig {
		http.Error(w, "invalid or unsupported type for listing", http.StatusBadRequest)
		return
	}
	if r.Header.Get("Accept") != resticAPIV2JSON && r.Header.Get("Accept") != "application/vnd.x.restic.rest.v2" {
		http.Error(w, "restic v2 API required for list objects", http.StatusBadRequest)
		return
	}

	entries, err := s.adapter.ListType(r.Context(), namespace.Type(typeParam))
	if err != nil {
		writeError(w, r, err)
		return
	}

	type listItem struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	items := make([]listItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, listItem{Name: e.Name, Size: e.Size})
	}

	w.Header().Set("Content-Type", resticAPIV2JSON)
	if err := json.NewEncoder(w).Encode(items); err != nil {
		writeError(w, r, fmt.Errorf("%w: encoding list response: %v", cloud115.ErrInternal, err))
	}
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	t, name, ok := s.parseTypeName(w, r)
	if !ok {
		return
	}
	size, found, err := s.adapter.HeadObject(r.Context(), t, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	t, name, ok := s.parseTypeName(w, r)
	if !ok {
		return
	}
	s.streamObject(w, r, func(rangeHeader string) (*cloud115.DownloadStream, error) {
		return s.adapter.GetObject(r.Context(), t, name, rangeHeader)
	}, func() (int64, bool, error) {
		return s.adapter.HeadObject(r.Context(), t, name)
	})
}

func (s *Server) handlePostObject(w http.ResponseWriter, r *http.Request) {
	t, name, ok := s.parseTypeName(w, r)
	if !ok {
		return
	}
	s.receiveObject(w, r, func(body cloud115.UploadBody) error {
		return s.adapter.PutObject(r.Context(), t, name, body)
	})
}

// handleDeleteObject is idempotent by contract: it always reports success,
// whether or not the object previously existed.
func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	t, name, ok := s.parseTypeName(w, r)
	if !ok {
		return
	}
	if err := s.adapter.DeleteObject(r.Context(), t, name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parseTypeName validates the {type}/{name} path params shared by every
// per-object handler, writing a 400 response and returning ok=false on
// failure.
func (s *Server) parseTypeName(w http.ResponseWriter, r *http.Request) (namespace.Type, string, bool) {
	typeParam := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")
	if !namespace.IsValidType(typeParam) || namespace.Type(typeParam) == namespace.TypeConfig {
		http.Error(w, "invalid type", http.StatusBadRequest)
		return "", "", false
	}
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return "", "", false
	}
	return namespace.Type(typeParam), name, true
}

// streamObject implements the shared GET semantics for config and typed
// objects: no Range header streams the whole object (200); a present
// Range header is validated against the object's known size before being
// forwarded to the download pipeline, producing 400/416/206 as
// appropriate.
func (s *Server) streamObject(w http.ResponseWriter, r *http.Request, get func(rangeHeader string) (*cloud115.DownloadStream, error), head func() (int64, bool, error)) {
	rangeHeader := r.Header.Get("Range")

	if rangeHeader != "" {
		size, found, err := head()
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !found {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		parsed, err := ParseRange(rangeHeader, size)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if !parsed.Satisfied {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			http.Error(w, http.StatusText(http.StatusRequestedRangeNotSatisfiable), http.StatusRequestedRangeNotSatisfiable)
			return
		}
	}

	stream, err := get(rangeHeader)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Body.Close()

	if stream.Header != nil {
		copyNonHopHeaders(w, stream.Header)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	if stream.ContentRange != "" {
		w.Header().Set("Content-Range", stream.ContentRange)
	}
	if stream.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	}
	w.Header().Set("Content-Type", "application/octet-stream")

	status := stream.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := io.Copy(w, stream.Body); err != nil {
		writeError(w, r, fmt.Errorf("%w: streaming response body: %v", cloud115.ErrInternal, err))
	}
}

// receiveObject implements the shared POST semantics: spool the request
// body to a temp file so the upload pipeline has a seekable source, then
// hand it to put.
func (s *Server) receiveObject(w http.ResponseWriter, r *http.Request, put func(body cloud115.UploadBody) error) {
	declaredSize := r.ContentLength
	if declaredSize > cloud115.MaxObjectSize {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return
	}

	body, err := cloud115.Spool(s.spoolDir, r.Body, declaredSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	if err := put(body); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
