package cloud115

import (
	"fmt"
	"io"
	"os"
)

// MaxObjectSize is the enforced per-request upload body limit.
const MaxObjectSize = 1 << 30 // 1 GiB

// SpoolBody reads an upload request body into a temp file, giving the
// upload pipeline a seekable source for hashing, sign-checking, and a
// potential OSS retry without holding the whole object in memory. The
// temp file is removed on Close.
type SpoolBody struct {
	file *os.File
	size int64
}

// Spool copies r into a temp file under dir, enforcing MaxObjectSize.
// declaredSize, if >= 0, is checked against the actual bytes read.
func Spool(dir string, r io.Reader, declaredSize int64) (*SpoolBody, error) {
	f, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating spool file: %w", err)
	}

	limited := io.LimitReader(r, MaxObjectSize+1)
	n, err := io.Copy(f, limited)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("spooling upload body: %w", err)
	}
	if n > MaxObjectSize {
		f.Close()
		os.Remove(f.Name())
		return nil, ErrPayloadTooLarge
	}
	if declaredSize >= 0 && declaredSize != n {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("%w: declared size %d does not match %d bytes received", ErrBadRequest, declaredSize, n)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("rewinding spool file: %w", err)
	}
	return &SpoolBody{file: f, size: n}, nil
}

// Size implements UploadBody.
func (s *SpoolBody) Size() int64 {
	return s.size
}

// Reader implements UploadBody.
func (s *SpoolBody) Reader() ReadSeeker {
	return s.file
}

// Close removes the underlying temp file.
func (s *SpoolBody) Close() error {
	s.file.Close()
	return os.Remove(s.file.Name())
}
