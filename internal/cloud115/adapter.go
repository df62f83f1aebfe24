package cloud115

import "context"

// Uploader is the subset of the upload pipeline the Adapter depends on,
// implemented by internal/ossclient against the real Aliyun OSS SDK. It is
// an interface here so the adapter and its tests don't need a live OSS
// endpoint.
type Uploader interface {
	// PutWithCallback uploads body to bucket/object via OSS PutObject,
	// attaching the callback/callbackVar the provider's init endpoint
	// returned, and returns the raw callback response body.
	PutWithCallback(ctx context.Context, creds OSSCredentials, bucket, object string, body UploadBody, callback, callbackVar string) ([]byte, error)
}

// UploadBody is the minimal interface the OSS client needs from an upload
// payload: a seekable reader so a single PUT can be retried, and a known
// length for Content-Length.
type UploadBody interface {
	Size() int64
	Reader() ReadSeeker
}

// ReadSeeker avoids importing io in this file just for the alias; it is
// satisfied by *os.File, *bytes.Reader, and any io.ReadSeeker.
type ReadSeeker interface {
	Read(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
}

// OSSCredentials are the STS-style credentials returned by the provider's
// get_token endpoint. The response shape is polymorphic
// (array, object, or nested object) — parsing that lives in
// parseOSSTokenEnvelope.
type OSSCredentials struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
}

// Adapter is the façade the REST surface adapter talks to: it wires the
// transport Client, the Cache, and the namespace mapper's root path into
// bootstrap, upload, download, and listing operations. Everything else in
// the restserver package depends only on this type, not on Client/Cache
// directly.
type Adapter struct {
	client   *Client
	cache    *Cache
	uploader Uploader
	root     string
}

// NewAdapter builds an Adapter rooted at repoPath.
func NewAdapter(client *Client, cache *Cache, uploader Uploader, repoPath string) *Adapter {
	return &Adapter{client: client, cache: cache, uploader: uploader, root: repoPath}
}
