// Package ossclient implements cloud115.Uploader against Aliyun OSS, using
// the STS credentials the 115 Open Platform hands out per upload.
package ossclient

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/gaoyifan/restic-115/internal/cloud115"
)

// Client adapts the Aliyun OSS SDK to cloud115.Uploader. A fresh
// oss.Client is built per call since STS credentials are short-lived and
// scoped to a single upload by the provider.
type Client struct{}

// New returns an ossclient.Client. It holds no state: each PutWithCallback
// call builds the OSS client from the credentials passed to it, since
// those credentials are single-use STS tokens handed out per upload.
func New() *Client {
	return &Client{}
}

// PutWithCallback uploads body to bucket/object via a single PUT carrying
// the provider's opaque callback and callback_var parameters, and returns
// the raw callback response body OSS relays back from the provider.
func (c *Client) PutWithCallback(ctx context.Context, creds cloud115.OSSCredentials, bucket, object string, body cloud115.UploadBody, callback, callbackVar string) ([]byte, error) {
	client, err := oss.New(creds.Endpoint, creds.AccessKeyID, creds.AccessKeySecret, oss.SecurityToken(creds.SecurityToken))
	if err != nil {
		return nil, fmt.Errorf("building OSS client: %w", err)
	}

	b, err := client.Bucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("resolving bucket %q: %w", bucket, err)
	}

	reader := body.Reader()
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding upload body: %w", err)
	}

	request := &oss.PutObjectRequest{
		ObjectKey: object,
		Reader:    reader,
	}
	options := []oss.Option{
		oss.Callback(callback),
		oss.CallbackVar(callbackVar),
		oss.ContentLength(body.Size()),
	}

	resp, err := b.DoPutObject(request, options)
	if err != nil {
		return nil, fmt.Errorf("PUT %s/%s: %w", bucket, object, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading callback response: %w", err)
	}
	return raw, nil
}

var _ cloud115.Uploader = (*Client)(nil)
