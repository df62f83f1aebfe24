package cloud115

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
)

// uploadInitResponse is the subset of /open/upload/init's data payload the
// adapter needs. Status mirrors the provider's three upload strategies:
// 2 means the object already exists server-side and was deduplicated
// without transferring bytes, 1 means a normal OSS upload is required, and
// 7 means the provider wants a secondary signature check before accepting
// either outcome.
type uploadInitResponse struct {
	Status      int    `json:"status"`
	PickCode    string `json:"pick_code"`
	FileID      string `json:"file_id"`
	Bucket      string `json:"bucket"`
	Object      string `json:"object"`
	Callback    string `json:"callback"`
	CallbackVar string `json:"callback_var"`
	SignKey     string `json:"sign_key"`
	SignCheck   string `json:"sign_check"`
}

// UploadObject stores content at the given logical object path (e.g.
// data/ab/<hex>, config, keys/<hex>). It resolves or creates the parent
// directory, attempts the provider's instant-dedup path, falls back to a
// real OSS transfer when required, and installs the resulting identity in
// the cache so a read immediately following the write succeeds without
// waiting on the provider's own listing to catch up.
func (a *Adapter) UploadObject(ctx context.Context, objectPath string, content UploadBody) error {
	dir, name := path.Split(objectPath)
	parentID, err := a.ensurePath(ctx, dir)
	if err != nil {
		return fmt.Errorf("resolving parent of %q: %w", objectPath, err)
	}

	sum, err := sha1Of(content)
	if err != nil {
		return fmt.Errorf("hashing %q: %w", objectPath, err)
	}

	init, err := a.initUpload(ctx, parentID, name, content.Size(), sum, "")
	if err != nil {
		return fmt.Errorf("initiating upload of %q: %w", objectPath, err)
	}

	switch init.Status {
	case 2:
		a.installUploadResult(parentID, name, FileEntry{
			Name:     name,
			ParentID: parentID,
			Size:     content.Size(),
			PickCode: init.PickCode,
			FileID:   init.FileID,
		})
		return nil
	case 7:
		signature, err := signCheck(content, init.SignKey)
		if err != nil {
			return fmt.Errorf("computing sign_check range for %q: %w", objectPath, err)
		}
		init, err = a.initUpload(ctx, parentID, name, content.Size(), sum, signature)
		if err != nil {
			return fmt.Errorf("re-initiating upload of %q after sign check: %w", objectPath, err)
		}
		if init.Status == 2 {
			a.installUploadResult(parentID, name, FileEntry{
				Name:     name,
				ParentID: parentID,
				Size:     content.Size(),
				PickCode: init.PickCode,
				FileID:   init.FileID,
			})
			return nil
		}
		if init.Status != 1 {
			return fmt.Errorf("%w: upload/init returned status %d for %q after sign check", ErrUpstreamFailure, init.Status, objectPath)
		}
		fallthrough
	case 1:
		return a.uploadViaOSS(ctx, parentID, name, content, init)
	default:
		return fmt.Errorf("%w: unrecognized upload/init status %d for %q", ErrUpstreamFailure, init.Status, objectPath)
	}
}

// initUpload calls the provider's upload/init endpoint. signature is the
// sign_check response from a prior status-7 round and is omitted on the
// first attempt.
func (a *Adapter) initUpload(ctx context.Context, parentID, name string, size int64, sha1Hex, signature string) (*uploadInitResponse, error) {
	form := url.Values{}
	form.Set("pid", parentID)
	form.Set("file_name", name)
	form.Set("file_size", strconv.FormatInt(size, 10))
	form.Set("file_sha1", sha1Hex)
	if signature != "" {
		form.Set("sign_check", signature)
	}

	data, err := a.client.PostFormJSON(ctx, PathUploadInit, form)
	if err != nil {
		return nil, err
	}

	var resp uploadInitResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing upload/init response: %v", ErrInternal, err)
	}
	return &resp, nil
}

// uploadViaOSS fetches STS credentials, performs the OSS PUT with the
// provider's callback attached, and parses the callback body to recover
// the authoritative file identity.
func (a *Adapter) uploadViaOSS(ctx context.Context, parentID, name string, content UploadBody, init *uploadInitResponse) error {
	creds, err := a.getOSSToken(ctx)
	if err != nil {
		return fmt.Errorf("fetching OSS credentials: %w", err)
	}

	callbackBody, err := a.uploader.PutWithCallback(ctx, creds, init.Bucket, init.Object, content, init.Callback, init.CallbackVar)
	if err != nil {
		return fmt.Errorf("uploading to OSS: %w", err)
	}

	result, err := ParseCallback(callbackBody)
	if err != nil {
		return fmt.Errorf("parsing OSS callback for %q: %w", name, err)
	}

	a.installUploadResult(parentID, name, FileEntry{
		Name:     name,
		ParentID: parentID,
		Size:     content.Size(),
		PickCode: result.PickCode,
		FileID:   result.FileID,
	})
	return nil
}

// getOSSToken fetches the STS credentials from the provider's get_token
// endpoint. The response shape is polymorphic (a one-element array, a flat
// object, or an object nested under "data" or "sts"); parseOSSTokenEnvelope
// handles all of them. The returned credentials are what the Uploader uses
// to sign the OSS PUT.
func (a *Adapter) getOSSToken(ctx context.Context) (OSSCredentials, error) {
	data, err := a.client.GetJSON(ctx, PathUploadGetToken, nil)
	if err != nil {
		return OSSCredentials{}, err
	}
	return parseOSSTokenEnvelope(data)
}

// installUploadResult records a freshly uploaded object's identity as both
// a FileEntry (so immediate re-reads succeed) and a FileHint (so the short
// window before the provider's own listing reflects the write is bridged
// even if the FileEntry is evicted by a concurrent listing refresh).
func (a *Adapter) installUploadResult(parentID, name string, entry FileEntry) {
	a.cache.InsertFile(parentID, entry)
	a.cache.PutHint(parentID, name, FileHint{FileID: entry.FileID, PickCode: entry.PickCode, Size: entry.Size})
}

func sha1Of(content UploadBody) (string, error) {
	r := content.Reader()
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// signCheck computes the byte range the provider's sign_key names (the
// format is "start-end" into the file) and returns its SHA1 as the
// sign_check value for a second init attempt.
func signCheck(content UploadBody, signKey string) (string, error) {
	var start, end int64
	if _, err := fmt.Sscanf(signKey, "%d-%d", &start, &end); err != nil {
		return "", fmt.Errorf("unrecognized sign_key format %q: %w", signKey, err)
	}

	r := content.Reader()
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return "", err
	}
	h := sha1.New()
	if _, err := io.CopyN(h, r, end-start+1); err != nil && err != io.EOF {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// parseOSSTokenEnvelope tolerates the three shapes the get_token endpoint
// has been observed to return data in: a one-element array, a flat object,
// or an object nested under "data" or "sts".
func parseOSSTokenEnvelope(data []byte) (OSSCredentials, error) {
	var asArray []ossTokenFields
	if err := json.Unmarshal(data, &asArray); err == nil && len(asArray) > 0 {
		return asArray[0].toCredentials(), nil
	}

	var asObject struct {
		ossTokenFields
		Data *ossTokenFields `json:"data"`
		STS  *ossTokenFields `json:"sts"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return OSSCredentials{}, fmt.Errorf("%w: parsing get_token response: %v", ErrInternal, err)
	}
	if asObject.Data != nil {
		return asObject.Data.toCredentials(), nil
	}
	if asObject.STS != nil {
		return asObject.STS.toCredentials(), nil
	}
	return asObject.toCredentials(), nil
}

// ossTokenFields covers the field name variants seen across the flat,
// array, and nested shapes of the get_token response.
type ossTokenFields struct {
	Endpoint        string `json:"endpoint"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"AccessKeyId"`
	AccessKeySecret string `json:"AccessKeySecret"`
	SecurityToken   string `json:"SecurityToken"`
}

func (f ossTokenFields) toCredentials() OSSCredentials {
	return OSSCredentials{
		Endpoint:        f.Endpoint,
		Bucket:          f.Bucket,
		AccessKeyID:     f.AccessKeyID,
		AccessKeySecret: f.AccessKeySecret,
		SecurityToken:   f.SecurityToken,
	}
}
