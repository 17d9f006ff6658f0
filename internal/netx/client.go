// Package netx is the client side of the archive HTTP API: chunked file
// uploads and downloads through presigned object URLs.
package netx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const uploadHandleHeader = "X-Upload-Handle"

// APIError is a non-2xx answer of the archive API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return fmt.Sprintf("api error: %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to one archive server with one access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// UploadOptions are the per-file archival attributes sent with an upload.
// Zero values let the server decide.
type UploadOptions struct {
	Folder         string
	Category       string
	SequenceNumber int
	Label          string
}

// UploadResult describes the attached file.
type UploadResult struct {
	AssociationID  string `json:"id"`
	FileID         string `json:"file_id"`
	Filename       string `json:"filename"`
	Category       string `json:"category"`
	SequenceNumber int    `json:"sequence_number"`
	StorageKey     string `json:"storage_key"`
	SHA256         string `json:"sha256"`
	// Existing is true when the server already held the content and no
	// bytes were sent.
	Existing bool `json:"-"`
}

type initiateRequest struct {
	Filename       string `json:"filename"`
	Folder         string `json:"folder,omitempty"`
	Category       string `json:"category,omitempty"`
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"label,omitempty"`
	Size           int64  `json:"size"`
	SHA256         string `json:"sha256"`
}

type initiateResponse struct {
	Handle    string        `json:"handle"`
	ChunkSize int64         `json:"chunk_size"`
	Parts     int           `json:"parts"`
	File      *UploadResult `json:"file"`
}

type part struct {
	Number int32  `json:"n"`
	ETag   string `json:"etag"`
}

// UploadFile sends the file at path to the document in chunks. Content the
// server already stores is attached without sending it again. A failed
// transfer aborts the server-side upload.
func (c *Client) UploadFile(ctx context.Context, documentID, path string, opts UploadOptions) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	var started initiateResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/documents/"+url.PathEscape(documentID)+"/uploads", nil,
		initiateRequest{
			Filename:       filepath.Base(path),
			Folder:         opts.Folder,
			Category:       opts.Category,
			SequenceNumber: opts.SequenceNumber,
			Label:          opts.Label,
			Size:           size,
			SHA256:         hex.EncodeToString(h.Sum(nil)),
		}, &started)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK && started.File != nil {
		started.File.Existing = true
		return started.File, nil
	}
	if started.Handle == "" || started.ChunkSize <= 0 {
		return nil, fmt.Errorf("initiate %s: incomplete session in response", path)
	}

	res, err := c.sendParts(ctx, f, size, started)
	if err != nil {
		c.abort(started.Handle)
		return nil, err
	}
	return res, nil
}

func (c *Client) sendParts(ctx context.Context, f *os.File, size int64, s initiateResponse) (*UploadResult, error) {
	header := http.Header{uploadHandleHeader: {s.Handle}}

	parts := make([]part, 0, s.Parts)
	for n, off := int32(1), int64(0); off < size; n, off = n+1, off+s.ChunkSize {
		length := min(s.ChunkSize, size-off)

		req, err := c.newRequest(ctx, http.MethodPut, "/api/v1/uploads/parts/"+strconv.Itoa(int(n)), header,
			io.NewSectionReader(f, off, length))
		if err != nil {
			return nil, err
		}
		req.ContentLength = length

		var p part
		if _, err := c.do(req, &p); err != nil {
			return nil, fmt.Errorf("part %d: %w", n, err)
		}
		parts = append(parts, p)
	}

	var res UploadResult
	if _, err := c.doJSON(ctx, http.MethodPost, "/api/v1/uploads/complete", header,
		map[string][]part{"parts": parts}, &res); err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	return &res, nil
}

// abort is best effort and outlives a cancelled caller context.
func (c *Client) abort(handle string) {
	req, err := c.newRequest(context.Background(), http.MethodDelete, "/api/v1/uploads",
		http.Header{uploadHandleHeader: {handle}}, nil)
	if err != nil {
		return
	}
	_, _ = c.do(req, nil)
}

// Download writes a stored file to w, fetching it through the presigned
// URL handed out by the server.
func (c *Client) Download(ctx context.Context, documentID, fileID string, w io.Writer) (int64, error) {
	var link struct {
		URL string `json:"url"`
	}
	p := "/api/v1/documents/" + url.PathEscape(documentID) + "/files/" + url.PathEscape(fileID) + "/url"
	if _, err := c.doJSON(ctx, http.MethodGet, p, nil, nil, &link); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, header http.Header, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, header http.Header, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, header, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Code, apiErr.Message = body.Error.Code, body.Error.Message
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
