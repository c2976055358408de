package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

type UploadKind string

const (
	KindImage UploadKind = "image"
	KindPDF   UploadKind = "pdf"
)

var ErrBadUploadResponse = errors.New("api: upload response is not a file path")

func (k UploadKind) path() string {
	if k == KindPDF {
		return "/uploads/pdfs"
	}
	return "/uploads/images"
}

// KindOf classifies a file name by extension. ok is false for anything that
// is neither a supported image nor a PDF.
func KindOf(filename string) (kind UploadKind, ok bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return KindImage, true
	case ".pdf":
		return KindPDF, true
	}
	return "", false
}

// Upload posts r as multipart field "file" and returns the stored path.
func (c *Client) Upload(ctx context.Context, kind UploadKind, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, kind.path(), &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	raw, err := c.send(req)
	if err != nil {
		return "", err
	}
	return parseUploadPath(raw)
}

func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	return c.Upload(ctx, KindImage, filename, r)
}

func (c *Client) UploadPDF(ctx context.Context, filename string, r io.Reader) (string, error) {
	return c.Upload(ctx, KindPDF, filename, r)
}

// parseUploadPath accepts a bare path, a JSON string, or {"data": "<path>"}.
func parseUploadPath(raw []byte) (string, error) {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "":
		return "", ErrBadUploadResponse
	case strings.HasPrefix(s, "{"):
		var env envelope[string]
		if err := json.Unmarshal([]byte(s), &env); err != nil || env.Data == "" {
			return "", ErrBadUploadResponse
		}
		return env.Data, nil
	case strings.HasPrefix(s, `"`):
		var p string
		if err := json.Unmarshal([]byte(s), &p); err != nil || p == "" {
			return "", ErrBadUploadResponse
		}
		return p, nil
	case strings.HasPrefix(s, "["), strings.HasPrefix(s, "<"):
		return "", ErrBadUploadResponse
	}
	return s, nil
}
