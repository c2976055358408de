package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pfm/internal/api"
	"pfm/internal/core"
	"pfm/internal/log"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 10 << 20

// UploadMode restricts which kinds of file an upload form takes.
type UploadMode string

const (
	ModeImage UploadMode = "image"
	ModePDF   UploadMode = "pdf"
	ModeBoth  UploadMode = "both"
)

var (
	ErrUnsupportedFile = errors.New("only PNG, JPG, GIF or PDF files can be uploaded")
	ErrWrongKind       = errors.New("this form does not take that kind of file")
	ErrFileTooLarge    = errors.New("file is larger than 10 MiB")
	ErrInvalidMode     = errors.New("invalid upload mode")
)

// ParseUploadMode reads a form's mode; empty means both.
func ParseUploadMode(s string) (UploadMode, error) {
	switch UploadMode(s) {
	case "", ModeBoth:
		return ModeBoth, nil
	case ModeImage, ModePDF:
		return UploadMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m UploadMode) accepts(k api.UploadKind) bool {
	switch m {
	case ModeImage:
		return k == api.KindImage
	case ModePDF:
		return k == api.KindPDF
	}
	return true
}

// Accept lists the file extensions a form in mode m should offer.
func (m UploadMode) Accept() string {
	switch m {
	case ModeImage:
		return ".png,.jpg,.jpeg,.gif"
	case ModePDF:
		return ".pdf"
	}
	return ".png,.jpg,.jpeg,.gif,.pdf"
}

type UploadService struct {
	api     api.UploadClient
	journal Recorder
	logger  *log.Logger
}

func NewUploadService(client api.UploadClient, journal Recorder) *UploadService {
	if journal == nil {
		journal = nopRecorder{}
	}
	return &UploadService{
		api:     client,
		journal: journal,
		logger:  log.Default().WithComponent(log.ComponentUpload),
	}
}

// Upload checks the file against mode before sending anything and returns
// the relative path the API stored it under.
func (s *UploadService) Upload(ctx context.Context, who core.Identity, mode UploadMode, filename string, size int64, r io.Reader) (string, error) {
	kind, ok := api.KindOf(filename)
	if !ok {
		return "", ErrUnsupportedFile
	}
	if !mode.accepts(kind) {
		return "", ErrWrongKind
	}
	if size > MaxUploadSize {
		return "", ErrFileTooLarge
	}

	path, err := s.api.Upload(ctx, kind, filename, io.LimitReader(r, MaxUploadSize))
	s.journal.Record(ctx, who, core.ResourceUpload, core.ActionUpload, 0, filename, err)
	if err != nil {
		logFailure(ctx, s.logger, who, core.ResourceUpload, core.ActionUpload, 0, err)
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	s.logger.InfoContext(ctx, "File uploaded", "kind", kind, "path", path, log.FieldUser, who.Email)
	return path, nil
}
