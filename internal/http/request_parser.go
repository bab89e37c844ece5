package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"esgdash/internal/core"
)

// UploadSource says how the user chose the file.
type UploadSource string

const (
	SourcePicker UploadSource = "picker"
	SourceDrop   UploadSource = "drop"
)

var (
	ErrUploadTooLarge = errors.New("upload too large")
	ErrMissingFile    = errors.New("missing file")
)

// UploadRequest is a parsed POST /ui/upload.
type UploadRequest struct {
	Document core.Document
	Source   UploadSource
}

// multipart overhead allowed on top of the file itself
const formOverhead = 64 << 10

// ParseUploadRequest reads the multipart field "file" and the optional
// "source" field. The body is capped at maxBytes plus form overhead.
func ParseUploadRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (UploadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return UploadRequest{}, ErrUploadTooLarge
		}
		return UploadRequest{}, fmt.Errorf("parse multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return UploadRequest{}, ErrMissingFile
	}
	if err != nil {
		return UploadRequest{}, fmt.Errorf("read form file: %w", err)
	}
	defer file.Close()

	if header.Size > maxBytes {
		return UploadRequest{}, ErrUploadTooLarge
	}
	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return UploadRequest{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(content)) > maxBytes {
		return UploadRequest{}, ErrUploadTooLarge
	}

	doc := core.Document{
		Name:        sanitizeFilename(header.Filename),
		ContentType: detectContentType(header.Header.Get("Content-Type"), content),
		Content:     content,
	}
	return UploadRequest{Document: doc, Source: parseSource(r.FormValue("source"))}, nil
}

func parseSource(v string) UploadSource {
	if strings.EqualFold(strings.TrimSpace(v), string(SourceDrop)) {
		return SourceDrop
	}
	return SourcePicker
}

// detectContentType trusts the declared type unless it is missing or generic,
// in which case the content is sniffed.
func detectContentType(declared string, content []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if len(content) == 0 {
		return ""
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return mt
}
