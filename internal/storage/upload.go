package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// RejectedError is a validation failure whose Reason is safe to show users.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

func reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a validation failure rather than an
// I/O or backend error.
func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

// Variant is the policy for one kind of upload.
type Variant struct {
	Prefix     string
	MaxBytes   int64
	Allowed    map[string]bool
	TypeReason string
}

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml"}

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func typeSet(groups ...[]string) map[string]bool {
	m := make(map[string]bool)
	for _, g := range groups {
		for _, t := range g {
			m[t] = true
		}
	}
	return m
}

var (
	// Logo is the tenant logo policy: images only, 5MB.
	Logo = Variant{
		Prefix:     "logo_",
		MaxBytes:   5 << 20,
		Allowed:    typeSet(imageTypes),
		TypeReason: "Invalid file type. Only JPG, PNG, GIF, WebP and SVG images are allowed.",
	}
	// Attachment is the post attachment policy: images and documents, 10MB.
	Attachment = Variant{
		Prefix:     "file_",
		MaxBytes:   10 << 20,
		Allowed:    typeSet(imageTypes, documentTypes),
		TypeReason: "Invalid file type. Only images, PDF, DOC and DOCX files are allowed.",
	}
)

// Stored is the result of a successful upload.
type Stored struct {
	Key          string
	OriginalName string
	ContentType  string
	Size         int64
}

// Ingestor validates multipart files and hands them to a Backend.
type Ingestor struct {
	backend  Backend
	now      func() time.Time
	newToken func() string
}

func NewIngestor(backend Backend) *Ingestor {
	return &Ingestor{
		backend:  backend,
		now:      time.Now,
		newToken: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:13] },
	}
}

func (i *Ingestor) Backend() Backend { return i.backend }

// Store validates fh against v and saves it. Checks run in order and the
// first failure wins: presence, type, size, content. The stored name keeps
// the client's base name but always carries the extension of the accepted
// type, so whatever serves the file derives the same type.
func (i *Ingestor) Store(ctx context.Context, fh *multipart.FileHeader, v Variant) (*Stored, error) {
	if fh == nil || fh.Filename == "" {
		return nil, reject("Invalid file data provided")
	}

	contentType, err := detectType(fh)
	if err != nil {
		return nil, err
	}
	if !v.Allowed[contentType] {
		return nil, reject("%s", v.TypeReason)
	}

	if fh.Size > v.MaxBytes {
		return nil, reject("File too large. Maximum size is %dMB.", v.MaxBytes>>20)
	}

	if contentChecked[contentType] {
		sniffed, err := sniff(fh)
		if err != nil {
			return nil, err
		}
		if !sniffed.Is(contentType) {
			return nil, reject("File content does not match its type.")
		}
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	original := filepath.Base(fh.Filename)
	ext := extensionByType[contentType]
	stem := strings.TrimSuffix(original, filepath.Ext(original))

	key := v.Prefix + i.newToken() + "_" + SanitizeName(stem) + ext
	err = i.backend.Save(ctx, key, src, fh.Size, contentType)
	if errors.Is(err, ErrExists) {
		if _, serr := src.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("rewind upload: %w", serr)
		}
		key = v.Prefix + i.newToken() + "_" + strconv.FormatInt(i.now().Unix(), 10) + ext
		err = i.backend.Save(ctx, key, src, fh.Size, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	return &Stored{
		Key:          key,
		OriginalName: original,
		ContentType:  contentType,
		Size:         fh.Size,
	}, nil
}

// detectType trusts the part's declared Content-Type unless it is missing
// or generic, in which case the content is sniffed.
func detectType(fh *multipart.FileHeader) (string, error) {
	declared := fh.Header.Get("Content-Type")
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt), nil
		}
	}

	sniffed, err := sniff(fh)
	if err != nil {
		return "", err
	}
	mt, _, _ := mime.ParseMediaType(sniffed.String())
	return mt, nil
}

func sniff(fh *multipart.FileHeader) (*mimetype.MIME, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	m, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, fmt.Errorf("sniff upload: %w", err)
	}
	return m, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// SanitizeName replaces everything but ASCII letters, digits and dots.
func SanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

var typesByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// extensionByType is the extension a stored file of each allowed type gets.
var extensionByType = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"image/svg+xml":      ".svg",
	"application/pdf":    ".pdf",
	"application/msword": ".doc",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// contentChecked lists the types with a reliable signature. A declared
// type from this set must agree with the sniffed one. Word files are not
// sniffed reliably and are only ever served as downloads.
var contentChecked = typeSet([]string{
	"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml", "application/pdf",
})

// rasterTypes render in a browser without running anything.
var rasterTypes = typeSet([]string{"image/jpeg", "image/png", "image/gif", "image/webp"})

// Inline reports whether a stored file of contentType may be displayed in
// the browser. Everything else is served as an attachment.
func Inline(contentType string) bool {
	return rasterTypes[contentType]
}

// TypeByExtension maps a file name or URL to a MIME type using a fixed
// table; unknown extensions are application/octet-stream.
func TypeByExtension(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if t, ok := typesByExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}
