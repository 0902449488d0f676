package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds a real *multipart.FileHeader by round-tripping a form.
func fileHeader(t *testing.T, name, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestLocalBackend_SaveWalkRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	b := NewLocalBackend(dir)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "a.txt", strings.NewReader("hello"), 5, "text/plain"))

	info, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	err = b.Save(ctx, "a.txt", strings.NewReader("again"), 5, "text/plain")
	assert.ErrorIs(t, err, ErrExists)

	var seen []Object
	require.NoError(t, b.Walk(ctx, func(o Object) error {
		seen = append(seen, o)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, "a.txt", seen[0].Key)
	assert.Equal(t, int64(5), seen[0].Size)

	require.NoError(t, b.Remove(ctx, "a.txt"))
	require.NoError(t, b.Remove(ctx, "a.txt"))
	assert.Empty(t, dirEntries(t, dir))
}

func TestLocalBackend_RejectsPathKeys(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "sub/dir.txt", ".hidden"} {
		assert.Error(t, b.Save(ctx, key, strings.NewReader("x"), 1, ""), key)
	}
}

func TestLocalBackend_URL(t *testing.T) {
	b := NewLocalBackend("uploads")
	assert.Equal(t, "https://forum.example/uploads/file_1_a.png", b.URL("https://forum.example/", "file_1_a.png"))
}

func TestIngestor_StoresAllowedFile(t *testing.T) {
	dir := t.TempDir()
	ing := NewIngestor(NewLocalBackend(dir))

	stored, err := ing.Store(context.Background(), fileHeader(t, "my photo (1).png", "image/png", pngBytes), Attachment)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.Key, "file_"))
	assert.True(t, strings.HasSuffix(stored.Key, "_my_photo__1_.png"))
	assert.Equal(t, "my photo (1).png", stored.OriginalName)
	assert.Equal(t, "image/png", stored.ContentType)
	assert.Equal(t, int64(len(pngBytes)), stored.Size)
	assert.Equal(t, []string{stored.Key}, dirEntries(t, dir))
}

func TestIngestor_Rejections(t *testing.T) {
	big := bytes.Repeat([]byte{0}, int(Logo.MaxBytes)+1)

	cases := []struct {
		name    string
		fh      func(t *testing.T) *multipart.FileHeader
		variant Variant
		reason  string
	}{
		{
			name:    "missing file",
			fh:      func(*testing.T) *multipart.FileHeader { return nil },
			variant: Attachment,
			reason:  "Invalid file data provided",
		},
		{
			name:    "disallowed type",
			fh:      func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "run.exe", "application/x-msdownload", []byte("MZ")) },
			variant: Attachment,
			reason:  "Invalid file type",
		},
		{
			name:    "document as logo",
			fh:      func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "a.pdf", "application/pdf", []byte("%PDF-1.4")) },
			variant: Logo,
			reason:  "Only JPG, PNG, GIF, WebP and SVG",
		},
		{
			name:    "too large",
			fh:      func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "big.png", "image/png", big) },
			variant: Logo,
			reason:  "Maximum size is 5MB",
		},
		{
			// Type is checked before size.
			name:    "too large and wrong type",
			fh:      func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "big.txt", "text/plain", big) },
			variant: Logo,
			reason:  "Invalid file type",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			ing := NewIngestor(NewLocalBackend(dir))

			_, err := ing.Store(context.Background(), tc.fh(t), tc.variant)
			require.Error(t, err)
			assert.True(t, IsRejected(err))
			assert.Contains(t, err.Error(), tc.reason)
			assert.Empty(t, dirEntries(t, dir))
		})
	}
}

func TestIngestor_ExtensionFollowsAcceptedType(t *testing.T) {
	dir := t.TempDir()
	ing := NewIngestor(NewLocalBackend(dir))

	stored, err := ing.Store(context.Background(), fileHeader(t, "evil.html", "image/png", pngBytes), Attachment)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Key, "_evil.png"), stored.Key)
	assert.Equal(t, "evil.html", stored.OriginalName)

	stored, err = ing.Store(context.Background(), fileHeader(t, "scan.JPEG", "image/jpeg", jpegBytes), Attachment)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Key, "_scan.jpg"), stored.Key)

	stored, err = ing.Store(context.Background(), fileHeader(t, "noext", "application/pdf", []byte("%PDF-1.4\n")), Attachment)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Key, "_noext.pdf"), stored.Key)
}

func TestIngestor_RejectsContentNotMatchingType(t *testing.T) {
	cases := map[string]struct {
		name, contentType string
		body              []byte
	}{
		"html as png": {"evil.html", "image/png", []byte("<script>alert(document.domain)</script>")},
		"text as pdf": {"a.pdf", "application/pdf", []byte("not a pdf")},
		"png as jpeg": {"a.jpg", "image/jpeg", pngBytes},
		"html as svg": {"a.svg", "image/svg+xml", []byte("<html><body><script>alert(1)</script></body></html>")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			ing := NewIngestor(NewLocalBackend(dir))

			_, err := ing.Store(context.Background(), fileHeader(t, tc.name, tc.contentType, tc.body), Attachment)
			require.Error(t, err)
			assert.True(t, IsRejected(err))
			assert.Contains(t, err.Error(), "does not match")
			assert.Empty(t, dirEntries(t, dir))
		})
	}
}

func TestInline(t *testing.T) {
	assert.True(t, Inline("image/png"))
	assert.True(t, Inline("image/jpeg"))
	assert.False(t, Inline("image/svg+xml"))
	assert.False(t, Inline("application/pdf"))
	assert.False(t, Inline("text/html"))
}

func TestIngestor_SniffsGenericContentType(t *testing.T) {
	ing := NewIngestor(NewLocalBackend(t.TempDir()))

	stored, err := ing.Store(context.Background(), fileHeader(t, "pic", "application/octet-stream", pngBytes), Logo)
	require.NoError(t, err)
	assert.Equal(t, "image/png", stored.ContentType)

	_, err = ing.Store(context.Background(), fileHeader(t, "notes", "", []byte("just some text")), Logo)
	assert.True(t, IsRejected(err))
}

func TestIngestor_RetriesOnceWithTimestamp(t *testing.T) {
	dir := t.TempDir()
	ing := NewIngestor(NewLocalBackend(dir))
	ing.newToken = func() string { return "fixed" }
	ing.now = func() time.Time { return time.Unix(1700000000, 0) }

	first, err := ing.Store(context.Background(), fileHeader(t, "a.PNG", "image/png", pngBytes), Attachment)
	require.NoError(t, err)
	assert.Equal(t, "file_fixed_a.png", first.Key)

	second, err := ing.Store(context.Background(), fileHeader(t, "a.PNG", "image/png", pngBytes), Attachment)
	require.NoError(t, err)
	assert.Equal(t, "file_fixed_1700000000.png", second.Key)

	data, err := os.ReadFile(filepath.Join(dir, second.Key))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	_, err = ing.Store(context.Background(), fileHeader(t, "a.PNG", "image/png", pngBytes), Attachment)
	assert.ErrorIs(t, err, ErrExists)
	assert.False(t, IsRejected(err))
}

func TestTypeByExtension(t *testing.T) {
	cases := map[string]string{
		"http://h/uploads/a.JPG": "image/jpeg",
		"b.jpeg":                 "image/jpeg",
		"c.png?v=2":              "image/png",
		"d.gif":                  "image/gif",
		"e.pdf":                  "application/pdf",
		"f.doc":                  "application/msword",
		"g.docx":                 "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"h.zip":                  "application/octet-stream",
		"http://h/uploads/plain": "application/octet-stream",
	}
	for in, want := range cases {
		assert.Equal(t, want, TypeByExtension(in), in)
	}
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal map[string][]string
			Action    []string
			Resource  []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("forum-uploads")), &policy))

	require.Len(t, policy.Statement, 1)
	st := policy.Statement[0]
	assert.Equal(t, "Allow", st.Effect)
	assert.Equal(t, []string{"*"}, st.Principal["AWS"])
	assert.Equal(t, []string{"s3:GetObject"}, st.Action)
	assert.Equal(t, []string{"arn:aws:s3:::forum-uploads/*"}, st.Resource)
}
