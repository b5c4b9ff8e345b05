package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"
)

// File is one file part of a multipart form.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// Form is a multipart/form-data body. It is encoded up front so the request
// can be replayed after a token refresh.
type Form struct {
	Fields map[string]string
	Files  []File
}

// NewForm creates a form with the given text fields.
func NewForm(fields map[string]string) *Form {
	if fields == nil {
		fields = map[string]string{}
	}
	return &Form{Fields: fields}
}

// AddFile attaches content as a file part.
func (f *Form) AddFile(field, name, contentType string, content io.Reader) *Form {
	f.Files = append(f.Files, File{Field: field, Name: name, ContentType: contentType, Content: content})
	return f
}

// AddFilePath attaches the file at path, sniffing its content type.
func (f *Form) AddFilePath(field, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	f.AddFile(field, filepath.Base(path), mimetype.Detect(data).String(), bytes.NewReader(data))
	return nil
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// Sorted for a stable body.
	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, f.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for _, file := range f.Files {
		part, err := w.CreatePart(filePartHeader(file))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %s: %w", file.Field, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write part %s: %w", file.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func filePartHeader(file File) textproto.MIMEHeader {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name))
	h.Set("Content-Type", contentType)
	return h
}
