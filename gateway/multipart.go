package gateway

import (
	"bytes"
	"flavorai-client/core"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Multipart is a form payload that may carry binary files. A request with a
// Multipart body is never sent with a JSON content type.
type Multipart struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name, value string
}

type formFile struct {
	name  string
	image *core.Image
}

// NewMultipart returns an empty payload.
func NewMultipart() *Multipart {
	return &Multipart{}
}

// Field appends a text field. Empty values are still sent.
func (m *Multipart) Field(name, value string) *Multipart {
	m.fields = append(m.fields, formField{name: name, value: value})
	return m
}

// File appends a binary part. A nil image is ignored.
func (m *Multipart) File(name string, image *core.Image) *Multipart {
	if image != nil {
		m.files = append(m.files, formFile{name: name, image: image})
	}
	return m
}

// encode renders the payload and returns it with its content type.
func (m *Multipart) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	for _, f := range m.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.name), escapeQuotes(f.image.Filename)))
		contentType := f.image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.image.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
