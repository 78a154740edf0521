package client

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"

	"invoicemix/internal/core"

	"github.com/h2non/filetype"
)

const defaultFileType = "application/octet-stream"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeUpload builds the multipart body: target, file, optional
// minInvoices and maxInvoices, and one requiredIds field per id.
func encodeUpload(req core.UploadRequest) ([]byte, string, error) {
	if req.File == nil {
		return nil, "", fmt.Errorf("no file selected")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("target", req.TargetText); err != nil {
		return nil, "", fmt.Errorf("write target: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.File.Name)))
	h.Set("Content-Type", DetectFileType(req.File))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(req.File.Content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if req.MinInvoices != nil {
		if err := w.WriteField("minInvoices", strconv.Itoa(*req.MinInvoices)); err != nil {
			return nil, "", fmt.Errorf("write minInvoices: %w", err)
		}
	}
	if req.MaxInvoices != nil {
		if err := w.WriteField("maxInvoices", strconv.Itoa(*req.MaxInvoices)); err != nil {
			return nil, "", fmt.Errorf("write maxInvoices: %w", err)
		}
	}
	for _, id := range req.RequiredInvoiceIDs {
		if err := w.WriteField("requiredIds", id); err != nil {
			return nil, "", fmt.Errorf("write requiredIds: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// DetectFileType sniffs the MIME type of an upload from its content, then
// from its extension, and falls back to application/octet-stream.
func DetectFileType(f *core.UploadFile) string {
	if f == nil {
		return defaultFileType
	}
	if kind, err := filetype.Match(f.Content); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
	if ext == "csv" {
		return "text/csv"
	}
	if kind := filetype.GetType(ext); kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return defaultFileType
}
