package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// DefaultFilename is used when an upload does not declare a filename.
const DefaultFilename = "upload_default.bin"

// fileFieldName is the form field the upload widget sends the file in.
const fileFieldName = "file"

var errNoFilePart = errors.New("no file part in multipart body")

// ExtractFilename scans a raw request body for the first line carrying both
// "Content-Disposition" and "filename=" and returns the declared filename with
// surrounding quotes removed. It does not understand multipart framing and
// returns DefaultFilename when no such line exists.
func ExtractFilename(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, "Content-Disposition") || !strings.Contains(line, "filename=") {
			continue
		}
		for _, seg := range strings.Split(line, ";") {
			seg = strings.TrimSpace(seg)
			if strings.HasPrefix(seg, "filename=") {
				return strings.Trim(strings.TrimPrefix(seg, "filename="), `"`)
			}
		}
		// Only the first qualifying line is considered.
		return DefaultFilename
	}
	return DefaultFilename
}

// uploadedFile is what the upload handler stores.
type uploadedFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// parseMultipartFile decodes a multipart/form-data body and returns the part
// named "file", or failing that the first part that carries a filename.
func parseMultipartFile(contentType string, body []byte) (uploadedFile, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return uploadedFile{}, fmt.Errorf("parse content type: %w", err)
	}
	if mediaType != "multipart/form-data" {
		return uploadedFile{}, fmt.Errorf("unexpected media type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return uploadedFile{}, errors.New("multipart boundary missing")
	}

	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	var first *uploadedFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return uploadedFile{}, fmt.Errorf("read part: %w", err)
		}

		isFileField := part.FormName() == fileFieldName
		if !isFileField && (first != nil || part.FileName() == "") {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return uploadedFile{}, fmt.Errorf("read part %q: %w", part.FormName(), err)
		}

		f := uploadedFile{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Payload:     data,
		}
		if f.Filename == "" {
			f.Filename = DefaultFilename
		}
		if isFileField {
			return f, nil
		}
		first = &f
	}

	if first == nil {
		return uploadedFile{}, errNoFilePart
	}
	return *first, nil
}
