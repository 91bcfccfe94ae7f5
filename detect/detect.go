// Package detect provides the default MIME-type detection and plain-text
// extraction collaborator the extractor calls out to (spec §4.3 step 4,
// §6 "Extractor calls"). A deployment may wire in a richer implementation
// (OCR, Tika, format-specific parsers); this one covers sniffable text and
// binary types with the standard library alone.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package detect

import (
	"bufio"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	// sniffLimit mirrors http.DetectContentType's own 512-byte read window.
	sniffLimit = 512
	// textCap bounds how much of a document is read into is_content; the
	// transformer pipeline cleans whitespace downstream, not this layer.
	textCap = 4 << 20 // 4 MiB
)

// Detector identifies a document's MIME type and, where the type is
// textual, extracts its plain-text content.
type Detector interface {
	// Detect returns the MIME type of r's content (name is used only for
	// extension-based refinement) and, if the type is textual, up to
	// textCap bytes of extracted text.
	Detect(name string, r io.Reader) (mimeType, text string, err error)
}

// Default is the stdlib-backed Detector used when no richer collaborator
// is configured.
var Default Detector = stdlibDetector{}

type stdlibDetector struct{}

func (stdlibDetector) Detect(name string, r io.Reader) (string, string, error) {
	br := bufio.NewReaderSize(r, sniffLimit)
	sniff, err := br.Peek(sniffLimit)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", "", err
	}

	mimeType := http.DetectContentType(sniff)
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" && isGenericSniff(mimeType) {
		mimeType = byExt
	}
	mimeType = stripParams(mimeType)

	if !isTextual(mimeType) {
		return mimeType, "", nil
	}

	limited := io.LimitReader(br, textCap)
	data, err := io.ReadAll(limited)
	if err != nil {
		return mimeType, "", err
	}
	return mimeType, string(data), nil
}

// isGenericSniff reports whether content sniffing fell back to one of its
// generic catch-all types, in which case an extension-derived MIME type
// (when available) is more informative.
func isGenericSniff(mimeType string) bool {
	switch stripParams(mimeType) {
	case "application/octet-stream", "text/plain":
		return true
	default:
		return false
	}
}

func stripParams(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func isTextual(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/csv", "application/x-csv":
		return true
	default:
		return false
	}
}

// IsCSV reports whether mimeType names a CSV variant, the gate used by the
// opt-in CSV row-expansion path (spec §4.3 step 5).
func IsCSV(mimeType string) bool {
	switch stripParams(mimeType) {
	case "text/csv", "application/csv", "application/x-csv":
		return true
	default:
		return false
	}
}
