package core

import (
	"context"
	"path"
	"strings"
)

// DocumentExtractor defines the interface for extracting text from drive documents.
type DocumentExtractor interface {
	// ExtractText returns the plain text of data. The format is chosen from the file name.
	// Failures are *SyncError with code EXTRACTION_FAILED and Format set.
	ExtractText(ctx context.Context, fileName string, data []byte) (string, error)
}

// FormatOf returns "pdf", "docx" or "" for the file name's extension.
func FormatOf(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	}
	return ""
}
