package core

import (
	"errors"
	"fmt"
)

// ErrorCode classifies sync failures.
type ErrorCode string

const (
	ErrCodeDownload            ErrorCode = "DOWNLOAD_FAILED"
	ErrCodeExtraction          ErrorCode = "EXTRACTION_FAILED"
	ErrCodeChunkLengthExceeded ErrorCode = "CHUNK_LENGTH_EXCEEDED"
	ErrCodeEmbedding           ErrorCode = "EMBEDDING_FAILED"
	ErrCodePersistence         ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
)

// Document formats the extractor understands.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
)

// SyncError is the error type returned across component boundaries.
// Format is only set for extraction failures.
type SyncError struct {
	Code    ErrorCode
	Message string
	Format  string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func NewDownloadError(fileID string, err error) *SyncError {
	return &SyncError{Code: ErrCodeDownload, Message: "download " + fileID, Err: err}
}

func NewExtractionError(format, msg string, err error) *SyncError {
	return &SyncError{Code: ErrCodeExtraction, Message: msg, Format: format, Err: err}
}

func NewChunkLengthError(ordinal, tokens, limit int) *SyncError {
	return &SyncError{
		Code:    ErrCodeChunkLengthExceeded,
		Message: fmt.Sprintf("chunk %d has %d tokens, limit %d", ordinal, tokens, limit),
	}
}

func NewEmbeddingError(msg string, err error) *SyncError {
	return &SyncError{Code: ErrCodeEmbedding, Message: msg, Err: err}
}

func NewPersistenceError(msg string, err error) *SyncError {
	return &SyncError{Code: ErrCodePersistence, Message: msg, Err: err}
}

// ErrNotFound is returned by stores when a file id is unknown.
var ErrNotFound = &SyncError{Code: ErrCodeNotFound, Message: "file not found"}

// CodeOf returns the code of the first SyncError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
