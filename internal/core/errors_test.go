package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/markdave123-py/drivesync/internal/core"
)

func TestSyncErrorChain(t *testing.T) {
	root := errors.New("connection reset")
	err := fmt.Errorf("process file: %w", core.NewDownloadError("abc", root))

	if !core.IsCode(err, core.ErrCodeDownload) {
		t.Errorf("IsCode(download) = false for %v", err)
	}
	if core.IsCode(err, core.ErrCodeEmbedding) {
		t.Error("IsCode(embedding) = true for a download error")
	}
	if !errors.Is(err, root) {
		t.Error("wrapped cause lost")
	}
}

func TestExtractionErrorKeepsFormat(t *testing.T) {
	err := fmt.Errorf("wrap: %w", core.NewExtractionError(core.FormatDOCX, "no text", nil))

	var se *core.SyncError
	if !errors.As(err, &se) {
		t.Fatal("errors.As failed")
	}
	if se.Format != core.FormatDOCX {
		t.Errorf("Format = %q", se.Format)
	}
	if se.Error() != "EXTRACTION_FAILED: no text" {
		t.Errorf("Error() = %q", se.Error())
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := core.CodeOf(errors.New("x")); got != "" {
		t.Errorf("CodeOf = %q", got)
	}
	if core.IsCode(nil, core.ErrCodeDownload) {
		t.Error("IsCode(nil) = true")
	}
}
