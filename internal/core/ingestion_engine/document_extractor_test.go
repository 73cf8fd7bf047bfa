package ingestion_engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/markdave123-py/drivesync/internal/core"
	ie "github.com/markdave123-py/drivesync/internal/core/ingestion_engine"
)

func TestDocconvExtractorFailures(t *testing.T) {
	e := ie.NewDocconvExtractor(true)
	garbage := []byte("this is not a document")

	tests := []struct {
		name       string
		fileName   string
		wantFormat string
	}{
		{"corrupt pdf", "broken.pdf", core.FormatPDF},
		{"corrupt docx", "broken.docx", core.FormatDOCX},
		{"uppercase extension", "BROKEN.PDF", core.FormatPDF},
		{"unsupported", "notes.txt", ""},
		{"no extension", "README", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ExtractText(context.Background(), tt.fileName, garbage)
			var se *core.SyncError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SyncError", err)
			}
			if se.Code != core.ErrCodeExtraction {
				t.Errorf("code = %s", se.Code)
			}
			if se.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", se.Format, tt.wantFormat)
			}
		})
	}
}

func TestDocconvExtractorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ie.NewDocconvExtractor(false).ExtractText(ctx, "a.pdf", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
