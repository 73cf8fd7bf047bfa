package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/markdave123-py/drivesync/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// NewDocconvExtractor returns an extractor for .pdf and .docx files.
// With validatePDF set, PDFs must parse with pdfcpu before pdftotext runs.
func NewDocconvExtractor(validatePDF bool) *DocconvExtractor {
	return &DocconvExtractor{validatePDF: validatePDF}
}

// ExtractText routes by file extension. Empty output is a failure for that format.
func (e *DocconvExtractor) ExtractText(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format := core.FormatOf(fileName)
	var (
		text string
		err  error
	)
	switch format {
	case core.FormatPDF:
		text, err = e.extractPDF(data)
	case core.FormatDOCX:
		text, _, err = docconv.ConvertDocx(bytes.NewReader(data))
	default:
		return "", core.NewExtractionError("", "unsupported file type "+fileName, nil)
	}
	if err != nil {
		return "", core.NewExtractionError(format, "docconv "+format, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", core.NewExtractionError(format, "no text extracted from "+fileName, nil)
	}
	return text, nil
}

func (e *DocconvExtractor) extractPDF(data []byte) (string, error) {
	if e.validatePDF {
		pages, err := pdfPageCount(data)
		if err != nil {
			return "", err
		}
		if pages == 0 {
			return "", fmt.Errorf("pdf has no pages")
		}
	}
	text, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	return text, err
}

// pdfPageCount parses the document structure with pdfcpu in relaxed mode.
func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu: %w", err)
	}
	return n, nil
}
