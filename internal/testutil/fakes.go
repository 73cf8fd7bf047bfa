package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

// WordTokenizer counts one token per whitespace-separated word, times PerWord.
type WordTokenizer struct {
	PerWord int
	Err     error

	mu    sync.Mutex
	calls int
}

var _ core.Tokenizer = (*WordTokenizer)(nil)

func (w *WordTokenizer) CountTokens(text string) (int, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if w.Err != nil {
		return 0, w.Err
	}
	per := w.PerWord
	if per == 0 {
		per = 1
	}
	return len(strings.Fields(text)) * per, nil
}

func (w *WordTokenizer) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// HeavyWordTokenizer charges Heavy tokens for words equal to Word and one for the rest.
type HeavyWordTokenizer struct {
	Word  string
	Heavy int
}

func (h HeavyWordTokenizer) CountTokens(text string) (int, error) {
	n := 0
	for _, w := range strings.Fields(text) {
		if w == h.Word {
			n += h.Heavy
		} else {
			n++
		}
	}
	return n, nil
}

// FakeEmbedder returns a small deterministic vector per text.
type FakeEmbedder struct {
	// FailOn makes Embed fail for texts containing this substring.
	FailOn string
	Err    error

	mu    sync.Mutex
	texts []string
}

var _ core.EmbeddingProvider = (*FakeEmbedder)(nil)

func (e *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, fmt.Errorf("embed rejected: %w", ErrInjected)
	}
	return []float32{float32(len(text)), float32(len(strings.Fields(text))), 1}, nil
}

func (e *FakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.texts)
}

// FakeFetcher serves file bytes from a map.
type FakeFetcher struct {
	Files map[string][]byte
	Fail  map[string]error

	mu    sync.Mutex
	calls []string
}

var _ core.ByteFetcher = (*FakeFetcher)(nil)

func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{Files: map[string][]byte{}, Fail: map[string]error{}}
}

func (f *FakeFetcher) Download(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fileID)
	f.mu.Unlock()
	if err := f.Fail[fileID]; err != nil {
		return nil, err
	}
	b, ok := f.Files[fileID]
	if !ok {
		return nil, fmt.Errorf("item %s: 404 not found", fileID)
	}
	return b, nil
}

func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// PlainExtractor treats file bytes as text and fails on demand per format.
type PlainExtractor struct {
	FailPDF  bool
	FailDOCX bool
}

var _ core.DocumentExtractor = PlainExtractor{}

func (p PlainExtractor) ExtractText(_ context.Context, fileName string, data []byte) (string, error) {
	format := core.FormatOf(fileName)
	switch {
	case format == "":
		return "", core.NewExtractionError("", "unsupported file type "+fileName, nil)
	case format == core.FormatPDF && p.FailPDF, format == core.FormatDOCX && p.FailDOCX:
		return "", core.NewExtractionError(format, "corrupt document", ErrInjected)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", core.NewExtractionError(format, "no text extracted", nil)
	}
	return text, nil
}

// FakeFeed serves DeltaPages keyed by the cursor that requests them.
// The empty cursor requests the first page.
type FakeFeed struct {
	Pages map[string]*models.DeltaPage
	Err   error

	mu       sync.Mutex
	requests []string
}

var _ core.ChangeFeed = (*FakeFeed)(nil)

func (f *FakeFeed) GetChanges(_ context.Context, cursor string) (*models.DeltaPage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, cursor)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Pages[cursor]
	if !ok {
		return nil, fmt.Errorf("no page for cursor %q", cursor)
	}
	return p, nil
}

func (f *FakeFeed) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// MemoryCursor is an in-memory core.CursorStore.
type MemoryCursor struct {
	mu     sync.Mutex
	Cursor string
	Saves  int
}

var _ core.CursorStore = (*MemoryCursor)(nil)

func (m *MemoryCursor) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cursor, nil
}

func (m *MemoryCursor) Save(_ context.Context, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cursor = cursor
	m.Saves++
	return nil
}

func (m *MemoryCursor) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cursor = ""
	return nil
}

// Words returns n space-separated words "w0 w1 ... w{n-1}".
func Words(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(ws, " ")
}

// TokenizerFunc adapts a function to core.Tokenizer.
type TokenizerFunc func(text string) (int, error)

func (f TokenizerFunc) CountTokens(text string) (int, error) { return f(text) }
