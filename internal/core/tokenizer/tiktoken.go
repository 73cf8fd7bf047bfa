package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/markdave123-py/drivesync/internal/core"
)

// FallbackEncoding is used when the model has no registered encoding.
const FallbackEncoding = "cl100k_base"

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// Tiktoken counts tokens with the BPE vocabulary of an OpenAI model.
type Tiktoken struct {
	model string
	enc   *tiktoken.Tiktoken
}

var _ core.Tokenizer = (*Tiktoken)(nil)

// New resolves the encoding for model once; later calls for the same model reuse it.
func New(model string) (*Tiktoken, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{model: model, enc: enc}, nil
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	encMu.Lock()
	defer encMu.Unlock()

	if enc, ok := encCache[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("tokenizer: load encoding for %q: %w", model, err)
		}
	}
	encCache[model] = enc
	return enc, nil
}

func (t *Tiktoken) Model() string {
	return t.model
}

// CountTokens returns the number of tokens in text. Special tokens are encoded as plain text.
func (t *Tiktoken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}
