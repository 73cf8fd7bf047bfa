package tokenizer

import (
	"strings"
	"testing"
)

// newTestTokenizer skips when the BPE ranks cannot be loaded (offline sandbox).
func newTestTokenizer(t *testing.T, model string) *Tiktoken {
	t.Helper()
	tk, err := New(model)
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	return tk
}

func TestCountTokens(t *testing.T) {
	tk := newTestTokenizer(t, "text-embedding-3-small")

	t.Run("empty", func(t *testing.T) {
		n, err := tk.CountTokens("")
		if err != nil || n != 0 {
			t.Errorf("CountTokens(\"\") = %d, %v", n, err)
		}
	})

	t.Run("known sentence", func(t *testing.T) {
		// cl100k_base: "hello" " world"
		n, err := tk.CountTokens("hello world")
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("CountTokens = %d, want 2", n)
		}
	})

	t.Run("grows with input", func(t *testing.T) {
		short, _ := tk.CountTokens(strings.Repeat("alpha ", 10))
		long, _ := tk.CountTokens(strings.Repeat("alpha ", 100))
		if long <= short {
			t.Errorf("long=%d short=%d", long, short)
		}
	})

	t.Run("special token text", func(t *testing.T) {
		if _, err := tk.CountTokens("<|endoftext|>"); err != nil {
			t.Errorf("special token text should not error: %v", err)
		}
	})
}

func TestUnknownModelFallsBack(t *testing.T) {
	tk := newTestTokenizer(t, "definitely-not-a-model")
	ref := newTestTokenizer(t, "text-embedding-3-small")

	text := "The quick brown fox jumps over the lazy dog."
	a, _ := tk.CountTokens(text)
	b, _ := ref.CountTokens(text)
	if a != b {
		t.Errorf("fallback count %d != cl100k_base count %d", a, b)
	}
	if tk.Model() != "definitely-not-a-model" {
		t.Errorf("Model() = %q", tk.Model())
	}
}

func TestEncodingIsCached(t *testing.T) {
	a := newTestTokenizer(t, "text-embedding-3-small")
	b := newTestTokenizer(t, "text-embedding-3-small")
	if a.enc != b.enc {
		t.Error("expected the encoding to be shared between tokenizers of the same model")
	}
}
