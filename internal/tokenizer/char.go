package tokenizer

import (
	"errors"
	"strings"
)

// CharTokenizer maps each character of the normalized text to its vocabulary
// ID. Characters missing from the vocabulary are skipped.
//
// The model family normally expects phonemes; until a grapheme-to-phoneme
// front end exists this per-character mapping is the input contract.
type CharTokenizer struct {
	vocab *Vocabulary
}

// NewCharTokenizer returns a tokenizer backed by vocab.
func NewCharTokenizer(vocab *Vocabulary) (*CharTokenizer, error) {
	if vocab == nil {
		return nil, errors.New("vocabulary must not be nil")
	}

	return &CharTokenizer{vocab: vocab}, nil
}

// LoadCharTokenizer loads the vocabulary at path and wraps it.
func LoadCharTokenizer(path string) (*CharTokenizer, error) {
	vocab, err := LoadVocabulary(path)
	if err != nil {
		return nil, err
	}

	return NewCharTokenizer(vocab)
}

// Encode lower-cases and trims text and returns [pad, ids..., pad].
// It never fails; the error return satisfies Tokenizer.
func (t *CharTokenizer) Encode(text string) ([]int64, error) {
	normalized := strings.TrimSpace(strings.ToLower(text))
	pad := t.vocab.PadID()

	ids := make([]int64, 0, len(normalized)+2)
	ids = append(ids, pad)

	for _, r := range normalized {
		if id, ok := t.vocab.ID(string(r)); ok {
			ids = append(ids, id)
		}
	}

	return append(ids, pad), nil
}

// Vocabulary returns the backing vocabulary.
func (t *CharTokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}
