package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// PadToken is the vocabulary entry used as both start and end marker.
const PadToken = "<pad>"

var (
	// ErrEmptyPath is returned when LoadVocabulary is called with an empty path.
	ErrEmptyPath = errors.New("vocabulary path must not be empty")
	// ErrMissingVocab is returned when the resource has no model.vocab mapping.
	ErrMissingVocab = errors.New("tokenizer resource has no model.vocab mapping")
	// ErrMissingPad is returned when the vocabulary lacks the <pad> entry.
	ErrMissingPad = errors.New("vocabulary has no " + PadToken + " entry")
)

// tokenizerFile mirrors the parts of tokenizer.json the engine reads.
type tokenizerFile struct {
	Model *struct {
		Vocab map[string]int64 `json:"vocab"`
	} `json:"model"`
}

// Vocabulary is an immutable unit → token ID mapping.
type Vocabulary struct {
	ids   map[string]int64
	padID int64
}

// NewVocabulary validates ids and copies them into a Vocabulary.
func NewVocabulary(ids map[string]int64) (*Vocabulary, error) {
	if len(ids) == 0 {
		return nil, ErrMissingVocab
	}

	pad, ok := ids[PadToken]
	if !ok {
		return nil, ErrMissingPad
	}

	copied := make(map[string]int64, len(ids))
	for unit, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("vocabulary entry %q has negative id %d", unit, id)
		}
		copied[unit] = id
	}

	return &Vocabulary{ids: copied, padID: pad}, nil
}

// ParseVocabulary decodes a tokenizer.json document.
func ParseVocabulary(r io.Reader) (*Vocabulary, error) {
	var doc tokenizerFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode tokenizer json: %w", err)
	}

	if doc.Model == nil || doc.Model.Vocab == nil {
		return nil, ErrMissingVocab
	}

	return NewVocabulary(doc.Model.Vocab)
}

// LoadVocabulary reads and parses the tokenizer.json at path.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	vocab, err := ParseVocabulary(f)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %q: %w", path, err)
	}

	return vocab, nil
}

// ID returns the token ID for unit.
func (v *Vocabulary) ID(unit string) (int64, bool) {
	id, ok := v.ids[unit]
	return id, ok
}

// PadID returns the <pad> token ID.
func (v *Vocabulary) PadID() int64 {
	return v.padID
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int {
	return len(v.ids)
}
