// Package tokenizer turns narration text into the token IDs the acoustic
// model consumes. The vocabulary comes from the model's packaged
// tokenizer.json; every utterance is bracketed by the <pad> token.
package tokenizer

// Tokenizer encodes text into model token IDs.
type Tokenizer interface {
	// Encode tokenizes text and returns token IDs, including boundary tokens.
	Encode(text string) ([]int64, error)
}
