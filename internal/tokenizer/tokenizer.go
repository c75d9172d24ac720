// Package tokenizer implements a dynamic-vocabulary tokenizer. The vocabulary
// starts with four reserved special tokens and grows from observed text,
// either through Train or, when enabled, while encoding unseen tokens.
//
// A Tokenizer is not safe for concurrent use. Callers that share one across
// goroutines must serialize access to it.
package tokenizer

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/example/go-dyntok/internal/text"
)

// Logical names of the special tokens, in id order.
const (
	PAD = "PAD"
	UNK = "UNK"
	BOS = "BOS"
	EOS = "EOS"
)

// specialNames fixes the id order of the special tokens: PAD=0, UNK=1, BOS=2, EOS=3.
var specialNames = [...]string{PAD, UNK, BOS, EOS}

// ErrDuplicateSpecial is returned by New when two special tokens share a surface string.
var ErrDuplicateSpecial = errors.New("special token surface strings must be distinct")

// SpecialTokens holds the surface strings of the reserved tokens.
type SpecialTokens struct {
	PAD string
	UNK string
	BOS string
	EOS string
}

// DefaultSpecialTokens returns the bracketed default surfaces.
func DefaultSpecialTokens() SpecialTokens {
	return SpecialTokens{PAD: "[PAD]", UNK: "[UNK]", BOS: "[BOS]", EOS: "[EOS]"}
}

func (s SpecialTokens) surface(name string) string {
	switch name {
	case PAD:
		return s.PAD
	case UNK:
		return s.UNK
	case BOS:
		return s.BOS
	case EOS:
		return s.EOS
	default:
		return ""
	}
}

// Config is fixed at construction.
type Config struct {
	// Lowercase folds input text before segmentation.
	Lowercase bool
	// LearnOnEncode adds unseen tokens to the vocabulary during Encode
	// instead of mapping them to UNK.
	LearnOnEncode bool
	// SpecialTokens overrides the surface strings; empty fields keep the default.
	SpecialTokens SpecialTokens
}

// DefaultConfig returns lowercase and learn-on-encode enabled with default specials.
func DefaultConfig() Config {
	return Config{
		Lowercase:     true,
		LearnOnEncode: true,
		SpecialTokens: DefaultSpecialTokens(),
	}
}

// TrainOptions controls a Train call.
type TrainOptions struct {
	// MaxVocab bounds the number of non-special tokens. Zero means unbounded.
	MaxVocab int
	// Append keeps the current vocabulary instead of resetting it first.
	Append bool
}

// EncodeOptions controls an Encode call.
type EncodeOptions struct {
	AddBOS bool
	AddEOS bool
}

// DecodeOptions controls a Decode call.
type DecodeOptions struct {
	// SkipSpecial drops special tokens from the output.
	SkipSpecial bool
}

// DefaultDecodeOptions skips special tokens.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{SkipSpecial: true}
}

// Tokenizer converts text to token ids and back over a growing vocabulary.
type Tokenizer struct {
	cfg      Config
	vocab    *vocabulary
	specials map[string]struct{}
}

// New returns a tokenizer whose vocabulary holds only the special tokens.
func New(cfg Config) (*Tokenizer, error) {
	defaults := DefaultSpecialTokens()
	if cfg.SpecialTokens.PAD == "" {
		cfg.SpecialTokens.PAD = defaults.PAD
	}
	if cfg.SpecialTokens.UNK == "" {
		cfg.SpecialTokens.UNK = defaults.UNK
	}
	if cfg.SpecialTokens.BOS == "" {
		cfg.SpecialTokens.BOS = defaults.BOS
	}
	if cfg.SpecialTokens.EOS == "" {
		cfg.SpecialTokens.EOS = defaults.EOS
	}

	specials := make(map[string]struct{}, len(specialNames))
	for _, name := range specialNames {
		surface := cfg.SpecialTokens.surface(name)
		if _, dup := specials[surface]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSpecial, surface)
		}

		specials[surface] = struct{}{}
	}

	t := &Tokenizer{cfg: cfg, specials: specials}
	t.Reset()

	return t, nil
}

// Config returns the configuration the tokenizer was built with.
func (t *Tokenizer) Config() Config {
	return t.cfg
}

// Reset discards every learned token and re-inserts the specials as ids 0-3.
// Ids issued before a reset must not be mixed with ids issued after it.
func (t *Tokenizer) Reset() {
	v := newVocabulary()
	for _, name := range specialNames {
		v.specialIDs[name] = v.add(t.cfg.SpecialTokens.surface(name))
	}

	t.vocab = v
}

// Train grows the vocabulary from text, most frequent tokens first.
// Tokens already present keep their ids.
func (t *Tokenizer) Train(input string, opts TrainOptions) {
	if !opts.Append {
		t.Reset()
	}

	if input == "" {
		return
	}

	tokens := t.segment(input)

	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}

		counts[tok]++
	}

	// Stable over first-occurrence order, so equal counts keep text order.
	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})

	for _, tok := range order {
		if _, ok := t.vocab.tokenToID[tok]; ok {
			continue
		}

		if opts.MaxVocab > 0 && t.vocab.learned() >= opts.MaxVocab {
			break
		}

		t.vocab.add(tok)
	}
}

// Encode maps text to ids. Unseen tokens are learned when LearnOnEncode is
// set and become UNK otherwise. An empty string encodes to an empty slice,
// without BOS or EOS.
func (t *Tokenizer) Encode(input string, opts EncodeOptions) []int {
	if input == "" {
		return []int{}
	}

	tokens := t.segment(input)
	ids := make([]int, 0, len(tokens)+2)

	if opts.AddBOS {
		ids = append(ids, t.vocab.specialIDs[BOS])
	}

	for _, tok := range tokens {
		id, ok := t.vocab.tokenToID[tok]
		switch {
		case ok:
		case t.cfg.LearnOnEncode:
			id = t.vocab.add(tok)
		default:
			id = t.vocab.specialIDs[UNK]
		}

		ids = append(ids, id)
	}

	if opts.AddEOS {
		ids = append(ids, t.vocab.specialIDs[EOS])
	}

	return ids
}

var punctuationSpacing = strings.NewReplacer(
	" .", ".",
	" ,", ",",
	" !", "!",
	" ?", "?",
	" ;", ";",
	" :", ":",
)

// Decode maps ids back to text. Ids without a token decode as the UNK
// surface string. Tokens are joined by single spaces and the space before
// . , ! ? ; : is removed.
func (t *Tokenizer) Decode(ids []int, opts DecodeOptions) string {
	words := make([]string, 0, len(ids))

	for _, id := range ids {
		tok, ok := t.vocab.idToToken[id]
		if !ok {
			tok = t.cfg.SpecialTokens.UNK
		}

		if opts.SkipSpecial {
			if _, special := t.specials[tok]; special {
				continue
			}
		}

		words = append(words, tok)
	}

	return punctuationSpacing.Replace(strings.Join(words, " "))
}

// Truncate drops every token with an id at or above n, undoing tokens
// appended since Size returned n. Values of n outside [number of specials,
// Size()) leave the vocabulary unchanged.
func (t *Tokenizer) Truncate(n int) {
	if n < len(specialNames) || n >= t.vocab.size {
		return
	}

	for id := n; id < t.vocab.size; id++ {
		delete(t.vocab.tokenToID, t.vocab.idToToken[id])
		delete(t.vocab.idToToken, id)
	}

	t.vocab.size = n
}

// Size returns the number of tokens in the vocabulary, specials included.
func (t *Tokenizer) Size() int {
	return t.vocab.size
}

// TokenID looks up the id of tok.
func (t *Tokenizer) TokenID(tok string) (int, bool) {
	id, ok := t.vocab.tokenToID[tok]
	return id, ok
}

// Token looks up the token assigned to id.
func (t *Tokenizer) Token(id int) (string, bool) {
	tok, ok := t.vocab.idToToken[id]
	return tok, ok
}

// SpecialIDs returns a copy of the special name to id registry.
func (t *Tokenizer) SpecialIDs() map[string]int {
	out := make(map[string]int, len(t.vocab.specialIDs))
	for k, v := range t.vocab.specialIDs {
		out[k] = v
	}

	return out
}

// Stats summarizes the vocabulary.
type Stats struct {
	Size    int `json:"size"`
	Special int `json:"special"`
	Learned int `json:"learned"`
}

// Stats returns the current vocabulary counts.
func (t *Tokenizer) Stats() Stats {
	return Stats{
		Size:    t.vocab.size,
		Special: len(t.vocab.specialIDs),
		Learned: t.vocab.learned(),
	}
}

func (t *Tokenizer) segment(s string) []string {
	if t.cfg.Lowercase {
		s = text.Fold(s)
	}

	return text.Segment(s)
}
