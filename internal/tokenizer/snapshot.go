package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrInvalidVocabulary is returned when an imported snapshot is malformed.
// The vocabulary is left unchanged whenever it is returned.
var ErrInvalidVocabulary = errors.New("invalid vocabulary")

// Snapshot is an independent copy of the vocabulary state. Its JSON form is
// the persisted layout: tokenToId, idToToken (keys are decimal ids) and
// specialTokenIds.
type Snapshot struct {
	TokenToID       map[string]int `json:"tokenToId"`
	IDToToken       map[int]string `json:"idToToken"`
	SpecialTokenIDs map[string]int `json:"specialTokenIds"`
}

// Export returns a deep copy of the vocabulary. Mutating the result does not
// affect the tokenizer.
func (t *Tokenizer) Export() Snapshot {
	s := Snapshot{
		TokenToID:       make(map[string]int, len(t.vocab.tokenToID)),
		IDToToken:       make(map[int]string, len(t.vocab.idToToken)),
		SpecialTokenIDs: make(map[string]int, len(t.vocab.specialIDs)),
	}

	for tok, id := range t.vocab.tokenToID {
		s.TokenToID[tok] = id
	}

	for id, tok := range t.vocab.idToToken {
		s.IDToToken[id] = tok
	}

	for name, id := range t.vocab.specialIDs {
		s.SpecialTokenIDs[name] = id
	}

	return s
}

// ExportJSON returns the persisted JSON form of the vocabulary.
func (t *Tokenizer) ExportJSON() ([]byte, error) {
	data, err := json.Marshal(t.Export())
	if err != nil {
		return nil, fmt.Errorf("marshal vocabulary: %w", err)
	}

	return data, nil
}

// Import replaces the vocabulary with s. The snapshot is validated in full
// before anything is replaced; on error the current vocabulary is kept.
func (t *Tokenizer) Import(s Snapshot) error {
	v, err := buildVocabulary(s)
	if err != nil {
		return err
	}

	t.vocab = v

	return nil
}

// ImportJSON parses the persisted JSON form and imports it. Unknown top-level
// fields such as a version marker are ignored.
func (t *Tokenizer) ImportJSON(data []byte) error {
	s, err := ParseSnapshot(data)
	if err != nil {
		return err
	}

	return t.Import(s)
}

// ParseSnapshot decodes the persisted JSON form without importing it.
func ParseSnapshot(data []byte) (Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return Snapshot{}, fmt.Errorf("%w: not valid JSON", ErrInvalidVocabulary)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Snapshot{}, fmt.Errorf("%w: top level is not an object", ErrInvalidVocabulary)
	}

	tokenToID, err := intMap(root, "tokenToId")
	if err != nil {
		return Snapshot{}, err
	}

	specialIDs, err := intMap(root, "specialTokenIds")
	if err != nil {
		return Snapshot{}, err
	}

	idField, err := objectField(root, "idToToken")
	if err != nil {
		return Snapshot{}, err
	}

	idToToken := make(map[int]string)
	idField.ForEach(func(key, value gjson.Result) bool {
		id, convErr := strconv.Atoi(key.String())
		if convErr != nil || id < 0 {
			err = fmt.Errorf("%w: idToToken key %q is not a non-negative integer", ErrInvalidVocabulary, key.String())
			return false
		}

		if value.Type != gjson.String {
			err = fmt.Errorf("%w: idToToken[%d] is not a string", ErrInvalidVocabulary, id)
			return false
		}

		idToToken[id] = value.String()

		return true
	})
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		TokenToID:       tokenToID,
		IDToToken:       idToToken,
		SpecialTokenIDs: specialIDs,
	}, nil
}

func objectField(root gjson.Result, name string) (gjson.Result, error) {
	field := root.Get(name)
	if !field.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: missing %s", ErrInvalidVocabulary, name)
	}

	if !field.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: %s is not an object", ErrInvalidVocabulary, name)
	}

	return field, nil
}

func intMap(root gjson.Result, name string) (map[string]int, error) {
	field, err := objectField(root, name)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int)
	field.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number || value.Num != math.Trunc(value.Num) || value.Num < 0 {
			err = fmt.Errorf("%w: %s[%q] is not a non-negative integer", ErrInvalidVocabulary, name, key.String())
			return false
		}

		out[key.String()] = int(value.Int())

		return true
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// buildVocabulary validates s and copies it into a fresh vocabulary.
func buildVocabulary(s Snapshot) (*vocabulary, error) {
	if s.TokenToID == nil || s.IDToToken == nil || s.SpecialTokenIDs == nil {
		return nil, fmt.Errorf("%w: snapshot is missing a mapping", ErrInvalidVocabulary)
	}

	if len(s.TokenToID) != len(s.IDToToken) {
		return nil, fmt.Errorf("%w: tokenToId has %d entries, idToToken has %d",
			ErrInvalidVocabulary, len(s.TokenToID), len(s.IDToToken))
	}

	v := newVocabulary()
	v.size = len(s.IDToToken)

	for id, tok := range s.IDToToken {
		if id < 0 || id >= v.size {
			return nil, fmt.Errorf("%w: id %d outside dense range [0, %d)", ErrInvalidVocabulary, id, v.size)
		}

		if back, ok := s.TokenToID[tok]; !ok || back != id {
			return nil, fmt.Errorf("%w: id %d and token %q are not inverse", ErrInvalidVocabulary, id, tok)
		}

		v.idToToken[id] = tok
		v.tokenToID[tok] = id
	}

	seen := make(map[int]string, len(specialNames))
	for _, name := range specialNames {
		id, ok := s.SpecialTokenIDs[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing special token %s", ErrInvalidVocabulary, name)
		}

		if _, ok := v.idToToken[id]; !ok {
			return nil, fmt.Errorf("%w: special token %s has unassigned id %d", ErrInvalidVocabulary, name, id)
		}

		if other, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: special tokens %s and %s share id %d", ErrInvalidVocabulary, other, name, id)
		}

		seen[id] = name
		v.specialIDs[name] = id
	}

	return v, nil
}
