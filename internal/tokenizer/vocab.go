package tokenizer

// vocabulary is the bidirectional token/id mapping plus the special registry.
// tokenToID and idToToken are exact inverses and ids are dense in [0, size).
type vocabulary struct {
	tokenToID  map[string]int
	idToToken  map[int]string
	specialIDs map[string]int
	size       int
}

func newVocabulary() *vocabulary {
	return &vocabulary{
		tokenToID:  make(map[string]int),
		idToToken:  make(map[int]string),
		specialIDs: make(map[string]int, len(specialNames)),
	}
}

// add assigns the next id to tok. The caller checks tok is not present.
func (v *vocabulary) add(tok string) int {
	id := v.size
	v.tokenToID[tok] = id
	v.idToToken[id] = tok
	v.size++

	return id
}

// learned counts the non-special tokens.
func (v *vocabulary) learned() int {
	return len(v.tokenToID) - len(v.specialIDs)
}
