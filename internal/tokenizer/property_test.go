package tokenizer

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// words draws short texts over a small alphabet so tokens repeat.
func words(t *rapid.T, label string) string {
	n := rapid.IntRange(0, 30).Draw(t, label+"_len")
	parts := make([]string, n)

	for i := range parts {
		parts[i] = rapid.SampledFrom([]string{
			"alpha", "Beta", "gamma", "don't", "x_1", "42", ".", ",", "!", "?", "-", "(", ")",
		}).Draw(t, label+"_word")
	}

	return strings.Join(parts, " ")
}

func checkBijection(t *rapid.T, tok *Tokenizer) {
	snap := tok.Export()
	if len(snap.TokenToID) != len(snap.IDToToken) || len(snap.IDToToken) != tok.Size() {
		t.Fatalf("sizes differ: tokenToId=%d idToToken=%d size=%d",
			len(snap.TokenToID), len(snap.IDToToken), tok.Size())
	}

	for s, id := range snap.TokenToID {
		if snap.IDToToken[id] != s {
			t.Fatalf("idToToken[%d] = %q, want %q", id, snap.IDToToken[id], s)
		}

		if id < 0 || id >= tok.Size() {
			t.Fatalf("id %d outside [0, %d)", id, tok.Size())
		}
	}
}

func TestProperty_BijectionAcrossOperations(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.LearnOnEncode = rapid.Bool().Draw(rt, "learn")

		tok, err := New(cfg)
		if err != nil {
			rt.Fatalf("New: %v", err)
		}

		steps := rapid.IntRange(1, 8).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				tok.Train(words(rt, "train"), TrainOptions{
					MaxVocab: rapid.IntRange(0, 6).Draw(rt, "max"),
					Append:   rapid.Bool().Draw(rt, "append"),
				})
			case 1:
				tok.Encode(words(rt, "encode"), EncodeOptions{})
			case 2:
				tok.Reset()
			case 3:
				_ = tok.Decode([]int{rapid.IntRange(-5, 50).Draw(rt, "id")}, DecodeOptions{})
			}

			checkBijection(rt, tok)
		}
	})
}

func TestProperty_BoundedTraining(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tok, _ := New(DefaultConfig())
		limit := rapid.IntRange(1, 5).Draw(rt, "max")

		tok.Train(words(rt, "text"), TrainOptions{MaxVocab: limit})

		if got := tok.Stats().Learned; got > limit {
			rt.Fatalf("learned %d tokens, bound %d", got, limit)
		}
	})
}

func TestProperty_DynamicLearningGrowsByDistinctUnseen(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tok, _ := New(DefaultConfig())
		tok.Train(words(rt, "seed"), TrainOptions{})

		input := words(rt, "input")

		unseen := make(map[string]struct{})
		for _, s := range tok.segment(input) {
			if _, ok := tok.TokenID(s); !ok {
				unseen[s] = struct{}{}
			}
		}

		before := tok.Size()
		tok.Encode(input, EncodeOptions{})

		if tok.Size() != before+len(unseen) {
			rt.Fatalf("size %d -> %d, want +%d", before, tok.Size(), len(unseen))
		}

		snap := tok.Export()
		for s := range unseen {
			if _, ok := snap.TokenToID[s]; !ok {
				rt.Fatalf("snapshot missing learned token %q", s)
			}
		}
	})
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tok, _ := New(DefaultConfig())
		input := words(rt, "text")
		tok.Train(input, TrainOptions{})

		ids := tok.Encode(input, EncodeOptions{AddBOS: true, AddEOS: true})
		got := tok.Decode(ids, DefaultDecodeOptions())

		want := punctuationSpacing.Replace(strings.Join(tok.segment(input), " "))
		if got != want {
			rt.Fatalf("Decode(Encode(%q)) = %q, want %q", input, got, want)
		}
	})
}

func TestProperty_UnknownIDTolerance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tok, _ := New(DefaultConfig())
		tok.Train(words(rt, "text"), TrainOptions{})

		id := rapid.OneOf(
			rapid.IntRange(-1000, -1),
			rapid.IntRange(tok.Size(), 1_000_000),
		).Draw(rt, "id")

		if got := tok.Decode([]int{id}, DecodeOptions{}); got != "[UNK]" {
			rt.Fatalf("Decode([%d]) = %q, want [UNK]", id, got)
		}
	})
}
