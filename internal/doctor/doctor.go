// Package doctor provides preflight checks for dyntok: the configured special
// tokens, the vocabulary store, and the snapshot it holds.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/go-dyntok/internal/store"
	"github.com/example/go-dyntok/internal/tokenizer"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// LoadFunc reads the stored vocabulary snapshot.
type LoadFunc func(context.Context) ([]byte, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Tokenizer is the configuration the vocabulary is served with.
	Tokenizer tokenizer.Config
	// Backend names the store in the output (file, redis, memory).
	Backend string
	// Load reads the stored snapshot. Nil skips the store and snapshot checks.
	Load LoadFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(ctx context.Context, cfg Config, w io.Writer) Result {
	var res Result

	// ---- special tokens ---------------------------------------------------
	fresh, err := tokenizer.New(cfg.Tokenizer)
	if err != nil {
		res.fail(fmt.Sprintf("special tokens: %v", err))
		fmt.Fprintf(w, "%s special tokens: %v\n", FailMark, err)
		return res
	}

	surfaces := specialSurfaces(fresh)
	fmt.Fprintf(w, "%s special tokens: %s %s %s %s\n", PassMark,
		surfaces[tokenizer.PAD], surfaces[tokenizer.UNK], surfaces[tokenizer.BOS], surfaces[tokenizer.EOS])

	// ---- store ------------------------------------------------------------
	if cfg.Load == nil {
		fmt.Fprintf(w, "%s store: skipped\n", PassMark)
		return res
	}

	data, err := cfg.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(w, "%s store (%s): empty, a fresh vocabulary will be created\n", PassMark, cfg.Backend)
		return res
	case err != nil:
		res.fail(fmt.Sprintf("store (%s): %v", cfg.Backend, err))
		fmt.Fprintf(w, "%s store (%s): %v\n", FailMark, cfg.Backend, err)
		return res
	default:
		fmt.Fprintf(w, "%s store (%s): %d bytes\n", PassMark, cfg.Backend, len(data))
	}

	// ---- snapshot ---------------------------------------------------------
	if err := fresh.ImportJSON(data); err != nil {
		res.fail(fmt.Sprintf("snapshot: %v", err))
		fmt.Fprintf(w, "%s snapshot: %v\n", FailMark, err)
		return res
	}

	stats := fresh.Stats()
	fmt.Fprintf(w, "%s snapshot: %d tokens (%d learned)\n", PassMark, stats.Size, stats.Learned)

	stored := specialSurfaces(fresh)
	for _, name := range []string{tokenizer.PAD, tokenizer.UNK, tokenizer.BOS, tokenizer.EOS} {
		if stored[name] != surfaces[name] {
			res.fail(fmt.Sprintf("snapshot special token %s is %q, configured %q", name, stored[name], surfaces[name]))
			fmt.Fprintf(w, "%s snapshot special token %s: stored %q, configured %q\n",
				FailMark, name, stored[name], surfaces[name])
		}
	}

	return res
}

// specialSurfaces maps each special name to the token string its id holds.
func specialSurfaces(tok *tokenizer.Tokenizer) map[string]string {
	out := make(map[string]string, 4)
	for name, id := range tok.SpecialIDs() {
		out[name], _ = tok.Token(id)
	}

	return out
}
