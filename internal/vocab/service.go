// Package vocab owns the single live tokenizer of a process together with the
// store it persists to. Service serializes every call, so it can be shared by
// concurrent request handlers.
package vocab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/go-dyntok/internal/config"
	"github.com/example/go-dyntok/internal/store"
	"github.com/example/go-dyntok/internal/tokenizer"
)

// EncodeResult carries the ids of one Encode call and how many tokens it learned.
type EncodeResult struct {
	IDs     []int `json:"ids"`
	Learned int   `json:"learned"`
}

type Service struct {
	mu    sync.Mutex
	tok   *tokenizer.Tokenizer
	store store.Store
	log   *slog.Logger
}

// TokenizerConfig converts the config section into tokenizer settings.
func TokenizerConfig(c config.TokenizerConfig) tokenizer.Config {
	return tokenizer.Config{
		Lowercase:     c.Lowercase,
		LearnOnEncode: c.LearnOnEncode,
		SpecialTokens: tokenizer.SpecialTokens{
			PAD: c.PadToken,
			UNK: c.UnkToken,
			BOS: c.BosToken,
			EOS: c.EosToken,
		},
	}
}

// NewService builds a tokenizer from cfg and restores the snapshot held by st,
// if any. A missing snapshot starts from a fresh vocabulary. A nil logger
// uses slog.Default.
func NewService(ctx context.Context, cfg config.TokenizerConfig, st store.Store, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	tok, err := tokenizer.New(TokenizerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}

	s := &Service{tok: tok, store: st, log: log}

	data, err := st.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.DebugContext(ctx, "no stored vocabulary, starting fresh")
	case err != nil:
		return nil, fmt.Errorf("load vocabulary: %w", err)
	default:
		if err := tok.ImportJSON(data); err != nil {
			return nil, fmt.Errorf("restore vocabulary: %w", err)
		}

		log.InfoContext(ctx, "vocabulary restored", slog.Int("size", tok.Size()))
	}

	return s, nil
}

// Train trains the vocabulary and persists it.
func (s *Service) Train(ctx context.Context, input string, opts tokenizer.TrainOptions) (tokenizer.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.tok.Export()
	before := s.tok.Size()
	s.tok.Train(input, opts)
	stats := s.tok.Stats()

	s.log.InfoContext(ctx, "vocabulary trained",
		slog.Int("text_len", len(input)),
		slog.Int("max_vocab", opts.MaxVocab),
		slog.Bool("append", opts.Append),
		slog.Int("size_before", before),
		slog.Int("size", stats.Size),
	)

	if err := s.persistOrRestore(ctx, prev); err != nil {
		return s.tok.Stats(), err
	}

	return stats, nil
}

// Encode encodes input. The vocabulary is persisted only when it grew.
func (s *Service) Encode(ctx context.Context, input string, opts tokenizer.EncodeOptions) (EncodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.tok.Size()
	ids := s.tok.Encode(input, opts)
	res := EncodeResult{IDs: ids, Learned: s.tok.Size() - before}

	if res.Learned == 0 {
		return res, nil
	}

	s.log.DebugContext(ctx, "tokens learned during encode", slog.Int("learned", res.Learned))

	if err := s.persist(ctx); err != nil {
		s.tok.Truncate(before)
		return EncodeResult{}, err
	}

	return res, nil
}

// Decode decodes ids. It never changes the vocabulary.
func (s *Service) Decode(ids []int, opts tokenizer.DecodeOptions) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok.Decode(ids, opts)
}

// Export returns an independent copy of the vocabulary.
func (s *Service) Export() tokenizer.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok.Export()
}

// ExportJSON returns the persisted JSON form of the vocabulary.
func (s *Service) ExportJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok.ExportJSON()
}

// ImportJSON replaces the vocabulary. On tokenizer.ErrInvalidVocabulary
// nothing changes, neither in memory nor in the store.
func (s *Service) ImportJSON(ctx context.Context, data []byte) (tokenizer.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.tok.Export()

	if err := s.tok.ImportJSON(data); err != nil {
		s.log.WarnContext(ctx, "vocabulary import rejected", slog.String("error", err.Error()))
		return s.tok.Stats(), err
	}

	if err := s.persistOrRestore(ctx, prev); err != nil {
		return s.tok.Stats(), err
	}

	stats := s.tok.Stats()
	s.log.InfoContext(ctx, "vocabulary imported", slog.Int("size", stats.Size))

	return stats, nil
}

// Reset discards all learned tokens and persists the fresh vocabulary.
func (s *Service) Reset(ctx context.Context) (tokenizer.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.tok.Export()
	s.tok.Reset()

	if err := s.persistOrRestore(ctx, prev); err != nil {
		return s.tok.Stats(), err
	}

	s.log.InfoContext(ctx, "vocabulary reset")

	return s.tok.Stats(), nil
}

// Stats returns the vocabulary counts.
func (s *Service) Stats() tokenizer.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok.Stats()
}

// persistOrRestore saves the current snapshot and puts prev back in memory
// when the save fails, so memory never runs ahead of the store. Callers hold s.mu.
func (s *Service) persistOrRestore(ctx context.Context, prev tokenizer.Snapshot) error {
	err := s.persist(ctx)
	if err == nil {
		return nil
	}

	if restoreErr := s.tok.Import(prev); restoreErr != nil {
		s.log.ErrorContext(ctx, "restore vocabulary after failed save", slog.String("error", restoreErr.Error()))
	}

	s.log.WarnContext(ctx, "vocabulary change rolled back", slog.String("error", err.Error()))

	return err
}

// persist saves the current snapshot. Callers hold s.mu.
func (s *Service) persist(ctx context.Context) error {
	data, err := s.tok.ExportJSON()
	if err != nil {
		return err
	}

	if err := s.store.Save(ctx, data); err != nil {
		return fmt.Errorf("save vocabulary: %w", err)
	}

	return nil
}
