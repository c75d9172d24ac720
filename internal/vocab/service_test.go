package vocab

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/example/go-dyntok/internal/config"
	"github.com/example/go-dyntok/internal/store"
	"github.com/example/go-dyntok/internal/tokenizer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()

	svc, err := NewService(context.Background(), config.DefaultConfig().Tokenizer, st, quietLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return svc
}

// failingStore loads nothing and fails every save.
type failingStore struct{ loadErr error }

func (f failingStore) Load(context.Context) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	return nil, store.ErrNotFound
}

func (failingStore) Save(context.Context, []byte) error { return errors.New("disk full") }
func (failingStore) Close() error                       { return nil }

func TestNewService_FreshWhenStoreEmpty(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	if got := svc.Stats(); got.Size != 4 || got.Learned != 0 {
		t.Errorf("Stats() = %+v, want fresh vocabulary", got)
	}
}

func TestNewService_RestoresSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	first := newTestService(t, st)
	if _, err := first.Train(ctx, "hello world", tokenizer.TrainOptions{}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	second := newTestService(t, st)

	res, err := second.Encode(ctx, "hello world", tokenizer.EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !slices.Equal(res.IDs, []int{4, 5}) || res.Learned != 0 {
		t.Errorf("Encode after restore = %+v, want ids [4 5] learned 0", res)
	}
}

func TestNewService_CorruptSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Save(context.Background(), []byte("not json"))

	_, err := NewService(context.Background(), config.DefaultConfig().Tokenizer, st, quietLogger())
	if !errors.Is(err, tokenizer.ErrInvalidVocabulary) {
		t.Fatalf("expected ErrInvalidVocabulary, got %v", err)
	}
}

func TestNewService_LoadError(t *testing.T) {
	_, err := NewService(context.Background(), config.DefaultConfig().Tokenizer,
		failingStore{loadErr: errors.New("boom")}, quietLogger())
	if err == nil {
		t.Fatal("expected load error")
	}
}

func TestService_EncodePersistsOnlyWhenLearning(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	svc := newTestService(t, st)

	if _, err := svc.Encode(ctx, "", tokenizer.EncodeOptions{}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := st.Load(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty encode should not persist, got %v", err)
	}

	res, err := svc.Encode(ctx, "brand new", tokenizer.EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if res.Learned != 2 {
		t.Errorf("Learned = %d, want 2", res.Learned)
	}

	if _, err := st.Load(ctx); err != nil {
		t.Errorf("learning encode should persist: %v", err)
	}
}

func TestService_ImportRejectedKeepsState(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	svc := newTestService(t, st)

	if _, err := svc.Train(ctx, "keep me", tokenizer.TrainOptions{}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	before, _ := st.Load(ctx)

	_, err := svc.ImportJSON(ctx, []byte(`{"tokenToId":{}}`))
	if !errors.Is(err, tokenizer.ErrInvalidVocabulary) {
		t.Fatalf("expected ErrInvalidVocabulary, got %v", err)
	}

	if svc.Stats().Learned != 2 {
		t.Errorf("Learned = %d after rejected import, want 2", svc.Stats().Learned)
	}

	after, _ := st.Load(ctx)
	if string(before) != string(after) {
		t.Error("rejected import changed the store")
	}
}

func TestService_ImportAndReset(t *testing.T) {
	ctx := context.Background()

	src := newTestService(t, store.NewMemoryStore())
	if _, err := src.Train(ctx, "one two three", tokenizer.TrainOptions{}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	data, err := src.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	dst := newTestService(t, store.NewMemoryStore())

	stats, err := dst.ImportJSON(ctx, data)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}

	if stats.Size != 7 {
		t.Errorf("Size = %d, want 7", stats.Size)
	}

	if got := dst.Decode([]int{4, 5, 6}, tokenizer.DefaultDecodeOptions()); got != "one two three" {
		t.Errorf("Decode = %q", got)
	}

	stats, err = dst.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if stats.Size != 4 {
		t.Errorf("Size after reset = %d, want 4", stats.Size)
	}

	if len(dst.Export().TokenToID) != 4 {
		t.Error("Export after reset should hold only specials")
	}
}

func TestService_SaveErrorSurfaces(t *testing.T) {
	svc := newTestService(t, failingStore{})

	_, err := svc.Train(context.Background(), "x", tokenizer.TrainOptions{})
	if err == nil {
		t.Fatal("expected save error from Train")
	}

	if got := svc.Stats(); got.Size != 4 {
		t.Errorf("Stats() after failed Train = %+v, want fresh vocabulary", got)
	}
}

// switchStore wraps a MemoryStore whose saves fail while failSave is set.
type switchStore struct {
	*store.MemoryStore
	failSave bool
}

func (s *switchStore) Save(ctx context.Context, data []byte) error {
	if s.failSave {
		return errors.New("disk full")
	}

	return s.MemoryStore.Save(ctx, data)
}

func TestService_FailedSaveKeepsVocabulary(t *testing.T) {
	ctx := context.Background()

	donor, err := tokenizer.New(tokenizer.DefaultConfig())
	if err != nil {
		t.Fatalf("tokenizer.New: %v", err)
	}

	donor.Train("one two three four five", tokenizer.TrainOptions{})

	bigger, err := donor.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Service) error
	}{
		{"train", func(s *Service) error {
			_, err := s.Train(ctx, "other words entirely", tokenizer.TrainOptions{})
			return err
		}},
		{"train append", func(s *Service) error {
			_, err := s.Train(ctx, "more", tokenizer.TrainOptions{Append: true})
			return err
		}},
		{"encode learning", func(s *Service) error {
			_, err := s.Encode(ctx, "hello unseen", tokenizer.EncodeOptions{})
			return err
		}},
		{"import", func(s *Service) error {
			_, err := s.ImportJSON(ctx, bigger)
			return err
		}},
		{"reset", func(s *Service) error {
			_, err := s.Reset(ctx)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &switchStore{MemoryStore: store.NewMemoryStore()}
			svc := newTestService(t, st)

			if _, err := svc.Train(ctx, "hello world", tokenizer.TrainOptions{}); err != nil {
				t.Fatalf("Train: %v", err)
			}

			wantStats := svc.Stats()

			wantJSON, err := svc.ExportJSON()
			if err != nil {
				t.Fatalf("ExportJSON: %v", err)
			}

			st.failSave = true

			if err := tt.mutate(svc); err == nil {
				t.Fatal("expected save error")
			}

			if got := svc.Stats(); got != wantStats {
				t.Errorf("Stats() = %+v, want %+v", got, wantStats)
			}

			gotJSON, err := svc.ExportJSON()
			if err != nil {
				t.Fatalf("ExportJSON: %v", err)
			}

			if string(gotJSON) != string(wantJSON) {
				t.Errorf("ExportJSON changed after failed save:\n got %s\nwant %s", gotJSON, wantJSON)
			}

			stored, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			if string(stored) != string(wantJSON) {
				t.Errorf("store and memory disagree:\nstore %s\n  mem %s", stored, gotJSON)
			}

			st.failSave = false

			res, err := svc.Encode(ctx, "fresh", tokenizer.EncodeOptions{})
			if err != nil {
				t.Fatalf("Encode after recovery: %v", err)
			}

			if !slices.Equal(res.IDs, []int{wantStats.Size}) {
				t.Errorf("next id = %v, want [%d]", res.IDs, wantStats.Size)
			}
		})
	}
}

func TestService_ConcurrentEncodeKeepsIDsUnique(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _ = svc.Encode(ctx, "shared words appear in every goroutine", tokenizer.EncodeOptions{})
		}()
	}

	wg.Wait()

	if got := svc.Stats().Learned; got != 6 {
		t.Errorf("Learned = %d, want 6", got)
	}

	snap := svc.Export()
	for s, id := range snap.TokenToID {
		if snap.IDToToken[id] != s {
			t.Errorf("bijection broken at %q/%d", s, id)
		}
	}
}
