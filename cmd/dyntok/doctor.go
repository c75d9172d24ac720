package main

import (
	"errors"
	"fmt"

	"github.com/example/go-dyntok/internal/doctor"
	"github.com/example/go-dyntok/internal/store"
	"github.com/example/go-dyntok/internal/vocab"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the store and the stored vocabulary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dcfg := doctor.Config{
				Tokenizer: vocab.TokenizerConfig(cfg.Tokenizer),
				Backend:   cfg.Store.Backend,
			}

			st, openErr := store.Open(cmd.Context(), cfg.Store)
			if openErr == nil {
				defer func() { _ = st.Close() }()
				dcfg.Load = st.Load
			}

			result := doctor.Run(cmd.Context(), dcfg, out)
			if openErr != nil {
				result.AddFailure(fmt.Sprintf("store (%s): %v", cfg.Store.Backend, openErr))
				_, _ = fmt.Fprintf(out, "%s store (%s): %v\n", doctor.FailMark, cfg.Store.Backend, openErr)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}
}
