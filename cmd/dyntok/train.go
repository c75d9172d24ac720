package main

import (
	"encoding/json"
	"fmt"

	"github.com/example/go-dyntok/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var text string
	var maxVocab int
	var appendVocab bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Build the vocabulary from text, most frequent tokens first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxVocab < 0 {
				return fmt.Errorf("--max-vocab must not be negative")
			}

			input, err := readText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := svc.Train(cmd.Context(), input, tokenizer.TrainOptions{
				MaxVocab: maxVocab,
				Append:   appendVocab,
			})
			if err != nil {
				return err
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Training text (if empty, read from stdin)")
	cmd.Flags().IntVar(&maxVocab, "max-vocab", 0, "Maximum number of non-special tokens (0 = unbounded)")
	cmd.Flags().BoolVar(&appendVocab, "append", false, "Keep the existing vocabulary instead of resetting it")

	return cmd
}
