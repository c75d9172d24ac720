package main

import (
	"fmt"

	"github.com/example/go-dyntok/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	var keepSpecial bool

	cmd := &cobra.Command{
		Use:   "decode [ids...]",
		Short: "Decode token ids to text",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readIDs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := svc.Decode(ids, tokenizer.DecodeOptions{SkipSpecial: !keepSpecial})
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&keepSpecial, "keep-special", false, "Keep special tokens in the output")

	return cmd
}
