package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/go-dyntok/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var text string
	var addBOS bool
	var addEOS bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text to token ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Encode(cmd.Context(), input, tokenizer.EncodeOptions{AddBOS: addBOS, AddEOS: addEOS})
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatIDs(res.IDs))
			return err
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to encode (if empty, read from stdin)")
	cmd.Flags().BoolVar(&addBOS, "bos", false, "Prepend the BOS id")
	cmd.Flags().BoolVar(&addEOS, "eos", false, "Append the EOS id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print ids and learned count as JSON")

	return cmd
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
