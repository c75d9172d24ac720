package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect and manage the stored vocabulary",
	}

	cmd.AddCommand(newVocabExportCmd())
	cmd.AddCommand(newVocabImportCmd())
	cmd.AddCommand(newVocabResetCmd())
	cmd.AddCommand(newVocabStatsCmd())

	return cmd
}

func newVocabExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the vocabulary snapshot as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			data, err := svc.ExportJSON()
			if err != nil {
				return err
			}
			return writeOutput(out, append(data, '\n'), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&out, "out", "-", "Output path ('-' for stdout)")

	return cmd
}

func newVocabImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the stored vocabulary with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := svc.ImportJSON(cmd.Context(), data)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}

	return cmd
}

func newVocabResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard all learned tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := svc.Reset(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}
}

func newVocabStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print vocabulary counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			return json.NewEncoder(cmd.OutOrStdout()).Encode(svc.Stats())
		},
	}
}
