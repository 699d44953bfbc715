package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/webproof-contributors/internal/prover"
	"github.com/sakif/webproof-contributors/internal/service"
)

func verifyAllCommand() *cobra.Command {
	var (
		dir         string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "verify-all",
		Short: "Re-verify every proof document in a directory and print the ranking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := mustConfig(cmd)
			if cmd.Flags().Changed("dir") {
				cfg.WebproofsDir = dir
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.BatchConcurrency = concurrency
			}
			logger := commonRun(cfg, cmd.ErrOrStderr())

			relay := prover.New(cfg.Prover(), logger)
			batch := service.NewBatchService(relay, os.DirFS(cfg.WebproofsDir), cfg.BatchConcurrency, logger)

			result, err := batch.VerifyAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("verifying %s: %w", cfg.WebproofsDir, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of proof documents (overrides WEBPROOFS_DIR)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 1, "verifications in flight (overrides BATCH_CONCURRENCY)")
	return cmd
}
