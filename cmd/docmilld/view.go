package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docmill/internal/contentstore"
	"docmill/internal/logging"
	"docmill/internal/pipeline"
	"docmill/internal/registry"
)

func newViewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "view <processed-file-id>",
		Short: "Resolve a temporary view URL for a converted document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := registry.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			content, err := contentstore.NewMinIO(cfg.ContentStore)
			if err != nil {
				return fmt.Errorf("connect content store: %w", err)
			}

			orchestrator := pipeline.NewOrchestrator(cfg, store, content, logging.NewNop())
			url, err := orchestrator.ResolveViewURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}
