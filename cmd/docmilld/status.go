package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docmill/internal/registry"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline and fleet counts",
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

			docStats, err := store.DocumentCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("document counts: %w", err)
			}
			procStats, err := store.ProcessorCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("processor counts: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Documents", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range registry.AllDocumentStatuses() {
				kind := statusInfo
				if status == registry.StatusConverted {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(
					strings.ToUpper(string(status)),
					kind,
					fmt.Sprintf("%d", docStats[status]),
					colorize,
				))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Processors", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range registry.AllProcessorStatuses() {
				kind := statusInfo
				if status == registry.ProcessorRunning {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(
					strings.ToUpper(string(status)),
					kind,
					fmt.Sprintf("%d", procStats[status]),
					colorize,
				))
			}
			return nil
		},
	}
}
