package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"docmill/internal/registry"
)

func newDocumentsCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List pipeline documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var statuses []registry.DocumentStatus
			if statusFlag != "" {
				status, ok := registry.ParseDocumentStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown document status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			store, err := registry.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			docs, err := store.ListDocuments(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents found")
				return nil
			}

			rows := make([][]string, 0, len(docs))
			for _, doc := range docs {
				rows = append(rows, []string{
					strconv.FormatInt(doc.ID, 10),
					doc.FileName,
					string(doc.Status),
					doc.InputFolder,
					doc.UpdatedAt.Local().Format(time.DateTime),
					doc.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "File", "Status", "Input Folder", "Updated", "Last Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only list documents in this status")
	return cmd
}
