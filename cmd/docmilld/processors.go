package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"docmill/internal/registry"
)

func newProcessorsCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "processors",
		Short: "List fleet processors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var statuses []registry.ProcessorStatus
			if statusFlag != "" {
				status, ok := registry.ParseProcessorStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown processor status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			store, err := registry.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			procs, err := store.ListProcessors(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list processors: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(procs) == 0 {
				fmt.Fprintln(out, "No processors registered")
				return nil
			}

			rows := make([][]string, 0, len(procs))
			for _, proc := range procs {
				rows = append(rows, []string{
					strconv.FormatInt(proc.ID, 10),
					proc.InstanceID,
					string(proc.Status),
					proc.Address,
					strconv.Itoa(proc.Workload),
					proc.LastUsedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Instance", "Status", "Address", "Workload", "Last Used"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only list processors in this status")
	return cmd
}
