package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.store.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "nodes:          %d\n", stats.Nodes)
			fmt.Fprintf(a.out, "relationships:  %d\n", stats.Relationships)
			fmt.Fprintf(a.out, "last commit:    %d\n", stats.LastCommit)
			fmt.Fprintf(a.out, "lsm size:       %s\n", humanize.IBytes(uint64(stats.LSMSize)))
			fmt.Fprintf(a.out, "value log size: %s\n", humanize.IBytes(uint64(stats.VLogSize)))
			return nil
		},
	}
}

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Write a full backup of the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Backup(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "backup written to %s\n", args[0])
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Load a backup into an empty store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Restore(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "restored %s (commit %d)\n", args[0], a.store.LastCommitted())
			return nil
		},
	}
}
