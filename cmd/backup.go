package cmd

import (
	"context"
	"fmt"
	"strconv"

	internalApp "github.com/haierkeys/fast-db-backup-service/internal/app"

	"github.com/spf13/cobra"
)

func init() {
	flags := new(cliFlags)

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup job operations",
	}

	runCmd := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a backup job now and print the resulting history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return withApp(flags, func(ctx context.Context, app *internalApp.App) error {
				h, err := app.BackupService.ExecuteBackup(ctx, jobID)
				if h != nil {
					if perr := printJSON(h); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	flags.bind(runCmd)

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply retention to every job and delete expired backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *internalApp.App) error {
				n, err := app.BackupService.CleanupAllExpired(ctx)
				fmt.Printf("expired backups removed: %d\n", n)
				return err
			})
		},
	}
	flags.bind(cleanupCmd)

	backupCmd.AddCommand(runCmd, cleanupCmd)
	rootCmd.AddCommand(backupCmd)
}
