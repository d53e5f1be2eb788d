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

	restoreCmd := &cobra.Command{
		Use:   "restore <history-id>",
		Short: "Restore a successful backup into its database",
		Long: "Downloads the backup artifact, decrypts and decompresses it when needed, " +
			"and replays it into the database recorded on the history entry. Existing data is overwritten.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			historyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			return withApp(flags, func(ctx context.Context, app *internalApp.App) error {
				res, err := app.RestoreService.RestoreBackup(ctx, historyID)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	flags.bind(restoreCmd)

	rootCmd.AddCommand(restoreCmd)
}
