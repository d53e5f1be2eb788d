package cmd

import (
	"context"
	"fmt"
	"strconv"

	internalApp "github.com/haierkeys/fast-db-backup-service/internal/app"
	"github.com/haierkeys/fast-db-backup-service/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	flags := new(cliFlags)
	var level string

	verifyCmd := &cobra.Command{
		Use:   "verify <history-id> [--level BASIC|CHECKSUM|FULL]",
		Short: "Verify the integrity of a stored backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			historyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			if _, err := service.NormalizeVerifyLevel(level); err != nil {
				return err
			}
			return withApp(flags, func(ctx context.Context, app *internalApp.App) error {
				report, err := app.VerifyService.VerifyBackup(ctx, historyID, level)
				if report != nil {
					if perr := printJSON(report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	flags.bind(verifyCmd)
	verifyCmd.Flags().StringVarP(&level, "level", "l", service.VerifyChecksum, "verification level")

	rootCmd.AddCommand(verifyCmd)
}
