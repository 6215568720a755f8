package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/runner"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index messages appended to the mailbox since the last sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(r *runner.Runner) error {
			r.Logger().Info("starting mbox-index sync", "mbox", r.Config().MboxPath, "index", r.Config().IndexDir, "fsync", r.Config().Fsync)

			summary, err := r.Sync()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d new messages (%d bytes)\n", summary.Indexed, summary.Bytes)
			return nil
		})
	},
}

func init() {
	if err := config.RegisterMboxFlag(syncCmd, true); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(syncCmd)
}
