package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/index"
	"github.com/dhcgn/mbox-index/runner"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(r *runner.Runner) error {
			idx := r.Index()
			if err := idx.Lock(index.LockShared); err != nil {
				return fmt.Errorf("lock index: %w", err)
			}
			defer idx.Unlock(index.LockShared)

			st, err := idx.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "index:       %s\n", r.Config().IndexDir)
			fmt.Fprintf(out, "messages:    %d\n", st.Messages)
			fmt.Fprintf(out, "seen:        %d\n", st.Seen)
			fmt.Fprintf(out, "flagged:     %d\n", st.Flagged)
			fmt.Fprintf(out, "deleted:     %d\n", st.Deleted)
			fmt.Fprintf(out, "next uid:    %d\n", st.NextUID)
			fmt.Fprintf(out, "tail offset: %d\n", st.Tail)
			fmt.Fprintf(out, "durable seq: %d\n", st.Durable)
			fmt.Fprintf(out, "needs check: %t\n", st.NeedsCheck)
			if err := idx.LastError(); err != nil {
				fmt.Fprintf(out, "last error:  %v\n", err)
			}
			return nil
		})
	},
}

func init() {
	if err := config.RegisterMboxFlag(statusCmd, false); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(statusCmd)
}
