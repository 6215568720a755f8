package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/index"
	"github.com/dhcgn/mbox-index/mbox"
	"github.com/dhcgn/mbox-index/runner"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Cross-check the index against the mailbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(r *runner.Runner) error {
			idx := r.Index()
			if err := idx.Lock(index.LockShared); err != nil {
				return fmt.Errorf("lock index: %w", err)
			}
			defer idx.Unlock(index.LockShared)

			report, err := mbox.Verify(r.Config().MboxPath, idx, r.Logger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mailbox messages: %d\n", report.MailboxMessages)
			fmt.Fprintf(out, "indexed messages: %d\n", report.IndexedMessages)
			for _, m := range report.Mismatches {
				fmt.Fprintf(out, "  uid %d at %d: %s\n", m.UID, m.Location, m.Reason)
			}
			if !report.OK() {
				return fmt.Errorf("index does not match %s", r.Config().MboxPath)
			}
			fmt.Fprintln(out, "ok")
			return nil
		})
	},
}

func init() {
	if err := config.RegisterMboxFlag(verifyCmd, true); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(verifyCmd)
}
