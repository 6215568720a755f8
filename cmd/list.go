package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/filter"
	"github.com/dhcgn/mbox-index/index"
	"github.com/dhcgn/mbox-index/model"
	"github.com/dhcgn/mbox-index/runner"
)

var (
	listInclude []string
	listExclude []string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the indexed messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filter.New(filter.Options{Include: listInclude, Exclude: listExclude})
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}

		return withRunner(cmd, func(r *runner.Runner) error {
			idx := r.Index()
			if err := idx.Lock(index.LockShared); err != nil {
				return fmt.Errorf("lock index: %w", err)
			}
			defer idx.Unlock(index.LockShared)

			records, err := idx.Records()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "UID\tDATE\tOFFSET\tSIZE\tFLAGS\tFROM\tSUBJECT")
			for _, rec := range records {
				fields, err := idx.Fields(rec)
				if err != nil {
					return err
				}
				if !f.Allows(fields) {
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\t%s\n",
					rec.UID,
					rec.InternalDate.UTC().Format(time.RFC3339),
					rec.Location,
					rec.Size,
					formatFlags(rec.Flags),
					fields[model.FieldFrom],
					fields[model.FieldSubject],
				)
			}
			return w.Flush()
		})
	},
}

func init() {
	listCmd.Flags().StringArrayVar(&listInclude, "include", nil, "Only list records whose cached field matches (field:regex or regex); mutually exclusive with --exclude")
	listCmd.Flags().StringArrayVar(&listExclude, "exclude", nil, "Skip records whose cached field matches (field:regex or regex); mutually exclusive with --include")
	if err := config.RegisterMboxFlag(listCmd, false); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(listCmd)
}

func formatFlags(flags model.Flags) string {
	var names []string
	for _, f := range flags.IMAPFlags() {
		names = append(names, string(f))
	}
	if flags.Has(model.FlagRecent) {
		names = append(names, `\Recent`)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, " ")
}
