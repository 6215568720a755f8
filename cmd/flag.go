package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-index/config"
	"github.com/dhcgn/mbox-index/index"
	"github.com/dhcgn/mbox-index/runner"
)

var flagCmd = &cobra.Command{
	Use:   "flag <uid> <+|-|=> [flag...]",
	Short: "Add, remove or replace the flags of an indexed message",
	Long: `Changes the flags stored for one message. Flags are IMAP system flags
(\Seen, \Answered, \Flagged, \Deleted, \Draft); the backslash may be omitted.
Use "=" without flags to clear all of them.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, store, err := parseStoreFlags(args)
		if err != nil {
			return err
		}

		return withRunner(cmd, func(r *runner.Runner) error {
			idx := r.Index()
			if err := idx.Lock(index.LockExclusive); err != nil {
				return fmt.Errorf("lock index: %w", err)
			}
			defer idx.Unlock(index.LockExclusive)

			rec, err := idx.StoreFlags(uid, store)
			if err != nil {
				return fmt.Errorf("store flags for uid %d: %w", uid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uid %d: %s\n", rec.UID, formatFlags(rec.Flags))
			return nil
		})
	},
}

func init() {
	if err := config.RegisterMboxFlag(flagCmd, false); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(flagCmd)
}

var systemFlags = map[string]imap.Flag{
	"seen":     imap.FlagSeen,
	"answered": imap.FlagAnswered,
	"flagged":  imap.FlagFlagged,
	"deleted":  imap.FlagDeleted,
	"draft":    imap.FlagDraft,
}

func parseStoreFlags(args []string) (uint32, imap.StoreFlags, error) {
	uid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || uid == 0 {
		return 0, imap.StoreFlags{}, fmt.Errorf("invalid uid %q", args[0])
	}

	var store imap.StoreFlags
	switch args[1] {
	case "+":
		store.Op = imap.StoreFlagsAdd
	case "-":
		store.Op = imap.StoreFlagsDel
	case "=":
		store.Op = imap.StoreFlagsSet
	default:
		return 0, imap.StoreFlags{}, fmt.Errorf("invalid operation %q: want +, - or =", args[1])
	}

	for _, name := range args[2:] {
		flag, ok := systemFlags[strings.ToLower(strings.TrimPrefix(name, `\`))]
		if !ok {
			return 0, imap.StoreFlags{}, fmt.Errorf("unsupported flag %q", name)
		}
		store.Flags = append(store.Flags, flag)
	}
	if store.Op != imap.StoreFlagsSet && len(store.Flags) == 0 {
		return 0, imap.StoreFlags{}, fmt.Errorf("no flags given")
	}
	return uint32(uid), store, nil
}
