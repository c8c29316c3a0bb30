package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type rootOpts struct {
	dataDir string
	dbPath  string
	limit   int
}

func (o *rootOpts) indexPath() string {
	if o.dbPath != "" {
		return o.dbPath
	}
	return filepath.Join(o.dataDir, "index", "conquest.sqlite")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect territory conquest sessions",
		Long:          `Reads the sqlite index, session snapshots and event logs written by the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "sqlite index path (default: <data>/index/conquest.sqlite)")
	root.PersistentFlags().IntVar(&opts.limit, "limit", 20, "result limit")

	root.AddCommand(
		leaderboardCmd(opts),
		historyCmd(opts),
		sessionsCmd(opts),
		snapshotsCmd(opts),
		snapshotCmd(),
		eventsCmd(),
		archiveCmd(opts),
		liveCmd(),
	)
	return root
}
