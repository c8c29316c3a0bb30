package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"conquest.ai/internal/persistence/indexdb"
)

func openIndex(opts *rootOpts) (*indexdb.Reader, error) {
	r, err := indexdb.OpenReader(opts.indexPath())
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", opts.indexPath(), err)
	}
	return r, nil
}

func leaderboardCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Earnings per address across all sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openIndex(opts)
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Leaderboard(cmd.Context(), opts.limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "no earnings recorded")
				return nil
			}
			color.New(color.FgCyan, color.Bold).Fprintln(out, "Leaderboard")
			table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"#", "Address", "Earned (ETH)", "Sessions"}))
			for i, row := range rows {
				_ = table.Append([]string{
					fmt.Sprintf("%d", i+1),
					row.Address,
					fmt.Sprintf("%.4f", row.Earned),
					fmt.Sprintf("%d", row.Sessions),
				})
			}
			return table.Render()
		},
	}
}

func historyCmd(opts *rootOpts) *cobra.Command {
	var x, y int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Applied changes to one territory, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if x < 0 || x > 7 || y < 0 || y > 7 {
				return fmt.Errorf("cell (%d,%d) is outside the 8x8 grid", x, y)
			}
			r, err := openIndex(opts)
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.CellHistory(cmd.Context(), x, y, opts.limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "no history for (%d,%d)\n", x, y)
				return nil
			}
			color.New(color.FgCyan, color.Bold).Fprintf(out, "Territory (%d,%d)\n", x, y)
			table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Time", "Session", "Action", "Actor", "Owner before", "Level", "Price", "Powerup"}))
			for _, row := range rows {
				_ = table.Append([]string{
					formatMs(row.TimeMs),
					row.SessionID,
					row.Action,
					shortAddr(row.Actor),
					shortAddr(row.OwnerBefore),
					fmt.Sprintf("%d", row.Level),
					fmt.Sprintf("%.4f", row.Price),
					row.Powerup,
				})
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "column (0-7)")
	cmd.Flags().IntVar(&y, "y", 0, "row (0-7)")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func sessionsCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "Recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openIndex(opts)
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Sessions(cmd.Context(), opts.limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "no sessions recorded")
				return nil
			}
			table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Session", "Client", "Started", "Ended", "Address", "Last tick"}))
			for _, s := range rows {
				ended := color.YellowString("live")
				if s.EndedAt > 0 {
					ended = formatMs(s.EndedAt)
				}
				_ = table.Append([]string{
					s.SessionID,
					s.ClientName,
					formatMs(s.StartedAt),
					ended,
					shortAddr(s.Address),
					fmt.Sprintf("%d", s.LastTick),
				})
			}
			return table.Render()
		},
	}
}

func snapshotsCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots <session>",
		Short: "Snapshots recorded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openIndex(opts)
			if err != nil {
				return err
			}
			defer r.Close()
			rows, err := r.Snapshots(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "no snapshots for %s\n", args[0])
				return nil
			}
			table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Tick", "Owned", "Address", "Digest", "Path"}))
			for _, s := range rows {
				_ = table.Append([]string{
					fmt.Sprintf("%d", s.Tick),
					fmt.Sprintf("%d", s.Owned),
					shortAddr(s.Address),
					shortDigest(s.Digest),
					s.Path,
				})
			}
			return table.Render()
		},
	}
}

func formatMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func shortAddr(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}

func shortDigest(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12]
}
