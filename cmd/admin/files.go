package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"conquest.ai/internal/persistence/archive"
	persistlog "conquest.ai/internal/persistence/log"
	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/sim/territory"
)

func snapshotCmd() *cobra.Command {
	var headerOnly bool
	cmd := &cobra.Command{
		Use:   "snapshot <path>",
		Short: "Print the grid stored in a .snap.zst",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if headerOnly {
				h, err := snapshot.ReadHeader(args[0])
				if err != nil {
					return err
				}
				return writeJSON(out, h)
			}
			snap, err := snapshot.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			printSnapshot(out, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header", false, "print only the JSON header")
	return cmd
}

func printSnapshot(out io.Writer, snap snapshot.SnapshotV1) {
	color.New(color.FgCyan, color.Bold).Fprintf(out, "Session %s tick %d\n", snap.Header.SessionID, snap.Header.Tick)
	fmt.Fprintf(out, "address=%s balance=%.4f owned=%d digest=%s\n\n",
		orDash(snap.Address), snap.Balance, snap.Owned(), shortDigest(snap.Header.Digest))

	cells := make(map[[2]int]snapshot.TerritoryV1, len(snap.Territories))
	for _, t := range snap.Territories {
		cells[[2]int{t.X, t.Y}] = t
	}
	fmt.Fprint(out, "   ")
	for x := 0; x < territory.Size; x++ {
		fmt.Fprintf(out, " %d ", x)
	}
	fmt.Fprintln(out)
	for y := 0; y < territory.Size; y++ {
		fmt.Fprintf(out, "%d  ", y)
		for x := 0; x < territory.Size; x++ {
			t := cells[[2]int{x, y}]
			switch {
			case t.Owner == "":
				fmt.Fprint(out, " . ")
			case t.Owner == snap.Address:
				cellColor(t.Color).Fprintf(out, "[%d]", t.Level)
			default:
				cellColor(t.Color).Fprintf(out, " %d ", t.Level)
			}
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)

	table := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Cell", "Owner", "Color", "Level", "Price", "Yield", "Powerups"}))
	for _, t := range snap.Territories {
		if t.Owner == "" {
			continue
		}
		_ = table.Append([]string{
			fmt.Sprintf("(%d,%d)", t.X, t.Y),
			shortAddr(t.Owner),
			t.Color,
			fmt.Sprintf("%d", t.Level),
			fmt.Sprintf("%.4f", t.Price),
			fmt.Sprintf("%.6f", t.Yield),
			strings.Join(t.Powerups, ","),
		})
	}
	_ = table.Render()

	if len(snap.Leaderboard) > 0 {
		fmt.Fprintln(out, "\nLeaderboard:")
		for i, l := range snap.Leaderboard {
			fmt.Fprintf(out, "  %d. %s %.4f ETH\n", i+1, shortAddr(l.Address), l.Earned)
		}
	}
}

func cellColor(name string) *color.Color {
	switch name {
	case "Red":
		return color.New(color.FgRed)
	case "Blue":
		return color.New(color.FgBlue)
	case "Green":
		return color.New(color.FgGreen)
	case "Yellow":
		return color.New(color.FgYellow)
	case "Purple":
		return color.New(color.FgMagenta)
	case "Orange":
		return color.New(color.FgHiRed)
	default:
		return color.New(color.FgWhite)
	}
}

func eventsCmd() *cobra.Command {
	var filter string
	var pretty bool
	cmd := &cobra.Command{
		Use:   "events <file.jsonl.zst>",
		Short: "Dump an event or audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			n := 0
			err := persistlog.ReadJSONL(args[0], func(line json.RawMessage) error {
				if filter != "" && !bytes.Contains(line, []byte(filter)) {
					return nil
				}
				n++
				if pretty {
					var buf bytes.Buffer
					if err := json.Indent(&buf, line, "", "  "); err != nil {
						return err
					}
					_, err := fmt.Fprintln(out, buf.String())
					return err
				}
				_, err := fmt.Fprintln(out, string(line))
				return err
			})
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "%d entries\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "grep", "", "only print lines containing this text")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON")
	return cmd
}

func archiveCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <session>",
		Short: "Show the archived summary of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := archive.ReadMeta(opts.dataDir, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), meta)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
