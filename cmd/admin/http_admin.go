package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// liveCmd talks to the loopback admin endpoints of a running server.
func liveCmd() *cobra.Command {
	var baseURL string
	live := &cobra.Command{
		Use:   "live",
		Short: "Query a running server's admin endpoints",
	}
	live.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")

	live.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Server stats and live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminCall(cmd.OutOrStdout(), http.MethodGet, baseURL, "/admin/v1/state")
		},
	})
	live.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "Live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminCall(cmd.OutOrStdout(), http.MethodGet, baseURL, "/admin/v1/sessions")
		},
	})
	live.AddCommand(&cobra.Command{
		Use:   "snapshot <session>",
		Short: "Ask a live session to write a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return adminCall(cmd.OutOrStdout(), http.MethodPost, baseURL, "/admin/v1/snapshot?session="+url.QueryEscape(args[0]))
		},
	})
	return live
}

func adminCall(out io.Writer, method, baseURL, path string) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var buf bytes.Buffer
	if json.Indent(&buf, bytes.TrimSpace(b), "", "  ") == nil {
		b = buf.Bytes()
	}
	fmt.Fprintln(out, string(bytes.TrimSpace(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
