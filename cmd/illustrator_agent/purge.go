package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	purgeServerURL     string
	purgeSubstrings    []string
	purgeCourseID      string
	purgeAll           bool
	purgeUseDisallowed bool
	purgeSessions      bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge cached resolutions and assets on a running server",
	Long: `Purge entries from a running server's resolution and asset caches.
Caches live in the server process, so this command talks to its admin API.`,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().StringVar(&purgeServerURL, "server", "http://localhost:8080", "Base URL of the running server")
	purgeCmd.Flags().StringSliceVar(&purgeSubstrings, "substring", nil, "Purge entries matching a substring (repeatable)")
	purgeCmd.Flags().StringVar(&purgeCourseID, "course", "", "Scope substring purges to one course")
	purgeCmd.Flags().BoolVar(&purgeAll, "all", false, "Purge every cached entry")
	purgeCmd.Flags().BoolVar(&purgeUseDisallowed, "use-disallowed", false, "Purge entries matching all registered ban patterns")
	purgeCmd.Flags().BoolVar(&purgeSessions, "clear-sessions", false, "Also clear all sessions")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(_ *cobra.Command, _ []string) error {
	payload := map[string]any{
		"substrings":     purgeSubstrings,
		"course_id":      purgeCourseID,
		"all":            purgeAll,
		"use_disallowed": purgeUseDisallowed,
		"clear_sessions": purgeSessions,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(purgeServerURL+"/api/admin/purge", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", purgeServerURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("purge failed (%d): %s", resp.StatusCode, string(respBody))
	}

	fmt.Println(string(respBody))
	return nil
}
