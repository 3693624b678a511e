package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	userFlag  int64
)

var rootCmd = &cobra.Command{
	Use:   "registryctl",
	Short: "CLI for the form registry server",
	Long: `registryctl manages dynamic form schemas and disclosure submissions.

Form commands build and inspect schemas; submission commands drive the
disclosure lifecycle (create, revise, roll back, restate).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().Int64VarP(&userFlag, "user", "u", 0, "Acting user id (default: from REGISTRY_USER_ID env)")

	rootCmd.AddCommand(formsCmd)
	rootCmd.AddCommand(viewsCmd)
	rootCmd.AddCommand(submissionsCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedUser returns the effective acting user id.
// Priority: --user flag > REGISTRY_USER_ID env var > 0.
func resolvedUser() int64 {
	if userFlag != 0 {
		return userFlag
	}
	if v := os.Getenv("REGISTRY_USER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return 0
}
