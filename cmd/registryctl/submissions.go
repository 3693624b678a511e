package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var submissionsCmd = &cobra.Command{
	Use:     "submissions",
	Aliases: []string{"sub"},
	Short:   "Drive the disclosure submission lifecycle",
}

var (
	subViewID     int64
	subName       string
	subValuesFile string
	subReasons    map[string]string
	subPublish    bool
	subStatus     string
	subTargetID   int64
)

var subCreateCmd = &cobra.Command{
	Use:   "create --view <id> [-f values.json]",
	Short: "Create a submission against a table view",
	RunE:  runSubCreate,
}

var subGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Load a submission's full value tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubGet,
}

var subUpdateCmd = &cobra.Command{
	Use:   "update <id> -f values.json",
	Short: "Write the first values of an empty submission",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubUpdate,
}

var subReviseCmd = &cobra.Command{
	Use:   "revise <id> -f values.json",
	Short: "Apply new values, optionally publishing a new revision",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubRevise,
}

var subRollbackCmd = &cobra.Command{
	Use:   "rollback <id> --target <revision-id>",
	Short: "Publish a new revision restoring a historical revision's values",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubRollback,
}

var subHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "List every revision of a submission name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubHistory,
}

var subRestatementsCmd = &cobra.Command{
	Use:   "restatements <id>",
	Short: "List the restatement history of a disclosure",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubRestatements,
}

func init() {
	subCreateCmd.Flags().Int64Var(&subViewID, "view", 0, "Table view id to submit against")
	subCreateCmd.Flags().StringVar(&subName, "name", "", "Submission name (default: generated)")
	subCreateCmd.Flags().StringVarP(&subValuesFile, "file", "f", "", "Path to the values JSON")
	_ = subCreateCmd.MarkFlagRequired("view")

	subUpdateCmd.Flags().StringVarP(&subValuesFile, "file", "f", "", "Path to the values JSON")
	_ = subUpdateCmd.MarkFlagRequired("file")

	subReviseCmd.Flags().StringVarP(&subValuesFile, "file", "f", "", "Path to the new values JSON")
	subReviseCmd.Flags().StringToStringVar(&subReasons, "restate", nil, "field=reason restatement notes")
	subReviseCmd.Flags().BoolVar(&subPublish, "publish", false, "Publish a new revision instead of editing the draft")
	subReviseCmd.Flags().StringVar(&subStatus, "status", "", "Status of the new revision (default: published)")
	_ = subReviseCmd.MarkFlagRequired("file")

	subRollbackCmd.Flags().Int64Var(&subTargetID, "target", 0, "Historical revision id to restore")
	_ = subRollbackCmd.MarkFlagRequired("target")

	submissionsCmd.AddCommand(subCreateCmd)
	submissionsCmd.AddCommand(subGetCmd)
	submissionsCmd.AddCommand(subUpdateCmd)
	submissionsCmd.AddCommand(subReviseCmd)
	submissionsCmd.AddCommand(subRollbackCmd)
	submissionsCmd.AddCommand(subHistoryCmd)
	submissionsCmd.AddCommand(subRestatementsCmd)
}

func readValuesFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values file: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse values file: %w", err)
	}
	return values, nil
}

func runSubCreate(cmd *cobra.Command, args []string) error {
	values, err := readValuesFile(subValuesFile)
	if err != nil {
		return err
	}
	body := map[string]any{
		"table_view_id": subViewID,
		"name":          subName,
		"values":        values,
	}
	var resp map[string]any
	if err := newClient().postJSON("/api/submissions", body, &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		fmt.Printf("created submission %v (id %v)\n", resp["name"], resp["id"])
		return nil
	}
	return printOutput(resp)
}

func runSubGet(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().getJSON("/api/submissions/"+args[0], &resp); err != nil {
		return err
	}
	return printJSON(resp)
}

func runSubUpdate(cmd *cobra.Command, args []string) error {
	values, err := readValuesFile(subValuesFile)
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := newClient().putJSON("/api/submissions/"+args[0], map[string]any{"values": values}, &resp); err != nil {
		return err
	}
	fmt.Printf("updated submission %s\n", args[0])
	return nil
}

func runSubRevise(cmd *cobra.Command, args []string) error {
	values, err := readValuesFile(subValuesFile)
	if err != nil {
		return err
	}
	body := map[string]any{
		"new_values":        values,
		"restatements":      subReasons,
		"create_submission": subPublish,
		"status":            subStatus,
	}
	var resp map[string]any
	if err := newClient().postJSON("/api/submissions/"+args[0]+"/revisions", body, &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		fmt.Printf("submission %v is now revision %v (id %v)\n", resp["name"], resp["revision"], resp["id"])
		return nil
	}
	return printOutput(resp)
}

func runSubRollback(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().postJSON("/api/submissions/"+args[0]+"/rollback",
		map[string]any{"target_id": subTargetID}, &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		fmt.Printf("rolled back: new revision %v (id %v)\n", resp["revision"], resp["id"])
		return nil
	}
	return printOutput(resp)
}

func runSubHistory(cmd *cobra.Command, args []string) error {
	var resp []map[string]any
	if err := newClient().getJSON("/api/submissions/named/"+args[0], &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		rows := make([][]string, 0, len(resp))
		for _, obj := range resp {
			rows = append(rows, []string{
				fmt.Sprintf("%v", obj["id"]),
				fmt.Sprintf("%v", obj["revision"]),
				fmt.Sprintf("%v", obj["status"]),
				fmt.Sprintf("%v", obj["active"]),
			})
		}
		printTable([]string{"ID", "Revision", "Status", "Active"}, rows)
		return nil
	}
	return printOutput(resp)
}

func runSubRestatements(cmd *cobra.Command, args []string) error {
	var resp []map[string]any
	if err := newClient().getJSON("/api/submissions/"+args[0]+"/restatements", &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		rows := make([][]string, 0, len(resp))
		for _, rec := range resp {
			rows = append(rows, []string{
				fmt.Sprintf("%v", rec["attribute_name"]),
				fmt.Sprintf("%v", rec["old_value"]),
				fmt.Sprintf("%v", rec["new_value"]),
				truncate(fmt.Sprintf("%v", rec["reason"]), 60),
			})
		}
		printTable([]string{"Field", "Old", "New", "Reason"}, rows)
		return nil
	}
	return printOutput(resp)
}
