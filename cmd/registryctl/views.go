package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Manage table view revisions",
}

var viewsReviseCmd = &cobra.Command{
	Use:   "revise <view-name>",
	Short: "Create the next revision of a named view",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewsRevise,
}

var viewsActivateCmd = &cobra.Command{
	Use:   "activate <view-name> <revision>",
	Short: "Make one revision of a view the active one",
	Args:  cobra.ExactArgs(2),
	RunE:  runViewsActivate,
}

var viewsCopyCmd = &cobra.Command{
	Use:   "copy <view-id>",
	Short: "Duplicate a view as a new starting point",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewsCopy,
}

func init() {
	viewsCmd.AddCommand(viewsReviseCmd)
	viewsCmd.AddCommand(viewsActivateCmd)
	viewsCmd.AddCommand(viewsCopyCmd)
}

func runViewsRevise(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().postJSON("/api/views/"+args[0]+"/revisions", map[string]any{}, &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		fmt.Printf("created revision %v of view %v (id %v)\n", resp["revision"], resp["name"], resp["id"])
		return nil
	}
	return printOutput(resp)
}

func runViewsActivate(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/api/views/%s/revisions/%s/activate", args[0], args[1])
	var resp map[string]any
	if err := newClient().putJSON(path, map[string]any{}, &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		fmt.Printf("view %s revision %s is now active\n", args[0], args[1])
		return nil
	}
	return printOutput(resp)
}

func runViewsCopy(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().postJSON("/api/views/"+args[0]+"/copy", map[string]any{}, &resp); err != nil {
		return err
	}
	if outputFmt == "table" {
		fmt.Printf("copied view %v (id %v)\n", resp["name"], resp["id"])
		return nil
	}
	return printOutput(resp)
}
