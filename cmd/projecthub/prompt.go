package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt [text...]",
	Short: "Sync a prompt to the remote datastore",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrompt,
}

var promptProjectID string

func init() {
	promptCmd.Flags().StringVar(&promptProjectID, "project", "", "Project the prompt belongs to")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")

	body := map[string]string{
		"content":   content,
		"projectId": promptProjectID,
	}
	if _, err := apiPost("/prompts", body); err != nil {
		return err
	}

	fmt.Println("Prompt synced")
	return nil
}
