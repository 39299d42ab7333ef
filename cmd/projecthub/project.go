package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"projecthub/internal/status"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog projects",
	RunE:  runProjectList,
}

var projectInstallCmd = &cobra.Command{
	Use:   "install [project-id]",
	Short: "Download a project archive and install its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectInstall,
}

var projectRunCmd = &cobra.Command{
	Use:   "run [project-id]",
	Short: "Launch the local preview for a ready project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRun,
}

var projectStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running preview",
	RunE:  runProjectStop,
}

var projectStatusCmd = &cobra.Command{
	Use:   "status [project-id...]",
	Short: "Check whether projects are ready to run",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProjectStatus,
}

var projectFilesCmd = &cobra.Command{
	Use:   "files [project-id]",
	Short: "List the files inside a project archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectFiles,
}

var projectHistoryCmd = &cobra.Command{
	Use:   "history [project-id]",
	Short: "Show recorded acquisition runs for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectHistory,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon log lines",
	RunE:  runLogs,
}

var (
	installFile string
)

func init() {
	projectCmd.AddCommand(projectListCmd, projectInstallCmd, projectRunCmd, projectStopCmd, projectStatusCmd, projectFilesCmd, projectHistoryCmd)

	projectInstallCmd.Flags().StringVar(&installFile, "file", "", "Archive file name (defaults to the project's first published file)")
}

func runProjectList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects")
	if err != nil {
		return err
	}

	var projects []struct {
		ID         string   `json:"id"`
		Files      []string `json:"files"`
		ReadyToRun bool     `json:"readyToRun"`
	}
	if err := json.Unmarshal(resp, &projects); err != nil {
		return err
	}

	if len(projects) == 0 {
		fmt.Println("No projects in the catalog")
		return nil
	}

	readyLabel := color.New(color.FgGreen).Sprint("ready")
	notReadyLabel := color.New(color.FgYellow).Sprint("not ready")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tFILES")
	for _, p := range projects {
		label := notReadyLabel
		if p.ReadyToRun {
			label = readyLabel
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, label, len(p.Files))
	}
	w.Flush()
	return nil
}

func runProjectInstall(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	body := map[string]string{
		"projectId": projectID,
	}
	if installFile != "" {
		body["fileName"] = installFile
	}

	fmt.Printf("Installing %s (this runs npm install and can take a while)...\n", projectID)
	resp, err := apiPostLong("/download-zip", body)
	if err != nil {
		return err
	}

	var result struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	color.Green("Installed %s at %s", projectID, result.Path)
	return nil
}

func runProjectRun(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/run-project", map[string]string{"projectId": args[0]})
	if err != nil {
		return err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	color.Green("Preview running at %s", result.URL)
	return nil
}

func runProjectStop(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/stop-project", map[string]string{}); err != nil {
		return err
	}
	fmt.Println("Preview stopped")
	return nil
}

func runProjectStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracker := status.NewTracker(apiAddr)
	results := tracker.BatchStatus(ctx, args)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREADY")
	for _, id := range args {
		label := color.New(color.FgYellow).Sprint("no")
		if results[id] {
			label = color.New(color.FgGreen).Sprint("yes")
		}
		fmt.Fprintf(w, "%s\t%s\n", id, label)
	}
	w.Flush()
	return nil
}

func runProjectFiles(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/files")
	if err != nil {
		return err
	}

	var files map[string]struct {
		Path     string `json:"path"`
		IsBinary bool   `json:"isBinary"`
	}
	if err := json.Unmarshal(resp, &files); err != nil {
		return err
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if files[p].IsBinary {
			fmt.Printf("%s (binary)\n", p)
		} else {
			fmt.Println(p)
		}
	}
	return nil
}

func runProjectHistory(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/history")
	if err != nil {
		return err
	}

	var runs []struct {
		ID        string `json:"id"`
		Stage     string `json:"stage"`
		Error     string `json:"error"`
		ExitCode  int    `json:"exit_code"`
		StartedAt string `json:"started_at"`
	}
	if err := json.Unmarshal(resp, &runs); err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	for i, run := range runs {
		fmt.Printf("=== Run %d ===\n", i+1)
		fmt.Printf("ID:      %s\n", truncateID(run.ID))
		fmt.Printf("Stage:   %s\n", run.Stage)
		fmt.Printf("Started: %s\n", run.StartedAt)
		if run.Error != "" {
			fmt.Printf("Error:   %s (exit %d)\n", run.Error, run.ExitCode)
		}
		fmt.Println()
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/logs")
	if err != nil {
		return err
	}

	var body struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(resp, &body); err != nil {
		return err
	}

	for _, line := range body.Lines {
		fmt.Println(line)
	}
	return nil
}

// --- Helpers ---

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
