package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"projecthub/internal/archive"
	"projecthub/internal/config"
	"projecthub/internal/controlplane"
	"projecthub/internal/installer"
	"projecthub/internal/pipeline"
	"projecthub/internal/preview"
	"projecthub/internal/promptsync"
	"projecthub/internal/store"
)

var (
	listenAddr   string
	dbPath       string
	catalogURL   string
	projectsRoot string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Project Hub daemon",
	Long:  `Starts the Project Hub daemon which downloads, installs, and previews projects on behalf of the clients.`,
	RunE:  runDaemon,
}

func init() {
	cfg := config.FromEnv()

	daemonCmd.Flags().StringVar(&listenAddr, "listen", cfg.ListenAddr, "Listen address for the API server")
	daemonCmd.Flags().StringVar(&dbPath, "db", cfg.DBPath, "Path to SQLite database")
	daemonCmd.Flags().StringVar(&catalogURL, "catalog", cfg.CatalogURL, "Base URL of the remote archive store")
	daemonCmd.Flags().StringVar(&projectsRoot, "projects-root", cfg.ProjectsRoot, "Directory extracted projects live under")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Project Hub daemon...")

	cfg := config.FromEnv()
	if catalogURL == "" {
		return fmt.Errorf("catalog URL required (set --catalog or PROJECTHUB_CATALOG_URL)")
	}
	if len(cfg.InstallCommand) == 0 || len(cfg.PreviewCommand) == 0 {
		return fmt.Errorf("install and preview commands must not be empty")
	}

	// Initialize store
	s, err := store.New(dbPath)
	if err != nil {
		return err
	}

	// Initialize components. The log sink routes subprocess and pipeline
	// output into the service's ring buffer; the service does not exist
	// yet, so bind it through a pointer.
	var service *controlplane.Service
	sink := func(line string) {
		if service != nil {
			service.Log(line)
		}
		log.Println(line)
	}

	client := archive.NewClient(catalogURL)

	runner := installer.New(cfg.InstallCommand[0], cfg.InstallCommand[1:]...)
	hostname, _ := os.Hostname()
	holderID := fmt.Sprintf("daemon@%s", hostname)
	pipe := pipeline.New(client, runner, s, projectsRoot, holderID, cfg.InstallTimeout, sink)

	previewMgr := preview.NewManager(cfg.PreviewCommand[0], cfg.PreviewCommand[1:], cfg.PreviewPort, sink)

	prompts := promptsync.NewClient(cfg.SyncURL, cfg.SyncKey)

	// Create service and server
	service = controlplane.NewService(s, client, pipe, previewMgr, prompts)
	server := controlplane.NewServer(service, s, listenAddr)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Stopping preview process...")
	previewMgr.Stop()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
