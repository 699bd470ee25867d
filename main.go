package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"taxval/domain/report"
	"taxval/internal/config"
	"taxval/ui"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	server := ui.NewServer(cfg.Server.GinMode)

	if r := loadLatestReport(cfg.Paths.ReportDir); r != nil {
		server.SetReport(r)
	}

	if err := server.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// loadLatestReport preloads the most recently written report, if any. A
// missing or unreadable file just starts the dashboard empty.
func loadLatestReport(dir string) *report.Report {
	path := filepath.Join(dir, "report.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var r report.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		log.Printf("[main] ignoring unparseable report %s: %v", path, err)
		return nil
	}
	return &r
}
