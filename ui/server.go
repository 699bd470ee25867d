// Package ui serves the validation dashboard: the JSON report consumer
// contract plus a small HTML view of it.
package ui

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"

	"taxval/domain/report"
	"taxval/internal"
	"taxval/internal/dashboard"
)

// Server holds the latest generated report and serves it. Reports are
// replaced wholesale; there is no history.
type Server struct {
	router *gin.Engine
	logger *internal.Logger

	mu     sync.RWMutex
	report *report.Report
}

// NewServer creates the dashboard server
func NewServer(mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	s := &Server{
		router: gin.Default(),
		logger: internal.DefaultLogger.WithComponent("Dashboard"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/api/report", s.handleGetReport)
	s.router.POST("/api/report", s.handlePostReport)
	s.router.GET("/", s.handleDashboard)
}

// SetReport replaces the served report
func (s *Server) SetReport(r *report.Report) {
	s.mu.Lock()
	s.report = r
	s.mu.Unlock()
	if r != nil {
		s.logger.Info("serving report %s (year %d, %d variables)",
			r.Metadata.ReportID, r.Metadata.Year, len(r.Variables))
	}
}

// Run starts the HTTP listener
func (s *Server) Run(port string) error {
	s.logger.Info("dashboard listening on :%s", port)
	return s.router.Run(":" + port)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetReport(c *gin.Context) {
	s.mu.RLock()
	r := s.report
	s.mu.RUnlock()

	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report generated yet"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handlePostReport(c *gin.Context) {
	var r report.Report
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid report document: %v", err)})
		return
	}
	s.SetReport(&r)
	c.JSON(http.StatusAccepted, gin.H{"report_id": r.Metadata.ReportID})
}

func (s *Server) handleDashboard(c *gin.Context) {
	s.mu.RLock()
	r := s.report
	s.mu.RUnlock()

	md := "# Policy Validation Dashboard\n\n_No report generated yet._\n"
	if r != nil {
		md = dashboard.RenderMarkdown(r)
	}

	body := markdown.ToHTML([]byte(md), nil, nil)
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Policy Validation Dashboard</title>
<style>body{font-family:sans-serif;max-width:60em;margin:2em auto;padding:0 1em}
table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:0.3em 0.8em}</style>
</head>
<body>%s</body>
</html>`, body)

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
