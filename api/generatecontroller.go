package api

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"rssmerge/aggregate"
	"rssmerge/config"
)

// How long one aggregation pass, including DB queries, may take.
const generateTimeout = 30 * time.Second

// GenerateData is the data block of a successful /generate response.
type GenerateData struct {
	Filename    string `json:"filename"`
	RecordCount int    `json:"record_count"`
	RecentDays  int    `json:"recent_days"`
}

// GitHubStatus reports the mirror outcome nested inside the /generate
// response. Publish failure never fails the parent request.
type GitHubStatus struct {
	Uploaded   bool   `json:"uploaded"`
	GitHubURL  string `json:"github_url,omitempty"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Repo       string `json:"repo,omitempty"`
	Branch     string `json:"branch,omitempty"`
	UploadPath string `json:"upload_path,omitempty"`
}

// handleGenerate runs one aggregation pass, persists the snapshot, prunes
// old files, and best-effort mirrors the result to GitHub.
// GET /generate
func (s *Server) handleGenerate(c *gin.Context) {
	cfg := s.config()
	recentDays := cfg.Data.RecentDays

	s.log.Info("generating snapshot", "recent_days", recentDays)

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	result, err := aggregate.Run(ctx, s.store, recentDays, s.now())
	if err != nil {
		s.log.Error("aggregation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"msg":     "failed to generate snapshot",
			"fileUrl": "",
		})
		return
	}

	filename, err := s.files.Save(result.Rows)
	if err != nil {
		s.log.Error("snapshot save failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"msg":     "failed to save snapshot",
			"fileUrl": "",
		})
		return
	}

	if err := s.files.Cleanup(cfg.File.MaxFiles); err != nil {
		// Retention is best-effort; the snapshot itself is already safe.
		s.log.Warn("cleanup failed", "err", err)
	}

	github := s.publish(c.Request.Context(), cfg, filename)

	s.log.Info("snapshot generated",
		"filename", filename,
		"record_count", len(result.Rows),
		"sources", result.SourceCount,
	)

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"msg":     "success",
		"fileUrl": s.files.FileURL(filename),
		"data": GenerateData{
			Filename:    filename,
			RecordCount: len(result.Rows),
			RecentDays:  recentDays,
		},
		"github": github,
	})
}

// publish mirrors the snapshot to GitHub and reports the outcome. All
// failure modes are folded into the status object.
func (s *Server) publish(ctx context.Context, cfg *config.Config, filename string) GitHubStatus {
	gh := cfg.GitHub
	if !gh.Enabled || s.publisher == nil {
		return GitHubStatus{Uploaded: false, Reason: "github upload disabled"}
	}

	status := GitHubStatus{
		Repo:       gh.Repo,
		Branch:     gh.Branch,
		UploadPath: gh.UploadPath,
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	localPath := filepath.Join(s.files.Root(), filename)
	res, err := s.publisher.Upload(ctx, localPath, gh.Branch, gh.UploadPath)
	if err != nil {
		s.log.Error("github upload failed", "err", err, "repo", gh.Repo)
		status.Error = err.Error()
		return status
	}

	status.Uploaded = true
	status.GitHubURL = res.HTMLURL
	return status
}
