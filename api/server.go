package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"rssmerge/config"
	"rssmerge/files"
	"rssmerge/logger"
	"rssmerge/mirror"
	"rssmerge/security"
	"rssmerge/store"
)

// Publisher mirrors a local file to the remote repository. Satisfied by
// *mirror.Uploader; faked in tests.
type Publisher interface {
	Upload(ctx context.Context, localPath, branch, remoteDir string) (*mirror.PublishResult, error)
	FileURL(ctx context.Context, filename, remoteDir string) (string, error)
}

// Server wires the aggregation pipeline behind the HTTP surface.
type Server struct {
	mu  sync.RWMutex
	cfg *config.Config

	gate      *security.Gate
	store     store.SourceStore
	files     *files.Manager
	publisher Publisher
	log       *logger.Logger

	now func() time.Time
}

// NewServer builds a server. publisher may be nil when mirroring is
// disabled.
func NewServer(cfg *config.Config, gate *security.Gate, st store.SourceStore, fm *files.Manager, publisher Publisher, log *logger.Logger) *Server {
	return &Server{
		cfg:       cfg,
		gate:      gate,
		store:     st,
		files:     fm,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// SetConfig swaps the active configuration on reload. The security gate is
// updated along with it.
func (s *Server) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.gate.SetConfig(cfg.Security)
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// NewRouter constructs a Gin engine with registered routes.
func (s *Server) NewRouter() *gin.Engine {
	if !s.config().App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(s.requestLogger(), s.recovery())

	validate := s.gate.ValidateRequest()

	// /generate carries the full chain; /files skips the key check so
	// published URLs stay fetchable by consumers.
	r.GET("/generate", s.secure(security.Chain(
		validate,
		s.gate.APIKey(),
		s.gate.IPAllowlist(),
		s.gate.RateLimit(),
	)), s.handleGenerate)

	r.GET("/files/:name", s.secure(security.Chain(
		validate,
		s.gate.IPAllowlist(),
		s.gate.RateLimit(),
	)), s.handleDownload)

	r.GET("/health", s.secure(validate), s.handleHealth)
	r.GET("/", s.secure(validate), s.handleIndex)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  http.StatusNotFound,
			"msg":   "endpoint not found",
			"error": "the requested endpoint does not exist",
		})
	})

	return r
}
