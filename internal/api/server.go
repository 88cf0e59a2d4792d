// Package api serves the published artifacts over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"quantscraper/internal/publish"
)

// Options configure the server.
type Options struct {
	Addr    string
	DataDir string
}

// Server is a read-only view over the data directory.
type Server struct {
	opts   Options
	fs     afero.Fs
	logger zerolog.Logger
}

// ArtifactInfo describes one published file.
type ArtifactInfo struct {
	Name     string    `json:"name"`
	File     string    `json:"file"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// New constructs a Server reading from fs.
func New(opts Options, fs afero.Fs, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	return &Server{opts: opts, fs: fs, logger: logger.With().Str("component", "api").Logger()}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info().Str("addr", s.opts.Addr).Msg("api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/data", s.list)
	router.GET("/data/:name", s.serve)
	return router
}

func (s *Server) list(c *gin.Context) {
	artifacts, err := s.artifacts()
	if err != nil {
		s.logger.Error().Err(err).Msg("list data dir")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "data directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": artifacts})
}

func (s *Server) artifacts() ([]ArtifactInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.opts.DataDir)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, _, ok := splitArtifact(e.Name())
		if !ok {
			continue
		}
		out = append(out, ArtifactInfo{Name: name, File: e.Name(), Size: e.Size(), Modified: e.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

// serve resolves :name either as a file name or as an artifact name without
// extension, in which case json, csv and parquet are tried in turn.
func (s *Server) serve(c *gin.Context) {
	name := c.Param("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.HasSuffix(name, publish.TempSuffix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact name"})
		return
	}

	candidates := []string{name}
	if _, _, ok := splitArtifact(name); !ok {
		candidates = candidates[:0]
		for _, f := range []publish.Format{publish.FormatJSON, publish.FormatCSV, publish.FormatParquet} {
			candidates = append(candidates, name+f.Ext())
		}
	}

	for _, file := range candidates {
		_, format, ok := splitArtifact(file)
		if !ok {
			continue
		}
		body, err := afero.ReadFile(s.fs, filepath.Join(s.opts.DataDir, file))
		if err != nil {
			continue
		}
		c.Data(http.StatusOK, format.ContentType(), body)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
}

func splitArtifact(file string) (string, publish.Format, bool) {
	if strings.HasSuffix(file, publish.TempSuffix) {
		return "", "", false
	}
	ext := filepath.Ext(file)
	if ext == "" {
		return "", "", false
	}
	format, err := publish.ParseFormat(strings.TrimPrefix(ext, "."))
	if err != nil {
		return "", "", false
	}
	return strings.TrimSuffix(file, ext), format, true
}
