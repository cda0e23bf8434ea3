// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes lookups over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nearbyhouses/nearby/lookup"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Lookuper runs a single lookup. *lookup.Service implements it.
type Lookuper interface {
	Lookup(ctx context.Context, address string, radiusMeters float64) lookup.Response
}

// Options configures a Server.
type Options struct {
	DefaultRadius     float64
	MaxRadius         float64
	CORSOrigins       []string
	StaticDir         string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Version           string
	Logger            *slog.Logger
}

type Server struct {
	lookups Lookuper
	opts    Options
	logger  *slog.Logger
}

func NewServer(lookups Lookuper, opts Options) *Server {
	if opts.DefaultRadius <= 0 {
		opts.DefaultRadius = 100
	}

	if opts.MaxRadius <= 0 {
		opts.MaxRadius = 1000
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Server{
		lookups: lookups,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger), gin.CustomRecovery(s.recovered))

	if c, ok := corsConfig(s.opts.CORSOrigins); ok {
		r.Use(cors.New(c))
	}

	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(templatesFS, "templates/*.html")))

	if s.opts.StaticDir != "" {
		r.Static("/static", s.opts.StaticDir)
	}

	r.GET("/", s.homeView)
	r.GET("/healthz", s.healthz)
	r.GET("/api/nearby-houses", s.nearbyHouses)

	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}

	return nil
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}

	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}

	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}

	return c, true
}

func (s *Server) recovered(ctx *gin.Context, err any) {
	s.logger.ErrorContext(ctx.Request.Context(), "handler panicked", slog.Any("panic", err))
	ctx.AbortWithStatusJSON(http.StatusInternalServerError, lookup.Failed(lookup.KindInternal, lookup.ErrMsgInternal))
}

func (s *Server) homeView(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "index.html", gin.H{
		"DefaultRadius": s.opts.DefaultRadius,
		"MaxRadius":     s.opts.MaxRadius,
		"Version":       s.opts.Version,
	})
}

func (s *Server) healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) nearbyHouses(ctx *gin.Context) {
	address := ctx.Query("address")

	radius, msg := s.parseRadius(ctx.Query("radius"))
	if msg != "" {
		ctx.JSON(http.StatusBadRequest, lookup.Failed(lookup.KindValidation, msg))

		return
	}

	resp := s.lookups.Lookup(ctx.Request.Context(), address, radius)
	ctx.JSON(StatusFor(resp.Kind), resp)
}

// parseRadius returns the radius in meters or a client error message.
func (s *Server) parseRadius(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.opts.DefaultRadius, ""
	}

	radius, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(radius) {
		return 0, fmt.Sprintf("invalid radius %q", raw)
	}

	if radius <= 0 || radius > s.opts.MaxRadius {
		return 0, fmt.Sprintf("radius must be greater than 0 and at most %g meters", s.opts.MaxRadius)
	}

	return radius, ""
}

// StatusFor maps a lookup outcome to the HTTP status of the response.
func StatusFor(kind lookup.Kind) int {
	switch kind {
	case lookup.KindNone:
		return http.StatusOK
	case lookup.KindValidation:
		return http.StatusBadRequest
	case lookup.KindNotFound:
		return http.StatusNotFound
	case lookup.KindUpstream:
		return http.StatusBadGateway
	case lookup.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
