package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sxyafiq/seqgen"
	"github.com/sxyafiq/seqgen/internal/config"
	"go.uber.org/zap"
)

// Server exposes one generator over HTTP.
type Server struct {
	config atomic.Value

	logger    *zap.Logger
	gen       *seqgen.Generator
	startTime time.Time

	httpServer   *httpServer
	httpListener net.Listener

	exitOnce sync.Once
}

func (s *Server) getCfg() *config.Config {
	return s.config.Load().(*config.Config)
}

func (s *Server) swapCfg(cfg *config.Config) {
	s.config.Store(cfg)
}

// NewServer binds the HTTP listener. gen must not be shared with another
// server on a different node ID.
func NewServer(cfg *config.Config, gen *seqgen.Generator, logger *zap.Logger) (*Server, error) {
	if gen == nil {
		return nil, errors.New("nil generator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:    logger,
		gen:       gen,
		startTime: time.Now(),
	}
	s.swapCfg(cfg)

	var err error
	s.httpListener, err = net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "listen (%s)", cfg.HTTPAddress)
	}
	s.httpServer = newHTTPServer(s)

	return s, nil
}

// Addr is the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.httpListener.Addr()
}

// Handler returns the HTTP handler without the listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.router
}

// Main serves until Exit is called. It returns nil after a clean shutdown.
func (s *Server) Main() error {
	s.logger.Info("HTTPServer listening",
		zap.Stringer("addr", s.Addr()),
		zap.Int64("node_id", s.gen.NodeID()))

	err := s.httpServer.srv.Serve(s.httpListener)
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error("HTTPServer closed unexpectedly", zap.Error(err))
		return err
	}
	s.logger.Info("HTTPServer closing", zap.Stringer("addr", s.Addr()))
	return nil
}

// Exit shuts the HTTP server down, waiting up to the configured shutdown
// timeout for in-flight requests.
func (s *Server) Exit() {
	s.exitOnce.Do(func() {
		ctx := context.Background()
		if timeout := s.getCfg().ShutdownTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := s.httpServer.srv.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTPServer shutdown", zap.Error(err))
		}
		s.httpListener.Close()
	})
}
