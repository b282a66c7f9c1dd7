package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Lifecycle is what the pause/resume endpoints drive.
type Lifecycle interface {
	Pause()
	Resume()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // status page is served on the local network only
	},
}

// Server exposes the board over HTTP and a websocket.
type Server struct {
	board     *Board
	lifecycle Lifecycle
	log       logrus.FieldLogger
	router    *gin.Engine
}

func NewServer(board *Board, lc Lifecycle, log logrus.FieldLogger) *Server {
	s := &Server{board: board, lifecycle: lc, log: log}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	api.GET("/status", s.getStatus)
	api.GET("/message", s.getMessage)
	api.POST("/lifecycle/pause", s.pause)
	api.POST("/lifecycle/resume", s.resume)
	router.GET("/ws", s.streamStatus)

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the given port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Infof("web server listening on %s", srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	s.log.Info("web server stopped")
	return nil
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.State())
}

func (s *Server) getMessage(c *gin.Context) {
	st := s.board.State()
	if st.LastMessage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no message sent yet"})
		return
	}
	c.JSON(http.StatusOK, st.LastMessage)
}

func (s *Server) pause(c *gin.Context) {
	s.lifecycle.Pause()
	c.JSON(http.StatusOK, s.board.State())
}

func (s *Server) resume(c *gin.Context) {
	s.lifecycle.Resume()
	c.JSON(http.StatusOK, s.board.State())
}

// streamStatus sends the current state on connect and every change after
// it until the client goes away.
func (s *Server) streamStatus(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("status: websocket upgrade error")
		return
	}
	defer conn.Close()

	updates, cancel := s.board.Subscribe()
	defer cancel()

	// The client never sends anything we act on; reading detects close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.WithError(err).Debug("status: websocket closed")
				}
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.board.State()); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				s.log.WithError(err).Debug("status: websocket write error")
				return
			}
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("http request")
	}
}
