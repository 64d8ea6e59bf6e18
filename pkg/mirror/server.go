// Package mirror exposes the inference call over HTTP. Every request gets
// a fresh two message context; nothing is shared with the terminal
// session.
package mirror

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Settings struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

type Request struct {
	Message *string `json:"message"`
}

type Response struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
}

type Server struct {
	echo     *echo.Echo
	sender   inference.Sender
	settings Settings
}

func New(sender inference.Sender, s Settings) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Str("path", c.Path()).Bytes("stack", stack).Msg("mirror handler panicked")
			return err
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("mirror request")
			return nil
		},
	}))

	srv := &Server{echo: e, sender: sender, settings: s}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/get_response_http", srv.getResponse)
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) getResponse(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil || req.Message == nil {
		return c.JSON(http.StatusBadRequest, Response{
			Status:  "error",
			Message: "Invalid request, 'message' field missing.",
		})
	}
	if strings.TrimSpace(*req.Message) == "" {
		return c.JSON(http.StatusBadRequest, Response{
			Status:  "error",
			Message: "Invalid request, 'message' is empty.",
		})
	}

	history := []conversation.Message{
		conversation.NewSystemMessage(s.settings.SystemPrompt),
		conversation.NewUserMessage(*req.Message),
	}
	res := s.sender.Send(c.Request().Context(), history, s.settings.Temperature, s.settings.MaxTokens)
	if !res.OK() {
		log.Error().Str("outcome", res.Outcome.String()).Str("detail", res.Detail).Msg("mirror inference failed")
		return c.JSON(http.StatusInternalServerError, Response{Status: "error", Message: res.DisplayText()})
	}
	return c.JSON(http.StatusOK, Response{Status: "success", Response: res.Text})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP mirror listening")
		errCh <- s.echo.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "mirror server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "mirror shutdown")
		}
		return nil
	}
}
