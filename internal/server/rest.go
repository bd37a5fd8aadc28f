// ABOUTME: REST control API for the deck
// ABOUTME: Maps /api/deck routes onto the control dispatcher, guarded by JWT when a secret is set
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/control"
	"github.com/Sendspin/sendspin-deck/internal/protocol"
	"github.com/Sendspin/sendspin-deck/internal/version"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/rs/zerolog"
)

func (s *Server) registerREST(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/health", healthHandler)
	api.GET("/version", versionHandler)

	deckGroup := api.Group("/deck")
	if s.config.Secret != "" {
		deckGroup.Use(middleware.JWT([]byte(s.config.Secret)))
	}
	{
		deckGroup.GET("/status", s.queryHandler(protocol.TypeGetStatus))
		deckGroup.GET("/state", s.queryHandler(protocol.TypeGetState))
		deckGroup.GET("/position", s.queryHandler(protocol.TypeGetPosition))
		deckGroup.GET("/duration", s.queryHandler(protocol.TypeGetDuration))
		deckGroup.GET("/filepath", s.queryHandler(protocol.TypeGetFilepath))
		deckGroup.GET("/error", s.queryHandler(protocol.TypeGetError))

		deckGroup.POST("/play", s.commandHandler(protocol.TypePlay))
		deckGroup.POST("/pause", s.commandHandler(protocol.TypePause))
		deckGroup.POST("/stop", s.commandHandler(protocol.TypeStop))
		deckGroup.POST("/eject", s.commandHandler(protocol.TypeEject))
		deckGroup.POST("/quit", s.commandHandler(protocol.TypeQuit))
		deckGroup.POST("/cue", s.commandHandler(protocol.TypeCue, "cuepoint"))
		deckGroup.POST("/set_cuepoint", s.commandHandler(protocol.TypeSetCuepoint, "cuepoint"))
		deckGroup.POST("/load", s.commandHandler(protocol.TypeLoad, "path"))
	}
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func versionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, protocol.VersionReply{Product: version.Product, Version: version.Version})
}

func (s *Server) queryHandler(typ string) echo.HandlerFunc {
	return func(c echo.Context) error {
		reply := s.dispatcher.Handle(protocol.Message{Type: typ})
		return c.JSON(http.StatusOK, reply.Payload)
	}
}

func (s *Server) commandHandler(typ string, fields ...string) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, err := requestPayload(c, fields)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		}

		ack, err := s.dispatcher.Execute(typ, payload)
		switch {
		case errors.Is(err, control.ErrMalformed):
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		case err != nil:
			return c.JSON(http.StatusConflict, echo.Map{"message": err.Error(), "state": ack.State})
		}
		return c.JSON(http.StatusOK, ack)
	}
}

// requestPayload reads command arguments from a JSON body or from form and
// query values. Numeric fields are parsed so they decode like JSON numbers.
func requestPayload(c echo.Context, fields []string) (map[string]interface{}, error) {
	payload := make(map[string]interface{})

	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %v", control.ErrMalformed, err)
		}
		return payload, nil
	}

	for _, field := range fields {
		v := c.FormValue(field)
		if v == "" {
			continue
		}
		if field == "cuepoint" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: cuepoint %q", control.ErrMalformed, v)
			}
			payload[field] = f
			continue
		}
		payload[field] = v
	}
	return payload, nil
}

// requestLogger logs every request through zerolog at debug level
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			log.Debug().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("Request")
			return nil
		}
	}
}
