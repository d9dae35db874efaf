package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomStatus/internal/app"
	"github.com/dkeye/RoomStatus/internal/core"
	"github.com/dkeye/RoomStatus/internal/view"
)

const (
	msgUnauthorized = "Unauthorized access - invalid API key."
	msgTooMany      = "Too many failed attempts. Try again later."
	msgPageError    = "Error loading the page."
)

type handlers struct {
	app      *app.App
	renderer *view.Renderer
}

// getStatus serves the status page, or its fields as JSON when asked for.
func (h *handlers) getStatus(c *gin.Context) {
	p := h.app.Status.Status().Presentation()

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(http.StatusOK, p)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, p); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("render status page")
		c.String(http.StatusInternalServerError, msgPageError)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *handlers) changeStatus(c *gin.Context) {
	var req core.ChangeRequest
	bindErr := c.ShouldBindBodyWith(&req, binding.JSON)
	var raw []byte
	if v, ok := c.Get(gin.BodyBytesKey); ok {
		raw, _ = v.([]byte)
	}
	// The binding stops after the first JSON value, so trailing bytes are
	// checked separately. Anything invalid is a request without credentials.
	if bindErr != nil || !json.Valid(raw) {
		req = core.ChangeRequest{}
	}

	msg, err := h.app.ChangeStatus(c.ClientIP(), c.GetString("request_id"), req, raw)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": msg})
	case errors.Is(err, core.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": msgUnauthorized})
	case errors.Is(err, core.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": h.app.Status.Encoding().InvalidStatusMessage()})
	case errors.Is(err, app.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgTooMany})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("change status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
