package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/LiveVoice/internal/app/orch"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/playback"
)

type FacingRequest struct {
	FacingMode string `json:"facing_mode"`
}

type ToggleRequest struct {
	On *bool `json:"on" binding:"required"`
}

type SpeakRequest struct {
	ID    string `json:"id" binding:"required"`
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type SpeakResponse struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

type ErrorResponse struct {
	Error  string       `json:"error"`
	Status *orch.Status `json:"status,omitempty"`
}

type handlers struct {
	orch *orch.Orchestrator
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Status())
}

// facing reads an optional body; empty means the controller's default.
func facing(c *gin.Context) (domain.FacingMode, bool) {
	var req FacingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
			return "", false
		}
	}
	if req.FacingMode == "" {
		return "", true
	}
	f, err := domain.ParseFacingMode(req.FacingMode)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return "", false
	}
	return f, true
}

func (h *handlers) start(c *gin.Context) {
	f, ok := facing(c)
	if !ok {
		return
	}
	if err := h.orch.Start(c.Request.Context(), f); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.orch.Status())
}

func (h *handlers) stop(c *gin.Context) {
	h.orch.Stop()
	c.JSON(http.StatusOK, h.orch.Status())
}

func (h *handlers) switchDevice(c *gin.Context) {
	f, ok := facing(c)
	if !ok {
		return
	}
	if err := h.orch.SwitchDevice(c.Request.Context(), f); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.orch.Status())
}

func (h *handlers) mic(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid on"})
		return
	}
	h.orch.SetMicMuted(!*req.On)
	c.JSON(http.StatusOK, h.orch.Status())
}

func (h *handlers) video(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid on"})
		return
	}
	if err := h.orch.SetVideoEnabled(*req.On); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.orch.Status())
}

func (h *handlers) ttsToggle(c *gin.Context) {
	var req SpeakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid id"})
		return
	}
	res := h.orch.Speak(c.Request.Context(), playback.Request{ID: req.ID, Text: req.Text, Voice: req.Voice})
	c.JSON(http.StatusOK, SpeakResponse{ID: req.ID, Result: res.String()})
}

func (h *handlers) fail(c *gin.Context, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrNoCamera):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrNoInputDevice), errors.Is(err, domain.ErrPermissionDenied):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusRequestTimeout
	}
	st := h.orch.Status()
	c.JSON(code, ErrorResponse{Error: domain.UserMessage(err), Status: &st})
}
