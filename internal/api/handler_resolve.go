package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/schedule"
)

type resolveWindowRequest struct {
	Start          string `json:"start" binding:"required"`
	NominalMinutes int    `json:"nominalMinutes"`
	PersonID       *uint  `json:"personId"`
}

type resolveWindowResponse struct {
	schedule.Window
	FactorError string `json:"factorError,omitempty"`
}

// ResolveWindow previews the window of a piece of work without storing it.
func (h *Handler) ResolveWindow(c *gin.Context) {
	var req resolveWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	lookup, err := h.store.ProfileLookup(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	prof, err := lookup(req.PersonID)
	if err != nil {
		writeError(c, err)
		return
	}
	w, err := schedule.ResolveWindow(start, req.NominalMinutes, prof)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := resolveWindowResponse{Window: w}
	if w.FactorErr != nil {
		resp.FactorError = w.FactorErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}
