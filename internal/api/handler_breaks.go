package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type startBreakRequest struct {
	PersonID                uint  `json:"personId" binding:"required"`
	LinkedNextAppointmentID *uint `json:"linkedNextAppointmentId"`
}

type endBreakRequest struct {
	PersonID uint `json:"personId" binding:"required"`
}

// GetActiveBreaks lists the open breaks with their remaining time.
func (h *Handler) GetActiveBreaks(c *gin.Context) {
	active, err := h.tracker.Active(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

// StartBreak opens a break for a person.
func (h *Handler) StartBreak(c *gin.Context) {
	var req startBreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.tracker.Start(c.Request.Context(), req.PersonID, req.LinkedNextAppointmentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// EndBreak closes a person's break. Ending twice answers 200 with alreadyClosed.
func (h *Handler) EndBreak(c *gin.Context) {
	var req endBreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.tracker.End(c.Request.Context(), req.PersonID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
