package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workshop-scheduler/internal/model"
)

type loanerBlockRequest struct {
	Note  string  `json:"note"`
	Until *string `json:"until"`
}

// ListLoanerBlocks answers GET /loaner-blocks[?date=], defaulting to today.
func (h *Handler) ListLoanerBlocks(c *gin.Context) {
	day := c.Query("date")
	if day == "" {
		day = model.DayOf(time.Now().In(h.loc))
	}
	blocks, err := h.store.LoanerBlocksOn(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

// CreateLoanerBlock takes one vehicle out of the loaner pool.
func (h *Handler) CreateLoanerBlock(c *gin.Context) {
	var req loanerBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b := model.LoanerBlock{Note: req.Note, Until: req.Until}
	if err := h.store.CreateLoanerBlock(c.Request.Context(), &b); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// DeleteLoanerBlock returns the vehicle to the pool.
func (h *Handler) DeleteLoanerBlock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteLoanerBlock(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
