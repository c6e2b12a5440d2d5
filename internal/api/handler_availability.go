package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/schedule"
)

// GetLoanerAvailability answers GET /availability/loaners?date=YYYY-MM-DD.
func (h *Handler) GetLoanerAvailability(c *gin.Context) {
	res, err := h.checker.Loaners(c.Request.Context(), c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetTechnicianConflict answers
// GET /availability/technician?personId=&date=&start=HH:MM&end=HH:MM[&exclude=].
func (h *Handler) GetTechnicianConflict(c *gin.Context) {
	personID, ok := optionalID(c, "personId")
	if !ok {
		return
	}
	if personID == nil {
		writeError(c, apperr.Validation("", "personId is required"))
		return
	}
	exclude, ok := optionalID(c, "exclude")
	if !ok {
		return
	}
	start, err := model.ParseClock(c.Query("start"))
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := model.ParseClock(c.Query("end"))
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.checker.TechnicianConflict(c.Request.Context(), *personID, c.Query("date"),
		schedule.Span{Start: start, End: end}, exclude)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetNextBusinessDay answers GET /availability/next-business-day?date=[&personId=].
func (h *Handler) GetNextBusinessDay(c *gin.Context) {
	personID, ok := optionalID(c, "personId")
	if !ok {
		return
	}
	next, err := h.checker.NextBusinessDay(c.Request.Context(), c.Query("date"), personID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": next})
}
