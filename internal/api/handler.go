package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/availability"
	"workshop-scheduler/internal/breaks"
	"workshop-scheduler/internal/recompute"
	"workshop-scheduler/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	tracker   *breaks.Tracker
	checker   *availability.Checker
	recompute *recompute.Service
	webpush   *webpush.Options
	loc       *time.Location
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, t *breaks.Tracker, c *availability.Checker, r *recompute.Service, webpushOptions *webpush.Options, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		store:     s,
		tracker:   t,
		checker:   c,
		recompute: r,
		webpush:   webpushOptions,
		loc:       loc,
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if kind != "" {
		body["kind"] = kind
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	writeError(c, &apperr.Error{Kind: apperr.KindValidation, Msg: "invalid request", Err: err})
}

// idParam reads a numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		writeError(c, apperr.Validation("", "invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

// optionalID reads an optional numeric query parameter.
func optionalID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(c, apperr.Validation("", "invalid %s %q", name, raw))
		return nil, false
	}
	v := uint(id)
	return &v, true
}
