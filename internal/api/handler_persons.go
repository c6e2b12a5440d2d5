package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-scheduler/internal/model"
)

// ListPersons answers GET /persons[?active=true].
func (h *Handler) ListPersons(c *gin.Context) {
	persons, err := h.store.ListPersons(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, persons)
}

// CreatePerson registers a technician or apprentice.
func (h *Handler) CreatePerson(c *gin.Context) {
	var p model.Person
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	p.ID = 0
	if err := h.store.CreatePerson(c.Request.Context(), &p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetSettings returns the shop-wide settings.
func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.store.Settings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// PutSettings replaces the shop-wide settings. Stored windows are not
// touched; run a recompute to apply new defaults.
func (h *Handler) PutSettings(c *gin.Context) {
	var st model.ShopSettings
	if err := c.ShouldBindJSON(&st); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.store.UpdateSettings(ctx, &st); err != nil {
		writeError(c, err)
		return
	}
	stored, err := h.store.Settings(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}
