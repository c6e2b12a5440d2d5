package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/schedule"
)

type workItemRequest struct {
	PersonID       *uint `json:"personId"`
	NominalMinutes int   `json:"nominalMinutes" binding:"required"`
	// StartTime defaults to the arrival time.
	StartTime *model.Clock `json:"startTime"`
}

type appointmentRequest struct {
	Date             string            `json:"date"`
	ArrivalTime      model.Clock       `json:"arrivalTime"`
	NominalMinutes   int               `json:"nominalMinutes"`
	AssignedPersonID *uint             `json:"assignedPersonId"`
	LoanerRequested  bool              `json:"loanerRequested"`
	LoanerUntil      *string           `json:"loanerUntil"`
	Items            []workItemRequest `json:"items"`
}

func (r appointmentRequest) toModel() model.Appointment {
	a := model.Appointment{
		Date:             r.Date,
		ArrivalTime:      r.ArrivalTime,
		NominalMinutes:   r.NominalMinutes,
		AssignedPersonID: r.AssignedPersonID,
		LoanerRequested:  r.LoanerRequested,
		LoanerUntil:      r.LoanerUntil,
	}
	for _, it := range r.Items {
		start := r.ArrivalTime
		if it.StartTime != nil {
			start = *it.StartTime
		}
		a.Items = append(a.Items, model.WorkItem{
			PersonID:       it.PersonID,
			NominalMinutes: it.NominalMinutes,
			StartTime:      start,
		})
	}
	return a
}

type appointmentResponse struct {
	model.Appointment
	Window schedule.DisplayWindow `json:"window"`
}

func (h *Handler) respond(c *gin.Context, status int, a model.Appointment) {
	c.JSON(status, appointmentResponse{Appointment: a, Window: schedule.AppointmentWindow(a, h.loc)})
}

// GetAppointment returns an appointment with its display window.
func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a, err := h.store.GetAppointment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, a)
}

// CreateAppointment books a new appointment.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := req.toModel()
	if err := h.store.CreateAppointment(c.Request.Context(), &a); err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, a)
}

// CreateExtension books a follow-up of an existing appointment.
func (h *Handler) CreateExtension(c *gin.Context) {
	parentID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := req.toModel()
	if err := h.store.CreateExtension(c.Request.Context(), parentID, &a); err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, a)
}

// UpdateAppointment replaces the editable fields and re-resolves the window.
func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := req.toModel()
	a.ID = id
	ctx := c.Request.Context()
	if err := h.store.UpdateAppointment(ctx, &a); err != nil {
		writeError(c, err)
		return
	}
	stored, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, stored)
}

type statusRequest struct {
	Status model.Status `json:"status" binding:"required"`
}

// UpdateStatus moves an appointment through its lifecycle.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.store.UpdateStatus(ctx, id, req.Status, time.Now()); err != nil {
		writeError(c, err)
		return
	}
	a, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, a)
}

// DeleteAppointment soft-deletes an appointment.
func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.SoftDeleteAppointment(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RestoreAppointment undoes a soft delete.
func (h *Handler) RestoreAppointment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.store.RestoreAppointment(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	a, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, a)
}

// ListDeletedAppointments returns the trash.
func (h *Handler) ListDeletedAppointments(c *gin.Context) {
	list, err := h.store.ListDeletedAppointments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PurgeAppointment removes a soft-deleted appointment permanently.
func (h *Handler) PurgeAppointment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.PurgeAppointment(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type recomputeRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// Recompute re-resolves all open appointments in a date range. Progress is
// published as operation_progress events.
func (h *Handler) Recompute(c *gin.Context) {
	var req recomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.recompute.Run(c.Request.Context(), req.From, req.To, nil)
	if err != nil {
		if res.Status == "" {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
