package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/service"
	"github.com/jengzang/timeslots-backend-go/internal/spatial"
	"github.com/jengzang/timeslots-backend-go/internal/worker"
	"github.com/jengzang/timeslots-backend-go/pkg/response"
)

// eventBuffer bounds the per-client SSE backlog
const eventBuffer = 64

// TimeSlotHandler handles HTTP requests for time slots and the tracking engine
type TimeSlotHandler struct {
	dispatcher *worker.Dispatcher
	slots      *service.TimeSlotService
	reminders  *service.ReminderService
	clock      service.Clock
	location   *time.Location
	logger     *logger.Logger
}

// NewTimeSlotHandler creates a new time slot handler
func NewTimeSlotHandler(
	dispatcher *worker.Dispatcher,
	slots *service.TimeSlotService,
	reminders *service.ReminderService,
	clock service.Clock,
	location *time.Location,
	log *logger.Logger,
) *TimeSlotHandler {
	return &TimeSlotHandler{
		dispatcher: dispatcher,
		slots:      slots,
		reminders:  reminders,
		clock:      clock,
		location:   location,
		logger:     log,
	}
}

// LocationBatchRequest is a batch of fixes in delivery order
type LocationBatchRequest struct {
	Locations []models.GeoPoint `json:"locations" binding:"required"`
}

// AppStateRequest reports a foreground/background transition
type AppStateRequest struct {
	State models.AppState `json:"state" binding:"required"`
}

// CategoryRequest carries a category chosen by the user
type CategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// PostLocations handles POST /api/v1/locations
func (h *TimeSlotHandler) PostLocations(c *gin.Context) {
	var req LocationBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fixes := spatial.FilterFixes(req.Locations)
	if err := h.dispatcher.SubmitLocations(c.Request.Context(), fixes); err != nil {
		h.dispatchError(c, err)
		return
	}

	response.Accepted(c, gin.H{
		"received": len(req.Locations),
		"accepted": len(fixes),
	})
}

// PostAppState handles POST /api/v1/app-state
func (h *TimeSlotHandler) PostAppState(c *gin.Context) {
	var req AppStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.State != models.AppStateActive && req.State != models.AppStateInactive {
		response.Error(c, http.StatusBadRequest, "State must be active or inactive", nil)
		return
	}

	if err := h.dispatcher.SubmitAppState(c.Request.Context(), req.State); err != nil {
		h.dispatchError(c, err)
		return
	}
	response.Accepted(c, gin.H{"state": req.State})
}

// GetTimeSlots handles GET /api/v1/timeslots?date=YYYY-MM-DD
func (h *TimeSlotHandler) GetTimeSlots(c *gin.Context) {
	date, ok := h.parseDate(c)
	if !ok {
		return
	}
	slots := h.slots.GetForDay(date)
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	response.Success(c, slots)
}

// GetLastTimeSlot handles GET /api/v1/timeslots/last
func (h *TimeSlotHandler) GetLastTimeSlot(c *gin.Context) {
	response.Success(c, h.slots.GetLast())
}

// GetSummary handles GET /api/v1/timeslots/summary?date=YYYY-MM-DD
func (h *TimeSlotHandler) GetSummary(c *gin.Context) {
	date, ok := h.parseDate(c)
	if !ok {
		return
	}
	summary := h.slots.GetCategorySummary(date)
	if summary == nil {
		summary = []models.CategorySummary{}
	}
	response.Success(c, gin.H{
		"date":       date.Format("2006-01-02"),
		"categories": summary,
	})
}

// CreateTimeSlot handles POST /api/v1/timeslots
func (h *TimeSlotHandler) CreateTimeSlot(c *gin.Context) {
	category, ok := h.bindCategory(c)
	if !ok {
		return
	}

	slot, err := h.dispatcher.RecordNewManualSlot(c.Request.Context(), category)
	switch {
	case errors.Is(err, models.ErrInvalidDuration):
		response.Error(c, http.StatusConflict, "New time slot must start after the current one", err)
		return
	case err != nil:
		h.dispatchError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Response{Code: 0, Message: "created", Data: slot})
}

// UpdateCategory handles PUT /api/v1/timeslots/:start/category
func (h *TimeSlotHandler) UpdateCategory(c *gin.Context) {
	sec, err := strconv.ParseInt(c.Param("start"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid start time", err)
		return
	}
	category, ok := h.bindCategory(c)
	if !ok {
		return
	}

	start := time.Unix(sec, 0).In(h.location)
	slot, err := h.dispatcher.RecordUserCategoryChoice(c.Request.Context(), start, category)
	if err != nil {
		h.dispatchError(c, err)
		return
	}
	if slot == nil {
		response.NotFound(c, "Time slot not found")
		return
	}
	response.Success(c, slot)
}

// NotificationCategory handles POST /api/v1/notifications/category
func (h *TimeSlotHandler) NotificationCategory(c *gin.Context) {
	category, ok := h.bindCategory(c)
	if !ok {
		return
	}

	slot, err := h.dispatcher.HandleNotificationCategory(c.Request.Context(), category)
	if err != nil {
		h.dispatchError(c, err)
		return
	}
	if slot == nil {
		response.NotFound(c, "No current time slot")
		return
	}
	response.Success(c, slot)
}

// GetReminders handles GET /api/v1/reminders
func (h *TimeSlotHandler) GetReminders(c *gin.Context) {
	reminders, err := h.reminders.Pending()
	if err != nil {
		response.InternalError(c, "Failed to get reminders", err)
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	response.Success(c, reminders)
}

// GetCategories handles GET /api/v1/categories
func (h *TimeSlotHandler) GetCategories(c *gin.Context) {
	all := models.AllCategories()
	infos := make([]models.CategoryInfo, 0, len(all))
	for _, cat := range all {
		infos = append(infos, cat.Info())
	}
	response.Success(c, infos)
}

// StreamEvents handles GET /api/v1/timeslots/events as server-sent events.
// Slow clients lose events instead of stalling the writer.
func (h *TimeSlotHandler) StreamEvents(c *gin.Context) {
	events := make(chan models.TimeSlotEvent, eventBuffer)
	forward := func(kind models.TimeSlotEventKind) func(models.TimeSlot) {
		return func(slot models.TimeSlot) {
			select {
			case events <- models.TimeSlotEvent{Kind: kind, Slot: slot}:
			default:
				h.logger.Warn("dropping time slot event for slow client",
					"kind", kind, "start_time", slot.StartTime)
			}
		}
	}

	unsubCreated := h.slots.OnCreated(forward(models.TimeSlotCreated))
	defer unsubCreated()
	unsubUpdated := h.slots.OnUpdated(forward(models.TimeSlotUpdated))
	defer unsubUpdated()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Kind), ev.Slot)
			return true
		}
	})
}

func (h *TimeSlotHandler) parseDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return h.clock.Now().In(h.location), true
	}
	date, err := time.ParseInLocation("2006-01-02", raw, h.location)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return time.Time{}, false
	}
	return date, true
}

func (h *TimeSlotHandler) bindCategory(c *gin.Context) (models.Category, bool) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return "", false
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Unknown category", err)
		return "", false
	}
	return category, true
}

func (h *TimeSlotHandler) dispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, worker.ErrStopped):
		response.Error(c, http.StatusServiceUnavailable, "Tracking engine is shutting down", err)
	case c.Request.Context().Err() != nil:
		response.Error(c, http.StatusRequestTimeout, "Request cancelled", err)
	default:
		response.InternalError(c, "Failed to queue request", err)
	}
}
