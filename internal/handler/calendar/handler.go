package calendar

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fisioflow/scheduler-api/internal/handler"
	"github.com/fisioflow/scheduler-api/internal/model"
	"github.com/fisioflow/scheduler-api/internal/service/calendar"
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
)

type Handler struct {
	service *calendar.Service
}

func NewHandler(service *calendar.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, cache gin.HandlerFunc) {
	cal := r.Group("/calendar")
	{
		cal.GET("", cache, h.GetCalendar)
		cal.GET("/current", h.GetCurrentNext)
	}
}

// GetCalendar returns the flattened agenda for a date range, ordered by
// date then start time.
func (h *Handler) GetCalendar(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid from date"))
		return
	}

	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid to date"))
		return
	}

	filter := model.CalendarFilter{From: from, To: to}

	if id := c.Query("practitioner_id"); id != "" {
		practitionerID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid practitioner ID"))
			return
		}
		filter.PractitionerID = &practitionerID
	}

	entries, err := h.service.Range(c.Request.Context(), filter)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

// GetCurrentNext returns the in-progress and upcoming appointment for a
// practitioner relative to the server clock.
func (h *Handler) GetCurrentNext(c *gin.Context) {
	practitionerID, err := uuid.Parse(c.Query("practitioner_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid practitioner ID"))
		return
	}

	now, err := h.service.CurrentNext(c.Request.Context(), practitionerID, time.Now())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(now))
}

func renderError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	c.JSON(appErr.HTTPStatus(), handler.NewAppErrorResponse(appErr))
}
