package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/frontdesk/frontdesk/internal/platform/auth"
	"github.com/frontdesk/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole("admin", "receptionist", "doctor"))
	staff.GET("/availability", h.GetAvailability)
	staff.POST("/bookings", h.AdmitBooking)
	staff.GET("/appointments", h.ListAppointments)
	staff.GET("/appointments/unresolved", h.ListUnresolved)
	staff.GET("/appointments/:id", h.GetAppointment)
	staff.POST("/appointments/:id/transition", h.Transition)
	staff.GET("/doctors/:id/day", h.GetDoctorDay)
}

var admissionHTTPStatus = map[string]int{
	ReasonPastDate:         http.StatusBadRequest,
	ReasonInvalidShift:     http.StatusBadRequest,
	ReasonEntityNotFound:   http.StatusNotFound,
	ReasonDoctorNotStaffed: http.StatusConflict,
	ReasonShiftFull:        http.StatusConflict,
	ReasonPastCutoff:       http.StatusConflict,
}

func mapDomainError(err error) error {
	var adm *AdmissionError
	if errors.As(err, &adm) {
		status, ok := admissionHTTPStatus[adm.Reason]
		if !ok {
			status = http.StatusBadRequest
		}
		return echo.NewHTTPError(status, map[string]string{"error": adm.Message, "reason": adm.Reason})
	}
	var tr *TransitionError
	if errors.As(err, &tr) {
		status := http.StatusConflict
		if tr.Guard == GuardInvalidEvent {
			status = http.StatusBadRequest
		}
		return echo.NewHTTPError(status, map[string]string{"error": tr.Message, "guard": tr.Guard})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) GetAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}
	day, err := h.svc.GetAvailability(c.Request().Context(), doctorID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, day)
}

type bookingPayload struct {
	PatientID uuid.UUID `json:"patient_id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	ServiceID uuid.UUID `json:"service_id"`
	Date      string    `json:"date"`
	Shift     string    `json:"shift"`
	Note      *string   `json:"note,omitempty"`
}

func (h *Handler) AdmitBooking(c echo.Context) error {
	var payload bookingPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := time.ParseInLocation("2006-01-02", payload.Date, time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}

	ctx := c.Request().Context()
	appt, err := h.svc.AdmitBooking(ctx, &BookingRequest{
		PatientID: payload.PatientID,
		ClinicID:  payload.ClinicID,
		DoctorID:  payload.DoctorID,
		ServiceID: payload.ServiceID,
		Date:      date,
		Shift:     payload.Shift,
		Note:      payload.Note,
		CreatedBy: auth.ActorFromContext(ctx),
	})
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

type transitionPayload struct {
	Event  string  `json:"event"`
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var payload transitionPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	appt, err := h.svc.Transition(ctx, id, payload.Event, auth.ActorFromContext(ctx), payload.Reason)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	if code := c.QueryParam("code"); code != "" {
		appt, err := h.svc.GetAppointmentByCode(c.Request().Context(), code)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return c.JSON(http.StatusOK, appt)
	}
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctorDay(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
	}
	sched, err := h.svc.GetDoctorDay(c.Request().Context(), doctorID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListUnresolved(c echo.Context) error {
	items, err := h.svc.ListUnresolvedToday(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
