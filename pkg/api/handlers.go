package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/engine"
	"github.com/fieldops/maintsched/pkg/family"
	"github.com/fieldops/maintsched/pkg/legacy"
	"github.com/fieldops/maintsched/pkg/lifecycle"
	"github.com/fieldops/maintsched/pkg/security"
)

// ScheduleView is the wire form of a schedule.
type ScheduleView struct {
	ID                    string               `json:"id"`
	AnchorID              string               `json:"anchor_id"`
	IsAnchor              bool                 `json:"is_anchor"`
	ScheduledDate         time.Time            `json:"scheduled_date"`
	Status                core.Status          `json:"status"`
	StatusLabel           string               `json:"status_label"`
	Rule                  *core.RecurrenceRule `json:"recurrence_rule,omitempty"`
	EquipmentRef          string               `json:"equipment_ref"`
	MaintenanceType       string               `json:"maintenance_type,omitempty"`
	Priority              string               `json:"priority,omitempty"`
	AssignedTo            string               `json:"assigned_to,omitempty"`
	EstimatedCost         float64              `json:"estimated_cost"`
	Description           string               `json:"description,omitempty"`
	Observations          string               `json:"observations,omitempty"`
	CompletionNotes       string               `json:"completion_notes,omitempty"`
	ActualCost            *float64             `json:"actual_cost,omitempty"`
	ActualDurationMinutes int                  `json:"actual_duration_minutes,omitempty"`
	StartedAt             *time.Time           `json:"started_at,omitempty"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
	CancelledAt           *time.Time           `json:"cancelled_at,omitempty"`
	ConvertedAt           *time.Time           `json:"converted_at,omitempty"`
	ServiceOrderRef       *string              `json:"service_order_ref,omitempty"`
	Version               int                  `json:"version"`
}

func viewOf(s *core.Schedule) ScheduleView {
	return ScheduleView{
		ID:                    s.ID,
		AnchorID:              s.AnchorID,
		IsAnchor:              s.IsAnchor(),
		ScheduledDate:         s.ScheduledDate,
		Status:                s.Status,
		StatusLabel:           legacy.StatusLabel(s.Status),
		Rule:                  s.Rule,
		EquipmentRef:          s.EquipmentRef,
		MaintenanceType:       s.MaintenanceType,
		Priority:              s.Priority,
		AssignedTo:            s.AssignedTo,
		EstimatedCost:         s.EstimatedCost,
		Description:           s.Description,
		Observations:          s.Observations,
		CompletionNotes:       s.CompletionNotes,
		ActualCost:            s.ActualCost,
		ActualDurationMinutes: int(s.ActualDuration / time.Minute),
		StartedAt:             s.StartedAt,
		CompletedAt:           s.CompletedAt,
		CancelledAt:           s.CancelledAt,
		ConvertedAt:           s.ConvertedAt,
		ServiceOrderRef:       s.ServiceOrderRef,
		Version:               s.Version,
	}
}

func viewsOf(in []*core.Schedule) []ScheduleView {
	out := make([]ScheduleView, len(in))
	for i, s := range in {
		out[i] = viewOf(s)
	}
	return out
}

type completionBody struct {
	Notes                 string  `json:"notes"`
	ActualCost            float64 `json:"actual_cost"`
	ActualDurationMinutes int     `json:"actual_duration_minutes"`
}

func (b *completionBody) payload() *core.CompletionPayload {
	if b == nil {
		return nil
	}
	return &core.CompletionPayload{
		Notes:          b.Notes,
		ActualCost:     b.ActualCost,
		ActualDuration: time.Duration(b.ActualDurationMinutes) * time.Minute,
	}
}

// TransitionBody requests a status change. TargetStatus accepts canonical
// names and legacy labels such as "concluido".
type TransitionBody struct {
	TargetStatus string          `json:"target_status"`
	Payload      *completionBody `json:"payload,omitempty"`
}

// FamilyTransitionBody requests a status change for a whole family.
type FamilyTransitionBody struct {
	TransitionBody
	From        *time.Time `json:"from,omitempty"`
	SkipSettled bool       `json:"skip_settled"`
	FailFast    bool       `json:"fail_fast"`
}

type outcomeView struct {
	ScheduleID string        `json:"schedule_id"`
	Skipped    bool          `json:"skipped,omitempty"`
	Schedule   *ScheduleView `json:"schedule,omitempty"`
	Error      string        `json:"error,omitempty"`
	Code       string        `json:"code,omitempty"`
}

type familyTransitionResponse struct {
	AnchorID  string        `json:"anchor_id"`
	Target    core.Status   `json:"target_status"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []outcomeView `json:"outcomes"`
}

type deleteResponse struct {
	AnchorID string           `json:"anchor_id"`
	Scope    core.DeleteScope `json:"scope"`
	IDs      []string         `json:"ids"`
	Removed  int              `json:"removed"`
}

type rescheduleBody struct {
	ScheduledDate time.Time `json:"scheduled_date"`
}

type detailsBody struct {
	EquipmentRef    *string  `json:"equipment_ref"`
	MaintenanceType *string  `json:"maintenance_type"`
	Priority        *string  `json:"priority"`
	AssignedTo      *string  `json:"assigned_to"`
	EstimatedCost   *float64 `json:"estimated_cost"`
	Description     *string  `json:"description"`
	Observations    *string  `json:"observations"`
}

type ruleBody struct {
	Rule *core.RecurrenceRule `json:"recurrence_rule"`
}

func scheduleID(c echo.Context) (string, error) {
	id := c.Param("id")
	if err := security.ValidateScheduleID(id); err != nil {
		return "", err
	}
	return id, nil
}

func bind(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

// createSchedule handles POST /api/v1/schedules
func (s *Server) createSchedule(c echo.Context) error {
	var req engine.CreateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.engine.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// getSchedule handles GET /api/v1/schedules/:id
func (s *Server) getSchedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	sched, err := s.engine.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(sched))
}

// updateDetails handles PATCH /api/v1/schedules/:id
func (s *Server) updateDetails(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	var body detailsBody
	if err := bind(c, &body); err != nil {
		return err
	}
	sched, err := s.engine.UpdateDetails(c.Request().Context(), id, lifecycle.Details{
		EquipmentRef:    body.EquipmentRef,
		MaintenanceType: body.MaintenanceType,
		Priority:        body.Priority,
		AssignedTo:      body.AssignedTo,
		EstimatedCost:   body.EstimatedCost,
		Description:     body.Description,
		Observations:    body.Observations,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(sched))
}

// deleteSchedule handles DELETE /api/v1/schedules/:id?scope=self|family&expect=N
func (s *Server) deleteSchedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	scope := core.ScopeSelf
	if v := c.QueryParam("scope"); v != "" {
		scope = core.DeleteScope(v)
	}
	var opts []family.DeleteOption
	if v := c.QueryParam("expect"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "expect must be a positive integer")
		}
		opts = append(opts, family.ExpectMembers(n))
	}

	res, err := s.engine.DeleteFamily(c.Request().Context(), id, scope, opts...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleteResponse{
		AnchorID: res.AnchorID,
		Scope:    res.Scope,
		IDs:      res.IDs,
		Removed:  res.Removed(),
	})
}

// reschedule handles PATCH /api/v1/schedules/:id/date
func (s *Server) reschedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	var body rescheduleBody
	if err := bind(c, &body); err != nil {
		return err
	}
	sched, err := s.engine.Reschedule(c.Request().Context(), id, body.ScheduledDate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(sched))
}

// transition handles POST /api/v1/schedules/:id/transitions
func (s *Server) transition(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	var body TransitionBody
	if err := bind(c, &body); err != nil {
		return err
	}
	target, err := legacy.ParseStatus(body.TargetStatus)
	if err != nil {
		return err
	}
	sched, err := s.engine.Transition(c.Request().Context(), core.TransitionRequest{
		ScheduleID: id,
		Target:     target,
		Payload:    body.Payload.payload(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(sched))
}

// familyInfo handles GET /api/v1/schedules/:id/family
func (s *Server) familyInfo(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	info, err := s.engine.FamilyInfo(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// familyMembers handles GET /api/v1/schedules/:id/family/members
func (s *Server) familyMembers(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	members, err := s.engine.Members(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewsOf(members))
}

// transitionFamily handles POST /api/v1/schedules/:id/family/transitions
func (s *Server) transitionFamily(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	var body FamilyTransitionBody
	if err := bind(c, &body); err != nil {
		return err
	}
	target, err := legacy.ParseStatus(body.TargetStatus)
	if err != nil {
		return err
	}

	var opts []family.TransitionOption
	if body.From != nil {
		opts = append(opts, family.From(*body.From))
	}
	if body.SkipSettled {
		opts = append(opts, family.SkipSettled())
	}
	if body.FailFast {
		opts = append(opts, family.WithStrategy(family.FailFast))
	}

	res, err := s.engine.TransitionFamily(c.Request().Context(), id, target, body.Payload.payload(), opts...)
	if err != nil {
		return err
	}

	resp := familyTransitionResponse{
		AnchorID:  res.AnchorID,
		Target:    res.Target,
		Succeeded: res.Succeeded(),
		Failed:    res.Failed(),
		Outcomes:  make([]outcomeView, len(res.Outcomes)),
	}
	for i, o := range res.Outcomes {
		ov := outcomeView{ScheduleID: o.ScheduleID, Skipped: o.Skipped}
		if o.Schedule != nil {
			v := viewOf(o.Schedule)
			ov.Schedule = &v
		}
		if o.Err != nil {
			_, ov.Code = classify(o.Err)
			ov.Error = security.SanitizeErrorMessage(o.Err.Error())
		}
		resp.Outcomes[i] = ov
	}
	return c.JSON(http.StatusOK, resp)
}

// getRule handles GET /api/v1/schedules/:id/rule
func (s *Server) getRule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	rule, err := s.engine.RuleFor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ruleBody{Rule: rule})
}

// updateRule handles PUT /api/v1/schedules/:id/rule
func (s *Server) updateRule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return err
	}
	var body ruleBody
	if err := bind(c, &body); err != nil {
		return err
	}
	sched, err := s.engine.UpdateRule(c.Request().Context(), id, body.Rule)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(sched))
}
