package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/security"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Removed   *int   `json:"removed,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

// classify picks the status and code for an engine error. Order matters:
// typed errors unwrap to more than one sentinel.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrScheduleNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrConversionFailed):
		return http.StatusBadGateway, "conversion_failed"
	case errors.Is(err, core.ErrNoConverter):
		return http.StatusServiceUnavailable, "conversion_unavailable"
	case errors.Is(err, core.ErrCascadeDeleteFailed):
		return http.StatusConflict, "cascade_delete_failed"
	case errors.Is(err, core.ErrTerminalState):
		return http.StatusConflict, "terminal_state"
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, core.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, core.ErrConversionInProgress):
		return http.StatusConflict, "conversion_in_progress"
	case errors.Is(err, core.ErrAlreadyConverted):
		return http.StatusConflict, "already_converted"
	case errors.Is(err, core.ErrInvalidRecurrenceRule):
		return http.StatusBadRequest, "invalid_recurrence_rule"
	case errors.Is(err, core.ErrCompletionPayloadRequired),
		errors.Is(err, core.ErrInvalidCompletionPayload):
		return http.StatusBadRequest, "invalid_completion_payload"
	case errors.Is(err, core.ErrInvalidSchedule),
		errors.Is(err, core.ErrInvalidScope),
		errors.Is(err, core.ErrUnknownStatus),
		errors.Is(err, core.ErrNotAnchor):
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var resp errorResponse
	var status int

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		resp.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
		resp.Error = security.SanitizeErrorMessage(fmt.Sprint(he.Message))
	} else {
		status, resp.Code = classify(err)
		resp.Error = security.SanitizeErrorMessage(err.Error())

		var ruleErr *core.RuleError
		if errors.As(err, &ruleErr) {
			resp.Field = ruleErr.Field
		}
		var cascadeErr *core.CascadeDeleteError
		if errors.As(err, &cascadeErr) {
			resp.Removed = &cascadeErr.Removed
			resp.Remaining = &cascadeErr.Remaining
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		s.logger.Warn("failed to write error response", slog.String("error", err.Error()))
	}
}
