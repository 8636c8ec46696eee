package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/commentum/commentum/moderation/engine"

	"github.com/labstack/echo/v4"
)

// commandEnvelope is the wire shape of a webhook-forwarded chat command.
type commandEnvelope struct {
	Actor  engine.Actor    `json:"actor"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

type commandResponse struct {
	Outcome *engine.Outcome `json:"outcome,omitempty"`
	Error   *errorBody      `json:"error,omitempty"`
}

type errorBody struct {
	Code    engine.Code `json:"code"`
	Message string      `json:"message"`
}

func httpStatus(code engine.Code) int {
	switch code {
	case engine.CodePermissionDenied:
		return http.StatusForbidden
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeInvalidInput:
		return http.StatusBadRequest
	case engine.CodeConflict:
		return http.StatusConflict
	case engine.CodePartialFailure:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) HandleCommand(c echo.Context) error {
	var env commandEnvelope
	if err := c.Bind(&env); err != nil {
		return c.JSON(http.StatusBadRequest, commandResponse{Error: &errorBody{
			Code: engine.CodeInvalidInput, Message: "malformed request body",
		}})
	}

	cmd, err := engine.DecodeCommand(env.Actor, env.Action, env.Params)
	if err != nil {
		return c.JSON(http.StatusBadRequest, commandResponse{Error: &errorBody{
			Code: engine.CodeInvalidInput, Message: err.Error(),
		}})
	}

	out, err := srv.engine.ProcessCommand(c.Request().Context(), cmd)
	if err != nil {
		var cmdErr *engine.CommandError
		if !errors.As(err, &cmdErr) {
			cmdErr = &engine.CommandError{Code: engine.CodeUpstreamUnavailable, Message: err.Error()}
		}
		// partial failures still carry the outcome, so the caller can see
		// which accounts were updated
		return c.JSON(httpStatus(cmdErr.Code), commandResponse{
			Outcome: out,
			Error:   &errorBody{Code: cmdErr.Code, Message: cmdErr.Message},
		})
	}
	return c.JSON(http.StatusOK, commandResponse{Outcome: out})
}

// HandleQueue serves the review queue as a convenience GET; it runs the
// same queue command (and permission checks) as POST /api/command.
func (srv *Server) HandleQueue(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	cmd := &engine.QueueCommand{
		Actor: engine.Actor{
			ClientType: c.QueryParam("clientType"),
			UserID:     c.QueryParam("userId"),
		},
		Limit: limit,
	}
	out, err := srv.engine.ProcessCommand(c.Request().Context(), cmd)
	if err != nil {
		var cmdErr *engine.CommandError
		if !errors.As(err, &cmdErr) {
			cmdErr = &engine.CommandError{Code: engine.CodeUpstreamUnavailable, Message: err.Error()}
		}
		return c.JSON(httpStatus(cmdErr.Code), commandResponse{Error: &errorBody{
			Code: cmdErr.Code, Message: cmdErr.Message,
		}})
	}
	return c.JSON(http.StatusOK, commandResponse{Outcome: out})
}

func (srv *Server) HandleAuditLog(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	recs, err := srv.audit.ListAuditRecords(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusBadGateway, commandResponse{Error: &errorBody{
			Code: engine.CodeUpstreamUnavailable, Message: err.Error(),
		}})
	}
	return c.JSON(http.StatusOK, map[string]any{"records": recs})
}
