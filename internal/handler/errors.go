package handler

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"rn2903-service/internal/command"
	"rn2903-service/internal/configsync"
	"rn2903-service/internal/model"
	"rn2903-service/internal/service"
	"rn2903-service/internal/session"
	"rn2903-service/internal/utils"
)

// respondServiceError maps radio service errors onto HTTP responses
func respondServiceError(c *gin.Context, message string, err error) {
	var validationErr *command.ValidationError
	var invalidConfig *configsync.InvalidConfigError
	var deviceErr *session.DeviceError
	var stepFailure *configsync.StepFailure

	switch {
	case errors.As(err, &validationErr):
		utils.CodedErrorResponse(c, http.StatusBadRequest, "INVALID_COMMAND", message, err, nil)
	case errors.As(err, &invalidConfig):
		utils.CodedErrorResponse(c, http.StatusBadRequest, "INVALID_CONFIG", message, err, gin.H{"settings": invalidConfig.Settings})
	case errors.Is(err, configsync.ErrNoConfig):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.Is(err, service.ErrNotStarted):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, message, err)
	case errors.Is(err, service.ErrHistoryUnavailable):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	case errors.Is(err, session.ErrNoPendingEvent), errors.Is(err, session.ErrStateError):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	case errors.Is(err, session.ErrEventPending):
		utils.CodedErrorResponse(c, http.StatusConflict, string(model.CodeEventPending), message, err, nil)
	case errors.Is(err, session.ErrSafetyBlocked):
		utils.CodedErrorResponse(c, http.StatusForbidden, string(model.CodeSafetyBlocked), message, err, nil)
	case errors.As(err, &deviceErr):
		utils.CodedErrorResponse(c, http.StatusBadGateway, string(deviceErr.Code), message, err, nil)
	case errors.As(err, &stepFailure):
		utils.CodedErrorResponse(c, http.StatusBadGateway, "STEP_FAILED", message, err, stepFailure)
	case isTimeout(err):
		utils.ErrorResponse(c, http.StatusGatewayTimeout, message, err)
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}

// respondResult reports a dispatched command. Non-ok results carry the result as data.
func respondResult(c *gin.Context, result session.Result) {
	if result.OK() {
		utils.SuccessResponse(c, http.StatusOK, "Command executed", result)
		return
	}

	switch result.Status {
	case session.StatusStateError:
		utils.CodedErrorResponse(c, http.StatusConflict, "STATE_ERROR", "Radio session is in error state", result.AsError(), result)
	case session.StatusTransportError:
		status := http.StatusBadGateway
		if isTimeout(result.Err) {
			status = http.StatusGatewayTimeout
		}
		utils.CodedErrorResponse(c, status, "TRANSPORT_ERROR", "Radio did not answer", result.AsError(), result)
	default:
		status := http.StatusBadGateway
		switch result.Code {
		case model.CodeSafetyBlocked:
			status = http.StatusForbidden
		case model.CodeEventPending:
			status = http.StatusConflict
		case model.CodeInvalidCommand:
			status = http.StatusBadRequest
		}
		utils.CodedErrorResponse(c, status, string(result.Code), "Radio rejected command", result.AsError(), result)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
