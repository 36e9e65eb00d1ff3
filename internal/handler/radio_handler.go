// internal/handler/radio_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rn2903-service/internal/model"
	"rn2903-service/internal/service"
	"rn2903-service/internal/utils"
)

// RadioHandler exposes the radio session over HTTP
type RadioHandler struct {
	radio  *service.RadioService
	logger *utils.ServiceLogger
}

// NewRadioHandler creates a new radio handler
func NewRadioHandler(radio *service.RadioService, logger *zap.Logger) *RadioHandler {
	return &RadioHandler{
		radio:  radio,
		logger: utils.NewServiceLogger(logger, "radio-handler"),
	}
}

// CommandRequest carries one raw command line
type CommandRequest struct {
	Command string `json:"command" binding:"required" example:"radio get freq"`
}

// SafeModeRequest toggles safe mode
type SafeModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ExecuteCommand runs one command against the radio
// @Summary Execute command
// @Description Validate a command line and send it to the radio. Invalid commands never reach the radio.
// @Tags Radio
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command"
// @Success 200 {object} utils.APIResponse{data=session.Result} "Command executed"
// @Failure 400 {object} utils.APIResponse "Invalid command"
// @Failure 403 {object} utils.APIResponse "Blocked by safe mode"
// @Failure 409 {object} utils.APIResponse "Outcome of radio rx or radio tx not yet read"
// @Failure 502 {object} utils.APIResponse "Radio rejected command"
// @Failure 504 {object} utils.APIResponse "Radio did not answer"
// @Router /radio/commands [post]
func (h *RadioHandler) ExecuteCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.radio.Execute(c.Request.Context(), req.Command)
	if err != nil {
		respondServiceError(c, "Command not executed", err)
		return
	}
	respondResult(c, result)
}

// ValidateCommand checks a command without sending it
// @Summary Validate command
// @Description Check a command line against the RN2903 grammar and return its canonical form
// @Tags Radio
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command"
// @Success 200 {object} utils.APIResponse{data=object{canonical=string,tokens=[]string}} "Command is valid"
// @Failure 400 {object} utils.APIResponse "Invalid command"
// @Router /radio/validate [post]
func (h *RadioHandler) ValidateCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	canonical, err := h.radio.Validate(req.Command)
	if err != nil {
		respondServiceError(c, "Command is invalid", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Command is valid", gin.H{
		"canonical": canonical.String(),
		"tokens":    canonical.Tokens(),
	})
}

// NextEvent reads the second phase of radio rx or radio tx
// @Summary Read radio event
// @Description Wait for the outcome of the last radio rx or radio tx
// @Tags Radio
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.RadioEvent} "Event received"
// @Failure 409 {object} utils.APIResponse "No radio exchange pending"
// @Failure 504 {object} utils.APIResponse "Timed out waiting for the radio"
// @Router /radio/events/next [post]
func (h *RadioHandler) NextEvent(c *gin.Context) {
	event, err := h.radio.NextEvent(c.Request.Context())
	if err != nil {
		respondServiceError(c, "No radio event", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Event received", event)
}

// GetStatus returns the radio status
// @Summary Radio status
// @Description Session state, firmware, safe mode and a summary of the radio settings
// @Tags Radio
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.StatusReport} "Status retrieved"
// @Router /radio/status [get]
func (h *RadioHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Status retrieved", h.radio.Status(c.Request.Context()))
}

// GetConfig returns the last known configuration
// @Summary Get configuration
// @Tags Config
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.DeviceConfig} "Configuration retrieved"
// @Failure 503 {object} utils.APIResponse "Radio not started"
// @Router /radio/config [get]
func (h *RadioHandler) GetConfig(c *gin.Context) {
	cfg, err := h.radio.Config()
	if err != nil {
		respondServiceError(c, "Configuration not available", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Configuration retrieved", cfg)
}

// PullConfig reads the full configuration from the radio
// @Summary Pull configuration
// @Description Pause the MAC, read system, NVM, MAC and radio settings, then resume
// @Tags Config
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{config=model.DeviceConfig,failures=[]configsync.StepFailure}} "Configuration pulled"
// @Failure 502 {object} utils.APIResponse "Pull aborted"
// @Router /radio/config/pull [post]
func (h *RadioHandler) PullConfig(c *gin.Context) {
	cfg, failures, err := h.radio.Pull(c.Request.Context())
	if err != nil {
		h.logger.Error("Configuration pull failed", zap.Error(err))
		respondServiceError(c, "Configuration pull failed", err)
		return
	}

	message := "Configuration pulled"
	if len(failures) > 0 {
		message = "Configuration pulled with failures"
	}
	utils.SuccessResponse(c, http.StatusOK, message, gin.H{
		"config":   cfg,
		"failures": failures,
	})
}

// PushConfig writes radio settings to the radio
// @Summary Push configuration
// @Description Validate every radio setting, apply them in key order and save on success
// @Tags Config
// @Accept json
// @Produce json
// @Param request body model.DeviceConfig true "Configuration; only the radio group is applied"
// @Success 200 {object} utils.APIResponse{data=configsync.PushResult} "Configuration pushed"
// @Failure 400 {object} utils.APIResponse "Invalid configuration"
// @Failure 502 {object} utils.APIResponse "Push failed"
// @Router /radio/config [put]
func (h *RadioHandler) PushConfig(c *gin.Context) {
	var cfg model.DeviceConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.radio.Push(c.Request.Context(), &cfg)
	if err != nil {
		h.logger.Error("Configuration push failed", zap.Error(err))
		respondServiceError(c, "Configuration push failed", err)
		return
	}
	if !result.OK {
		if failure := result.FirstFailure(); failure != nil {
			utils.CodedErrorResponse(c, http.StatusBadGateway, "PUSH_FAILED", "Configuration push failed", failure, result)
			return
		}
		utils.CodedErrorResponse(c, http.StatusBadGateway, "PUSH_FAILED", "Configuration push failed", nil, result)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Configuration pushed", result)
}

// SetSafeMode toggles blocking of destructive commands
// @Summary Set safe mode
// @Tags Radio
// @Accept json
// @Produce json
// @Param request body SafeModeRequest true "Safe mode"
// @Success 200 {object} utils.APIResponse{data=object{safe_mode=bool}} "Safe mode updated"
// @Router /radio/safe-mode [put]
func (h *RadioHandler) SetSafeMode(c *gin.Context) {
	var req SafeModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.radio.SetSafeMode(*req.Enabled)
	utils.SuccessResponse(c, http.StatusOK, "Safe mode updated", gin.H{"safe_mode": h.radio.SafeMode()})
}

// GetHistory lists stored configuration snapshots
// @Summary Snapshot history
// @Tags Config
// @Produce json
// @Param limit query int false "Maximum snapshots" default(20)
// @Success 200 {object} utils.APIResponse{data=[]repository.Snapshot} "History retrieved"
// @Failure 404 {object} utils.APIResponse "History requires the postgres driver"
// @Router /radio/config/history [get]
func (h *RadioHandler) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		utils.ValidationErrorResponse(c, map[string]string{"limit": "must be a positive integer"})
		return
	}

	snapshots, err := h.radio.History(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, "History not available", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "History retrieved", snapshots)
}
