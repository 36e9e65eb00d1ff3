// internal/handler/discovery_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rn2903-service/internal/service"
	"rn2903-service/internal/utils"
)

// DiscoveryHandler handles port discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// ScanDevices scans for attached radios
// @Summary Scan for radios
// @Description List serial ports, USB devices and configured TCP endpoints that may host an RN2903
// @Tags Discovery
// @Produce json
// @Param type query string false "Scan type" Enums(all, serial, usb, tcp) default(all)
// @Param probe query bool false "Ask each candidate for its firmware banner"
// @Success 200 {object} utils.APIResponse{data=service.ScanResult} "Device scan completed"
// @Failure 400 {object} utils.APIResponse "Invalid scan type"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanDevices(c *gin.Context) {
	req := &service.ScanRequest{ScanType: c.DefaultQuery("type", "all")}
	switch req.ScanType {
	case "all", "serial", "usb", "tcp":
	default:
		utils.ValidationErrorResponse(c, map[string]string{"type": "must be one of all, serial, usb, tcp"})
		return
	}

	if raw := c.Query("probe"); raw != "" {
		probe, err := strconv.ParseBool(raw)
		if err != nil {
			utils.ValidationErrorResponse(c, map[string]string{"probe": "must be a boolean"})
			return
		}
		req.Probe = &probe
	}

	result, err := h.discoveryService.ScanDevices(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to scan devices", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan devices", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device scan completed", result)
}

// GetScanners lists the scanners usable on this host
// @Summary Available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{scanners=[]string}} "Scanners retrieved"
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", gin.H{
		"scanners": h.discoveryService.Scanners(),
	})
}
