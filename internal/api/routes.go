package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/repositories"
	"github.com/arjy0/lumina/internal/auth"
	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/gateway"
	"github.com/arjy0/lumina/internal/protocol"
)

// Deps carries everything the HTTP layer talks to.
type Deps struct {
	Hub        *gateway.Hub
	Dispatcher *devlink.Dispatcher
	Devices    repositories.DeviceRepository
	Captures   repositories.CaptureRepository
	Sessions   repositories.SessionRepository
	Logger     *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Deps) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "lumina-host",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Device APIs
	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, deps.Devices, deps.Logger)
	})
	v1.GET("/devices", func(c echo.Context) error {
		return listDevices(c, deps.Dispatcher)
	})

	// Control APIs, one route per device command
	v1.POST("/devices/:id/photo/capture", func(c echo.Context) error {
		return capturePhoto(c, deps.Dispatcher)
	})
	v1.POST("/devices/:id/photo/start", func(c echo.Context) error {
		return startPhotoInterval(c, deps.Dispatcher, deps.Logger)
	})
	v1.POST("/devices/:id/photo/stop", func(c echo.Context) error {
		return stopPhoto(c, deps.Dispatcher)
	})
	v1.POST("/devices/:id/audio/start", func(c echo.Context) error {
		return startAudio(c, deps.Dispatcher, deps.Logger)
	})
	v1.POST("/devices/:id/audio/stop", func(c echo.Context) error {
		return stopAudio(c, deps.Dispatcher)
	})

	// Capture APIs
	v1.GET("/devices/:id/captures", func(c echo.Context) error {
		return listCaptures(c, deps.Captures)
	})
	v1.GET("/captures/:id", func(c echo.Context) error {
		return getCapture(c, deps.Captures)
	})
	v1.GET("/captures/:id/image", func(c echo.Context) error {
		return getCaptureImage(c, deps.Captures)
	})

	// Conversation history APIs
	v1.GET("/devices/:id/conversation", func(c echo.Context) error {
		return getConversation(c, deps.Sessions)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(deps.Hub, c, deps.Logger)
	})
}

func deviceAuth(c echo.Context, deviceRepo repositories.DeviceRepository, logger *zap.Logger) error {
	var req DeviceAuthRequest

	// Bind and validate request
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	// Validate required fields
	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := deviceRepo.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	// Generate JWT token for the device
	token, err := auth.GenerateDeviceToken(device.ID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	// Calculate expiration time (24 hours from now, matching JWT claims)
	expiresAt := time.Now().Add(24 * time.Hour)

	logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device.ID,
	})
}

func listDevices(c echo.Context, dispatcher *devlink.Dispatcher) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"devices": dispatcher.Devices(),
	})
}

func capturePhoto(c echo.Context, dispatcher *devlink.Dispatcher) error {
	deviceID := c.Param("id")
	if err := dispatcher.CapturePhoto(deviceID); err != nil {
		return controlError(c, err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Status: "sent", DeviceID: deviceID})
}

func startPhotoInterval(c echo.Context, dispatcher *devlink.Dispatcher, logger *zap.Logger) error {
	deviceID := c.Param("id")

	var req PhotoIntervalRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind photo interval request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if err := dispatcher.StartPhotoInterval(deviceID, req.IntervalSeconds); err != nil {
		return controlError(c, err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Status: "sent", DeviceID: deviceID})
}

func stopPhoto(c echo.Context, dispatcher *devlink.Dispatcher) error {
	deviceID := c.Param("id")
	if err := dispatcher.StopPhoto(deviceID); err != nil {
		return controlError(c, err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Status: "sent", DeviceID: deviceID})
}

func startAudio(c echo.Context, dispatcher *devlink.Dispatcher, logger *zap.Logger) error {
	deviceID := c.Param("id")

	var req AudioStartRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind audio start request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	mode := protocol.AudioStartVoice
	switch req.Mode {
	case "", "voice":
	case "command":
		mode = protocol.AudioStartCommand
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_mode",
			Message: "Mode must be voice or command",
		})
	}

	if err := dispatcher.StartAudio(deviceID, mode); err != nil {
		return controlError(c, err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Status: "sent", DeviceID: deviceID})
}

func stopAudio(c echo.Context, dispatcher *devlink.Dispatcher) error {
	deviceID := c.Param("id")
	if err := dispatcher.StopAudio(deviceID); err != nil {
		return controlError(c, err)
	}
	return c.JSON(http.StatusOK, CommandResponse{Status: "sent", DeviceID: deviceID})
}

// controlError maps dispatcher failures onto HTTP statuses.
func controlError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, devlink.ErrUnknownDevice):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "unknown_device",
			Message: "Device has never connected",
		})
	case errors.Is(err, devlink.ErrNoLink):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "device_offline",
			Message: "Device has no active link",
		})
	case errors.Is(err, protocol.ErrIntervalOutOfRange),
		errors.Is(err, protocol.ErrIntervalUnencodable),
		errors.Is(err, protocol.ErrUnknownPhotoControl),
		errors.Is(err, protocol.ErrUnknownAudioControl):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_control_value",
			Message: err.Error(),
		})
	default:
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "device_write_failed",
			Message: err.Error(),
		})
	}
}

func listCaptures(c echo.Context, captures repositories.CaptureRepository) error {
	deviceID := c.Param("id")

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "Limit must be between 1 and 100",
			})
		}
		limit = parsed
	}

	list, err := captures.ListByDevice(c.Request().Context(), deviceID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"captures": list,
	})
}

func getCapture(c echo.Context, captures repositories.CaptureRepository) error {
	capture, err := captures.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "capture_not_found",
			Message: "No capture with that ID",
		})
	}
	return c.JSON(http.StatusOK, capture)
}

func getCaptureImage(c echo.Context, captures repositories.CaptureRepository) error {
	capture, err := captures.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "capture_not_found",
			Message: "No capture with that ID",
		})
	}
	return c.Blob(http.StatusOK, http.DetectContentType(capture.Image), capture.Image)
}

func getConversation(c echo.Context, sessions repositories.SessionRepository) error {
	session, err := sessions.GetLastByDeviceID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: err.Error(),
		})
	}
	if session == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_session",
			Message: "Device has no conversation yet",
		})
	}
	return c.JSON(http.StatusOK, session)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *gateway.Hub, c echo.Context, logger *zap.Logger) error {
	// Extract JWT token from Authorization header only
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	// Validate JWT token
	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	// Verify this is a device token
	if claims.Role != "device" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed for WebSocket connections",
		})
	}

	// Extract device ID from JWT claims
	deviceID := claims.DeviceID
	if deviceID == "" {
		logger.Error("WebSocket connection rejected: missing device ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("device_id", deviceID),
		zap.String("role", claims.Role))

	// Handle WebSocket connection with authenticated device ID
	return gateway.HandleWebSocketWithAuth(hub, c, deviceID, logger)
}
