package httpapi

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate"
)

// uploadRetention is how long an uploaded media file stays on disk after
// the send completes. The file is removed regardless of the outcome.
const uploadRetention = 5 * time.Second

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/sessions", s.listSessions)
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id/qr", s.loginCode)
	api.GET("/sessions/:id/status", s.sessionStatus)
	api.POST("/sessions/:id/send-message", s.sendMessage)
	api.POST("/sessions/:id/send-media", s.sendMedia)
	api.DELETE("/sessions/:id", s.deleteSession)
	api.POST("/sessions/:id/reconnect", s.reconnectSession)
	api.POST("/sessions/:id/reset", s.resetSession)

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"sessions": s.gw.Registry().Size(),
		})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Endpoint not found",
		})
	})
}

// fail writes the envelope for a gateway error, mapping the error
// taxonomy onto HTTP statuses.
func fail(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chatgate.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chatgate.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, chatgate.ErrNotConnected),
		errors.Is(err, chatgate.ErrInvalidSessionID):
		status = http.StatusBadRequest
	case errors.Is(err, chatgate.ErrShuttingDown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, chatgate.ErrProviderTimeout):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.gw.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) createSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Session ID is required",
		})
		return
	}

	if err := s.gw.CreateSession(req.SessionID); err != nil {
		fail(c, err, "Failed to initialize session")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Session initialized successfully",
		"sessionId": req.SessionID,
	})
}

func (s *Server) loginCode(c *gin.Context) {
	code, err := s.gw.LoginCode(c.Param("id"))
	if err != nil {
		fail(c, err, "Session not found")
		return
	}
	if code == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Login code not available. Session might be already connected.",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"qr":      code,
	})
}

func (s *Server) sessionStatus(c *gin.Context) {
	status, err := s.gw.SessionStatus(c.Param("id"))
	if err != nil {
		fail(c, err, "Session not found")
		return
	}
	resp := gin.H{
		"success":       true,
		"sessionId":     status.SessionID,
		"phase":         status.Phase,
		"connected":     status.Connected,
		"hasLoginCode":  status.HasLoginCode,
		"retryAttempts": status.RetryAttempts,
		"identity":      status.Identity,
	}
	if status.LoginCodeExpiresAt != nil {
		resp["loginCodeExpiresAt"] = status.LoginCodeExpiresAt
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Phone number and message are required",
		})
		return
	}

	result, err := s.gw.SendText(c.Request.Context(), c.Param("id"), req.To, req.Message)
	if err != nil {
		fail(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Message sent successfully",
		"messageId": result.MessageID,
		"to":        result.To,
	})
}

func (s *Server) sendMedia(c *gin.Context) {
	to := c.PostForm("to")
	caption := c.PostForm("caption")
	file, err := c.FormFile("media")
	if err != nil || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Phone number and media file are required",
		})
		return
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		fail(c, err, "Failed to store media file")
		return
	}
	dst := filepath.Join(s.uploadsDir, uuid.NewString()+"-"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		fail(c, err, "Failed to store media file")
		return
	}
	result, err := s.gw.SendMedia(c.Request.Context(), c.Param("id"), to, dst, caption)
	// The retention window starts once the send has finished, whether or
	// not it succeeded; the provider may read the file for the full send.
	time.AfterFunc(uploadRetention, func() {
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{
				"function": "sendMedia",
				"path":     dst,
				"error":    err.Error(),
			}).Warn("Failed to remove uploaded file")
		}
	})
	if err != nil {
		fail(c, err, "Failed to send media")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Media sent successfully",
		"messageId": result.MessageID,
		"to":        result.To,
		"mediaType": result.MediaKind,
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.gw.DeleteSession(c.Param("id")); err != nil {
		fail(c, err, "Failed to delete session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session deleted successfully",
	})
}

func (s *Server) reconnectSession(c *gin.Context) {
	if err := s.gw.ReconnectSession(c.Param("id")); err != nil {
		fail(c, err, "Failed to reconnect session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Reconnection initiated",
		"sessionId": c.Param("id"),
	})
}

func (s *Server) resetSession(c *gin.Context) {
	if err := s.gw.ResetSession(c.Param("id")); err != nil {
		fail(c, err, "Failed to reset session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Session reset successfully. Please pair with a new login code.",
		"sessionId": c.Param("id"),
	})
}
