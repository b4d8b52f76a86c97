// Package httpapi exposes the gateway over a thin REST surface.
//
// Every response uses the envelope {"success": bool, "message"?: string}
// plus endpoint-specific payload fields. Unmatched routes and panics
// produce the same envelope with 404 and 500 respectively.
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate"
	"github.com/opd-ai/chatgate/observability"
)

// Server serves the gateway's REST API.
type Server struct {
	gw         *chatgate.Gateway
	uploadsDir string
	engine     *gin.Engine
}

// New creates a Server routing to the given gateway. Uploaded media files
// are staged under uploadsDir.
func New(gw *chatgate.Gateway, uploadsDir string) *Server {
	engine := gin.New()
	engine.Use(recovery(), observability.RequestLogger(), observability.RequestMetrics())

	s := &Server{
		gw:         gw,
		uploadsDir: uploadsDir,
		engine:     engine,
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's HTTP handler for mounting.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// recovery converts panics into the standard 500 envelope instead of
// dropping the connection.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithFields(logrus.Fields{
					"function": "recovery",
					"path":     c.Request.URL.Path,
					"panic":    fmt.Sprint(r),
				}).Error("Unhandled panic in request handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"message": "Internal server error",
					"error":   fmt.Sprint(r),
				})
			}
		}()
		c.Next()
	}
}
