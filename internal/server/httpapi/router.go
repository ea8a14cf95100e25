// Package httpapi exposes the sync service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/dmitrijs2005/garrison/internal/proto"
	"github.com/dmitrijs2005/garrison/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const (
	deviceIDKey = "device_id"
	subjectKey  = "subject"
)

// Syncer is the service behind POST /sync.
type Syncer interface {
	Sync(ctx context.Context, deviceID string, req *proto.SyncRequest) (*proto.SyncResponse, error)
}

type handler struct {
	syncer Syncer
	log    logging.Logger
}

// NewRouter builds the server routes. secret verifies bearer tokens.
func NewRouter(s Syncer, secret []byte, l logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(l))

	h := &handler{syncer: s, log: l}

	r.GET("/health", h.Health)
	r.POST(proto.SyncPath, AuthRequired(secret), h.Sync)

	return r
}

// AuthRequired verifies the bearer token and the X-Device-ID header. A token
// bound to a device is only accepted with that device id.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader(common.AuthorizationHeaderName)
		if !strings.HasPrefix(h, common.BearerPrefix) {
			abort(c, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := auth.ParseToken(strings.TrimPrefix(h, common.BearerPrefix), secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		deviceID := strings.TrimSpace(c.GetHeader(common.DeviceIDHeaderName))
		if deviceID == "" {
			abort(c, http.StatusBadRequest, "missing "+common.DeviceIDHeaderName)
			return
		}
		if claims.DeviceID != "" && claims.DeviceID != deviceID {
			abort(c, http.StatusForbidden, "token not issued for this device")
			return
		}

		c.Set(deviceIDKey, deviceID)
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) Sync(c *gin.Context) {
	var req proto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body")
		return
	}

	deviceID := c.GetString(deviceIDKey)
	if req.DeviceID != "" && req.DeviceID != deviceID {
		abort(c, http.StatusBadRequest, "device id mismatch")
		return
	}

	resp, err := h.syncer.Sync(c.Request.Context(), deviceID, &req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrUnknownEntityKind), errors.Is(err, common.ErrInvalidOperation):
			abort(c, http.StatusUnprocessableEntity, err.Error())
		default:
			h.log.Error(c.Request.Context(), "sync failed", "device_id", deviceID, "error", err)
			abort(c, http.StatusInternalServerError, "internal error")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, proto.ErrorResponse{Error: msg})
}

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"device_id", c.GetString(deviceIDKey),
		)
	}
}
