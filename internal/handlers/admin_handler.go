package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/admin"
	"github.com/hasib2k/online-store/internal/idempotency"
	"github.com/hasib2k/online-store/internal/logger"
	"github.com/hasib2k/online-store/internal/session"
	"github.com/hasib2k/online-store/internal/validation"
)

const (
	// IdempotencyHeader makes a mutation safe to retry when an idempotency store is configured.
	IdempotencyHeader = "Idempotency-Key"

	credentialsKey = "admin_credentials"
)

// HandlerConfig groups dependencies for the admin handlers.
type HandlerConfig struct {
	Service      *admin.Service
	Idempotency  *idempotency.Store // nil disables Idempotency-Key handling
	SecureCookie bool
	MaxBodySize  int64
}

type adminHandler struct {
	svc    *admin.Service
	idem   *idempotency.Store
	v      *validatorv10.Validate
	secure bool
}

// RegisterAdminRoutes registers the login, logout and order routes under /api/admin.
func RegisterAdminRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &adminHandler{
		svc:    cfg.Service,
		idem:   cfg.Idempotency,
		v:      validation.New(),
		secure: cfg.SecureCookie,
	}

	g := r.Group("/api/admin")
	if cfg.MaxBodySize > 0 {
		g.Use(limitBody(cfg.MaxBodySize))
	}
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)

	orders := g.Group("/orders", RequireAdmin(cfg.Service))
	orders.GET("", h.list)
	orders.POST("", h.mutate)
}

// RequireAdmin rejects the request with 401 before its body is read unless
// it carries the admin credential header or a valid session cookie.
func RequireAdmin(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := admin.Credentials{
			Header: c.GetHeader(session.HeaderName),
			Token:  session.TokenFromRequest(c.Request),
		}
		if err := svc.Authenticate(creds); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(credentialsKey, creds)
		c.Next()
	}
}

func credentialsFrom(c *gin.Context) admin.Credentials {
	if v, ok := c.Get(credentialsKey); ok {
		if creds, ok := v.(admin.Credentials); ok {
			return creds
		}
	}
	return admin.Credentials{}
}

func (h *adminHandler) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}

	token, err := h.svc.Login(req.Password)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("login failed", zap.Error(err))
		}
		c.JSON(status, body)
		return
	}

	http.SetCookie(c.Writer, session.Cookie(token, h.svc.SessionTTL(), h.secure))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *adminHandler) logout(c *gin.Context) {
	http.SetCookie(c.Writer, session.ExpiredCookie(h.secure))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *adminHandler) list(c *gin.Context) {
	list, err := h.svc.ListOrders(c.Request.Context(), credentialsFrom(c))
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *adminHandler) mutate(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.GetGinLogger(c)

	var req validation.MutationRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	idemKey := c.GetHeader(IdempotencyHeader)
	useIdem := h.idem != nil && idemKey != ""
	if useIdem {
		fp := idempotency.Fingerprint(string(req.ID), req.Action)
		created, err := h.idem.Begin(ctx, idemKey, fp)
		if err != nil {
			log.Error("idempotency begin failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
			return
		}
		if !created {
			h.replay(c, idemKey, fp)
			return
		}
	}

	status, body := h.apply(c, req)
	payload, err := json.Marshal(body)
	if err != nil {
		log.Error("encode response", zap.Error(err))
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"internal_error"}`)
	}

	if useIdem {
		if status >= http.StatusInternalServerError {
			err = h.idem.MarkFailed(ctx, idemKey, string(payload))
		} else {
			err = h.idem.MarkDone(ctx, idemKey, string(payload), status)
		}
		if err != nil {
			log.Warn("idempotency record not finalized", zap.String("idempotency_key", idemKey), zap.Error(err))
		}
	}

	c.Data(status, "application/json; charset=utf-8", payload)
}

func (h *adminHandler) apply(c *gin.Context, req validation.MutationRequest) (int, gin.H) {
	res, err := h.svc.Apply(c.Request.Context(), credentialsFrom(c), admin.Mutation{
		ID:        string(req.ID),
		Action:    admin.Action(req.Action),
		RequestID: logger.GetRequestID(c),
	})
	if err != nil {
		return errorResponse(err)
	}
	if res.Order == nil {
		return http.StatusOK, gin.H{"ok": true, "action": res.Action, "id": res.ID, "message": "Deleted"}
	}
	return http.StatusOK, gin.H{"ok": true, "action": res.Action, "id": res.ID, "order": res.Order}
}

// replay answers a request whose Idempotency-Key was already claimed.
func (h *adminHandler) replay(c *gin.Context, key, fingerprint string) {
	rec, err := h.idem.Get(c.Request.Context(), key)
	if err != nil {
		logger.GetGinLogger(c).Error("idempotency lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_conflict"})
		return
	}
	if rec.Fingerprint != fingerprint {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		c.Header("Idempotent-Replayed", "true")
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": "request_in_progress"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_conflict"})
	}
}

// errorResponse maps service errors onto status codes and {"error": code} bodies.
func errorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, admin.ErrUnauthorized):
		return http.StatusUnauthorized, gin.H{"error": "unauthorized"}
	case errors.Is(err, admin.ErrBadRequest):
		return http.StatusBadRequest, gin.H{"error": "bad_request", "msg": err.Error()}
	case errors.Is(err, admin.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "order_not_found"}
	case errors.Is(err, admin.ErrNotConfigured):
		return http.StatusInternalServerError, gin.H{"error": "admin_not_configured"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal_error"}
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
