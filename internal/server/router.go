package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/livepoll/internal/auth"
	"github.com/MarcoPoloResearchLab/livepoll/internal/polls"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	corsMaxAge = 24 * time.Hour

	messageUnauthorized     = "Unauthorized"
	messageInvalidJSON      = "Invalid JSON"
	messageMethodNotAllowed = "Method not allowed"
	messageNotFound         = "Not found"
)

var (
	errMissingAdminAuthenticator = errors.New("admin authenticator dependency required")
	errMissingPollService        = errors.New("poll service dependency required")

	corsAllowMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsAllowHeaders = []string{"Content-Type", "Authorization"}
)

// AdminAuthenticator exchanges the admin secret for a credential and verifies credentials.
type AdminAuthenticator interface {
	Login(ctx context.Context, secret string) (string, error)
	VerifyAdminCredential(authorizationHeader string) error
}

// RateLimitConfig enables the per-client limiter on unauthenticated endpoints.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

type Dependencies struct {
	Admin     AdminAuthenticator
	Polls     *polls.Service
	RateLimit RateLimitConfig
	Logger    *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Admin == nil {
		return nil, errMissingAdminAuthenticator
	}
	if deps.Polls == nil {
		return nil, errMissingPollService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": messageNotFound})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": messageMethodNotAllowed})
	})

	handler := &httpHandler{
		admin:  deps.Admin,
		polls:  deps.Polls,
		logger: logger,
	}

	limited := func(endpoint gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{endpoint}
	}
	if deps.RateLimit.Enabled {
		limiter := newClientRateLimiter(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst, time.Now)
		throttle := limiter.middleware(logger)
		limited = func(endpoint gin.HandlerFunc) []gin.HandlerFunc {
			return []gin.HandlerFunc{throttle, endpoint}
		}
	}

	register(router, http.MethodPost, "/admin/login", limited(handler.handleAdminLogin)...)
	register(router, http.MethodGet, "/admin/verify", handler.handleAdminVerify)
	register(router, http.MethodPost, "/polls/create", handler.authorizeAdmin, handler.handleCreatePoll)
	register(router, http.MethodPost, "/polls/state", handler.authorizeAdmin, handler.handlePollState)
	register(router, http.MethodPost, "/questions/create", handler.authorizeAdmin, handler.handleCreateQuestion)
	register(router, http.MethodPost, "/sessions/create", limited(handler.handleCreateSession)...)
	register(router, http.MethodPost, "/responses/submit", limited(handler.handleSubmitResponse)...)

	return router, nil
}

// register binds a route together with its preflight responder.
func register(router *gin.Engine, method, path string, handlers ...gin.HandlerFunc) {
	router.Handle(method, path, handlers...)
	router.OPTIONS(path, handlePreflight)
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    corsAllowMethods,
		AllowHeaders:    corsAllowHeaders,
		MaxAge:          corsMaxAge,
	})
}

// handlePreflight answers OPTIONS requests that carry no Origin and so bypass the CORS middleware.
func handlePreflight(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", strings.Join(corsAllowMethods, ", "))
	header.Set("Access-Control-Allow-Headers", strings.Join(corsAllowHeaders, ", "))
	header.Set("Access-Control-Max-Age", strconv.FormatInt(int64(corsMaxAge/time.Second), 10))
	c.Status(http.StatusNoContent)
}

type httpHandler struct {
	admin  AdminAuthenticator
	polls  *polls.Service
	logger *zap.Logger
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	if err := h.admin.VerifyAdminCredential(c.GetHeader("Authorization")); err != nil {
		h.logCredentialFailure(err, c.FullPath())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": messageUnauthorized})
		return
	}
	c.Next()
}

func (h *httpHandler) logCredentialFailure(err error, path string) {
	level := zapcore.WarnLevel
	if errors.Is(err, jwt.ErrTokenExpired) {
		level = zapcore.InfoLevel
	}
	h.logger.Log(level, "admin credential rejected",
		zap.String("reason", string(auth.FailureReason(err))),
		zap.String("path", path),
		zap.Error(err))
}

// respondError translates a poll service failure into its status code and message.
// Store failures are logged by the service and reported generically.
func (h *httpHandler) respondError(c *gin.Context, err error, storeFailureMessage string) {
	var validationErr *polls.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.Join(validationErr.Messages, ", ")})
	case errors.Is(err, polls.ErrPollNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Poll not found"})
	case errors.Is(err, polls.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
	case errors.Is(err, polls.ErrOptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Answer option not found"})
	case errors.Is(err, polls.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, polls.ErrSlugConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
	case errors.Is(err, polls.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid state transition"})
	case errors.Is(err, polls.ErrPollNotOpen):
		c.JSON(http.StatusForbidden, gin.H{"error": "Poll is not accepting responses"})
	default:
		var serviceErr *polls.ServiceError
		if !errors.As(err, &serviceErr) {
			h.logger.Error("unclassified poll service failure", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": storeFailureMessage})
	}
}
