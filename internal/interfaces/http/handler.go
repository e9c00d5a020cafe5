package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gartenconnect/internal/entities"
	"gartenconnect/internal/repository"
	"gartenconnect/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

const maxRequestBytes = 1 << 20

// MessageSender delivers outbound units to a chat
type MessageSender interface {
	Send(ctx context.Context, chatID string, unit entities.RenderUnit) error
}

// SessionInfo exposes the WhatsApp pairing state
type SessionInfo interface {
	Status() map[string]interface{}
	QR() string
}

// UsageStore is the per-chat message ledger
type UsageStore interface {
	IncrementSent(ctx context.Context, chatID string, n int) error
	GetChatUsage(ctx context.Context, chatID string) (*repository.ChatUsage, error)
}

type Authenticator interface {
	Login(username, password string) (string, error)
}

type Handler struct {
	sender  MessageSender
	session SessionInfo
	usage   UsageStore
	auth    Authenticator
	log     zerolog.Logger
	stats   map[string]func() interface{}
}

// NewHandler wires the REST handlers. usage may be nil when no database is configured.
func NewHandler(sender MessageSender, session SessionInfo, usage UsageStore, auth Authenticator, log zerolog.Logger) *Handler {
	return &Handler{
		sender:  sender,
		session: session,
		usage:   usage,
		auth:    auth,
		log:     log,
	}
}

type RouteOptions struct {
	// MediaRoot is served at /media when media is stored locally
	MediaRoot string
	SendRate  rate.Limit
	SendBurst int
	// Stats are reported by /health under their key
	Stats map[string]func() interface{}
}

func SetupRoutes(r *gin.Engine, h *Handler, middleware *Middleware, opts RouteOptions) {
	h.stats = opts.Stats

	r.Use(RequestID())
	r.Use(RequestLogger(h.log))
	r.Use(Metrics())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(maxRequestBytes))
	r.Use(middleware.CORSMiddleware())

	// Public Routes
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.MediaRoot != "" {
		r.Static("/media", opts.MediaRoot)
	}

	if opts.SendRate == 0 {
		opts.SendRate, opts.SendBurst = 5, 10
	}
	r.POST("/send_message",
		middleware.RateLimitPerIP(opts.SendRate, opts.SendBurst),
		middleware.AuthRequired(),
		h.SendMessage,
	)

	// Public Auth Routes
	r.POST("/api/auth/login", middleware.RateLimitPerIP(1, 5), h.Login)

	// Protected Routes
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	{
		api.GET("/whatsapp/qr", h.GetQRCode)
		api.GET("/whatsapp/status", h.GetWhatsAppStatus)
		api.GET("/usage", h.GetUsage)
	}
}

type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendMessage sends a text to a phone number on behalf of an external system
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingFields})
		return
	}

	message := SanitizeString(req.Message)
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingFields})
		return
	}
	if !ValidateLength(message, 1, MaxMessageLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMessageLength})
		return
	}

	chatID, err := NormalizePhone(req.Phone)
	if err != nil {
		var phoneErr *PhoneValidationError
		if errors.As(err, &phoneErr) {
			h.log.Debug().Int("digits", phoneErr.Digits).Msg("rejected phone number")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sender.Send(c.Request.Context(), chatID, entities.TextUnit(message)); err != nil {
		h.log.Error().Err(err).Str("chat", chatID).Msg("failed to send outbound message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": errSendFailed})
		return
	}

	if h.usage != nil {
		if err := h.usage.IncrementSent(c.Request.Context(), chatID, 1); err != nil {
			h.log.Warn().Err(err).Str("chat", chatID).Msg("failed to record usage")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetQRCode returns the pending pairing QR code as PNG
func (h *Handler) GetQRCode(c *gin.Context) {
	qrCodeString := h.session.QR()
	if qrCodeString == "" {
		if loggedIn, _ := h.session.Status()["logged_in"].(bool); loggedIn {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}

	// Generate PNG
	png, err := qrcode.Encode(qrCodeString, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// GetWhatsAppStatus returns WhatsApp connection status
func (h *Handler) GetWhatsAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// GetUsage returns message counters for ?chat= (a phone number or a chat id)
func (h *Handler) GetUsage(c *gin.Context) {
	if h.usage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "usage tracking disabled"})
		return
	}

	chatID := c.Query("chat")
	if !ValidChatID(chatID) {
		normalized, err := NormalizePhone(chatID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidChat})
			return
		}
		chatID = normalized
	}

	usage, err := h.usage.GetChatUsage(c.Request.Context(), chatID)
	if err != nil {
		h.log.Error().Err(err).Str("chat", chatID).Msg("failed to load usage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *Handler) Login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.auth.Login(loginReq.Username, loginReq.Password)
	switch {
	case errors.Is(err, usecases.ErrAuthDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "Authentication disabled"})
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	default:
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func (h *Handler) Health(c *gin.Context) {
	status := h.session.Status()
	connected, _ := status["connected"].(bool)
	resp := gin.H{
		"status":   "ok",
		"whatsapp": connected,
	}
	for name, stat := range h.stats {
		resp[name] = stat()
	}
	c.JSON(http.StatusOK, resp)
}
