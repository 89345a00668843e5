package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/localchat/plugin/ai/memory"
	"github.com/hrygo/localchat/server/auth"
	chaterrors "github.com/hrygo/localchat/server/internal/errors"
	"github.com/hrygo/localchat/server/internal/observability"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response     string `json:"response"`
	ResponseHTML string `json:"response_html"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type historyResponse struct {
	Turns            []memory.Turn `json:"turns"`
	MaxHistoryLength int           `json:"max_history_length"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler exposes Service over HTTP. Routes expect the session middleware
// to have run.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the chat endpoints. chatMiddleware wraps POST /chat only.
func (h *Handler) RegisterRoutes(g *echo.Group, chatMiddleware ...echo.MiddlewareFunc) {
	g.POST("/chat", h.Chat, chatMiddleware...)
	g.POST("/reset", h.Reset)
	g.GET("/api/v1/history", h.GetHistory)
}

// Chat handles POST /chat.
func (h *Handler) Chat(c echo.Context) error {
	rc := h.requestContext(c, OperationChat)

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, chaterrors.InvalidArgument("invalid request body"))
	}

	reply, err := h.service.Chat(c.Request().Context(), rc, auth.SessionIDFromContext(c), req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, chatResponse{
		Response:     reply.Text,
		ResponseHTML: reply.HTML,
	})
}

// Reset handles POST /reset.
func (h *Handler) Reset(c echo.Context) error {
	rc := h.requestContext(c, OperationReset)

	if err := h.service.Reset(c.Request().Context(), rc, auth.SessionIDFromContext(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

// GetHistory handles GET /api/v1/history.
func (h *Handler) GetHistory(c echo.Context) error {
	turns, err := h.service.History(c.Request().Context(), auth.SessionIDFromContext(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, historyResponse{
		Turns:            turns,
		MaxHistoryLength: h.service.HistoryLimit(),
	})
}

func (h *Handler) requestContext(c echo.Context, operation string) *observability.RequestContext {
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	rc := observability.NewRequestContextWithID(h.logger, requestID, operation, auth.SessionIDFromContext(c))
	c.SetRequest(c.Request().WithContext(observability.WithRequestContext(c.Request().Context(), rc)))
	return rc
}

// writeError renders err as an ErrorResponse with the status of its code.
func writeError(c echo.Context, err error) error {
	var chatErr *chaterrors.ChatError
	if !errors.As(err, &chatErr) {
		chatErr = chaterrors.Wrap(err, chaterrors.ErrCodeInternal, "internal error")
	}
	return c.JSON(chatErr.HTTPStatus(), ErrorResponse{
		Error: chatErr.Message,
		Code:  string(chatErr.Code),
	})
}

// RateLimitErrorBody is the 429 body of the chat rate limiter.
func RateLimitErrorBody(echo.Context) any {
	err := chaterrors.RateLimitExceeded("too many messages, slow down")
	return ErrorResponse{Error: err.Message, Code: string(err.Code)}
}
