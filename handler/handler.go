package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"order-relay/internal/domain"
	"order-relay/internal/usecase"
)

const (
	pathMessages = "/api/messages"
	pathWebpost  = "/api/webpost"
	pathNotify   = "/api/notify"

	correlationHeader = "X-Correlation-Id"
)

type ActivityHandler interface {
	HandleActivity(ctx context.Context, a domain.Activity) error
}

type Notifier interface {
	Webpost(ctx context.Context, in usecase.WebpostInput) (usecase.WebpostOutput, error)
	Notify(ctx context.Context, in usecase.NotifyInput) (usecase.NotifyOutput, error)
}

type Handler struct {
	bot      ActivityHandler
	notifier Notifier
	apiKey   string
	logger   *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type ackResponse struct {
	OK bool `json:"ok"`
}

type webpostRequest struct {
	StaffEmail string `json:"staffEmail"`
	Text       string `json:"text"`
}

type webpostResponse struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	StaffEmail string `json:"staffEmail,omitempty"`
	Error      string `json:"error,omitempty"`
}

type notifyRequest struct {
	Text string `json:"text"`
}

type notifyResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// NewHandler builds the API Gateway handler. apiKey guards the notify
// endpoints and must be non-empty.
func NewHandler(bot ActivityHandler, notifier Notifier, apiKey string, logger *slog.Logger) (*Handler, error) {
	if bot == nil {
		return nil, errors.New("handler: activity handler must not be nil")
	}
	if notifier == nil {
		return nil, errors.New("handler: notifier must not be nil")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("handler: api key must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bot: bot, notifier: notifier, apiKey: apiKey, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := header(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", corrID)

	path := strings.TrimRight(req.Path, "/")
	if req.HTTPMethod != http.MethodPost {
		if path == pathMessages || path == pathWebpost || path == pathNotify {
			return jsonResponse(http.StatusMethodNotAllowed, corrID, errorResponse{Error: "METHOD_NOT_ALLOWED"}), nil
		}
		return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: string(usecase.ErrorNotFound)}), nil
	}

	switch path {
	case pathMessages:
		return h.handleMessages(ctx, logger, corrID, req), nil
	case pathWebpost:
		if !h.authorized(req.Headers) {
			logger.Warn("unauthorized webpost request")
			return jsonResponse(http.StatusUnauthorized, corrID, webpostResponse{Error: "unauthorized"}), nil
		}
		return h.handleWebpost(ctx, logger, corrID, req), nil
	case pathNotify:
		if !h.authorized(req.Headers) {
			logger.Warn("unauthorized notify request")
			return jsonResponse(http.StatusUnauthorized, corrID, webpostResponse{Error: "unauthorized"}), nil
		}
		return h.handleNotify(ctx, logger, corrID, req), nil
	default:
		return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: string(usecase.ErrorNotFound)}), nil
	}
}

func (h *Handler) handleMessages(ctx context.Context, logger *slog.Logger, corrID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	activity, err := domain.ParseActivity([]byte(req.Body))
	if err != nil {
		logger.Warn("rejected activity", "err", err)
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)})
	}
	logger = logger.With("conversation_id", activity.Conversation.ID, "activity_type", activity.Type)

	if err := h.bot.HandleActivity(ctx, activity); err != nil {
		status, code := mapError(err)
		logger.Error("activity failed", "status", status, "code", code, "err", err)
		return jsonResponse(status, corrID, errorResponse{Error: code})
	}
	return jsonResponse(http.StatusOK, corrID, ackResponse{OK: true})
}

func (h *Handler) handleWebpost(ctx context.Context, logger *slog.Logger, corrID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var in webpostRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return jsonResponse(http.StatusBadRequest, corrID, webpostResponse{Error: "invalid JSON body"})
	}

	out, err := h.notifier.Webpost(ctx, usecase.WebpostInput{StaffEmail: in.StaffEmail, Text: in.Text})
	if err != nil {
		status, _ := mapError(err)
		logger.Error("webpost failed", "status", status, "staff_email", in.StaffEmail, "err", err)
		resp := webpostResponse{Error: usecase.ReasonOf(err)}
		if status == http.StatusNotFound || status == http.StatusBadRequest {
			resp.StaffEmail = out.StaffEmail
		}
		return jsonResponse(status, corrID, resp)
	}
	return jsonResponse(http.StatusOK, corrID, webpostResponse{OK: true, Message: out.Message, StaffEmail: out.StaffEmail})
}

func (h *Handler) handleNotify(ctx context.Context, logger *slog.Logger, corrID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var in notifyRequest
	if strings.TrimSpace(req.Body) != "" {
		if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
			return jsonResponse(http.StatusBadRequest, corrID, webpostResponse{Error: "invalid JSON body"})
		}
	}

	out, err := h.notifier.Notify(ctx, usecase.NotifyInput{Text: in.Text})
	if err != nil {
		status, _ := mapError(err)
		logger.Error("notify failed", "status", status, "err", err)
		return jsonResponse(status, corrID, webpostResponse{Error: usecase.ReasonOf(err)})
	}
	return jsonResponse(http.StatusOK, corrID, notifyResponse{
		OK:      true,
		Message: out.Message,
		Sent:    out.Report.Sent,
		Failed:  out.Report.Failed,
		Skipped: out.Report.Skipped,
	})
}

func (h *Handler) authorized(headers map[string]string) bool {
	got, ok := strings.CutPrefix(header(headers, "Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(h.apiKey)) == 1
}

func mapError(err error) (int, string) {
	code := usecase.CodeOf(err)
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(code)
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized, string(code)
	case usecase.ErrorNotFound:
		return http.StatusNotFound, string(code)
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(code)
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
}

func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}
