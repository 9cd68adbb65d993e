package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"order-relay/internal/domain"
	"order-relay/internal/usecase"
)

const testKey = "s3cret"

type stubBot struct {
	in  domain.Activity
	err error
}

func (s *stubBot) HandleActivity(_ context.Context, a domain.Activity) error {
	s.in = a
	return s.err
}

type stubNotifier struct {
	webIn     usecase.WebpostInput
	webOut    usecase.WebpostOutput
	webErr    error
	notifyIn  usecase.NotifyInput
	notifyOut usecase.NotifyOutput
	notifyErr error
}

func (s *stubNotifier) Webpost(_ context.Context, in usecase.WebpostInput) (usecase.WebpostOutput, error) {
	s.webIn = in
	return s.webOut, s.webErr
}

func (s *stubNotifier) Notify(_ context.Context, in usecase.NotifyInput) (usecase.NotifyOutput, error) {
	s.notifyIn = in
	return s.notifyOut, s.notifyErr
}

func makeEvent(path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       path,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + testKey,
		},
		Body: body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, bot *stubBot, n *stubNotifier) *Handler {
	t.Helper()
	h, err := NewHandler(bot, n, testKey, nil)
	require.NoError(t, err)
	return h
}

const activityBody = `{"type":"message","id":"a1","text":"/check","from":{"id":"29:amy","name":"Amy"},"recipient":{"id":"28:bot"},"conversation":{"id":"conv-1","tenantId":"t1"},"channelId":"msteams","serviceUrl":"https://smba.example.com/"}`

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubNotifier{}, testKey, nil)
	require.Error(t, err)
	_, err = NewHandler(&stubBot{}, nil, testKey, nil)
	require.Error(t, err)
	_, err = NewHandler(&stubBot{}, &stubNotifier{}, " ", nil)
	require.Error(t, err)
}

func TestHandle_Messages(t *testing.T) {
	bot := &stubBot{}
	h := mustNewHandler(t, bot, &stubNotifier{})

	event := makeEvent("/api/messages", activityBody)
	delete(event.Headers, "Authorization")
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/check", bot.in.Text)
	require.Equal(t, "conv-1", bot.in.Conversation.ID)
	require.True(t, parseBody[ackResponse](t, resp.Body).OK)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_MessagesInvalidBody(t *testing.T) {
	h := mustNewHandler(t, &stubBot{}, &stubNotifier{})

	for _, body := range []string{`not-json`, `{"type":"message","conversation":{"id":"c"}}`} {
		resp, err := h.Handle(context.Background(), makeEvent("/api/messages", body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, string(usecase.ErrorInvalidInput), parseBody[errorResponse](t, resp.Body).Error)
	}
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid activity"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "unauthorized", err: &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "nope"}, status: http.StatusUnauthorized, code: string(usecase.ErrorUnauthorized)},
		{name: "not found", err: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "missing"}, status: http.StatusNotFound, code: string(usecase.ErrorNotFound)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "failed to send reply"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "failed to persist session"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mustNewHandler(t, &stubBot{err: tc.err}, &stubNotifier{})

			resp, err := h.Handle(context.Background(), makeEvent("/api/messages", activityBody))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.code, parseBody[errorResponse](t, resp.Body).Error)
		})
	}
}

func TestHandle_Unauthorized(t *testing.T) {
	for _, path := range []string{"/api/webpost", "/api/notify"} {
		for _, auth := range []string{"", "Bearer wrong", testKey, "Basic " + testKey} {
			n := &stubNotifier{}
			h := mustNewHandler(t, &stubBot{}, n)
			event := makeEvent(path, `{"staffEmail":"amy@example.com"}`)
			event.Headers["Authorization"] = auth

			resp, err := h.Handle(context.Background(), event)
			require.NoError(t, err)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %q", path, auth)
			require.False(t, parseBody[webpostResponse](t, resp.Body).OK)
			require.Empty(t, n.webIn.StaffEmail)
		}
	}
}

func TestHandle_AuthorizationHeaderCaseInsensitive(t *testing.T) {
	n := &stubNotifier{notifyOut: usecase.NotifyOutput{Message: "you got order"}}
	h := mustNewHandler(t, &stubBot{}, n)
	event := makeEvent("/api/notify", ``)
	delete(event.Headers, "Authorization")
	event.Headers["authorization"] = "Bearer " + testKey

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandle_Webpost(t *testing.T) {
	n := &stubNotifier{webOut: usecase.WebpostOutput{StaffEmail: "amy@example.com", Message: "you got order"}}
	h := mustNewHandler(t, &stubBot{}, n)

	resp, err := h.Handle(context.Background(), makeEvent("/api/webpost", `{"staffEmail":"amy@example.com"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.WebpostInput{StaffEmail: "amy@example.com"}, n.webIn)
	require.Equal(t, webpostResponse{OK: true, Message: "you got order", StaffEmail: "amy@example.com"}, parseBody[webpostResponse](t, resp.Body))
}

func TestHandle_WebpostNotFound(t *testing.T) {
	n := &stubNotifier{
		webOut: usecase.WebpostOutput{StaffEmail: "bob@example.com"},
		webErr: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "no conversation reference for staffEmail"},
	}
	h := mustNewHandler(t, &stubBot{}, n)

	resp, err := h.Handle(context.Background(), makeEvent("/api/webpost", `{"staffEmail":"bob@example.com","text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	out := parseBody[webpostResponse](t, resp.Body)
	require.False(t, out.OK)
	require.Equal(t, "bob@example.com", out.StaffEmail)
	require.Equal(t, "no conversation reference for staffEmail", out.Error)
}

func TestHandle_WebpostSendFailure(t *testing.T) {
	n := &stubNotifier{webErr: &usecase.Error{Code: usecase.ErrorInternal, Reason: "failed to send message"}}
	h := mustNewHandler(t, &stubBot{}, n)

	resp, err := h.Handle(context.Background(), makeEvent("/api/webpost", `{"staffEmail":"amy@example.com"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, webpostResponse{Error: "failed to send message"}, parseBody[webpostResponse](t, resp.Body))
}

func TestHandle_Notify(t *testing.T) {
	n := &stubNotifier{notifyOut: usecase.NotifyOutput{
		Message: "maintenance",
		Report:  usecase.Report{Attempted: 4, Sent: 3, Failed: 1, Skipped: 2},
	}}
	h := mustNewHandler(t, &stubBot{}, n)

	resp, err := h.Handle(context.Background(), makeEvent("/api/notify", `{"text":"maintenance"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "maintenance", n.notifyIn.Text)
	require.Equal(t, notifyResponse{OK: true, Message: "maintenance", Sent: 3, Failed: 1, Skipped: 2}, parseBody[notifyResponse](t, resp.Body))
}

func TestHandle_RoutingErrors(t *testing.T) {
	h := mustNewHandler(t, &stubBot{}, &stubNotifier{})

	resp, err := h.Handle(context.Background(), makeEvent("/api/unknown", `{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	event := makeEvent("/api/messages/", activityBody)
	event.HTTPMethod = http.MethodGet
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := mustNewHandler(t, &stubBot{}, &stubNotifier{})

	event := makeEvent("/api/messages", activityBody)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
