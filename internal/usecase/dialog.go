package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"order-relay/internal/cards"
	"order-relay/internal/daterange"
	"order-relay/internal/domain"
	"order-relay/internal/session"
)

// OrderNotificationPrefix starts every order notification pushed through
// /api/webpost. Web-originated turns carrying it are echoed untouched.
const OrderNotificationPrefix = "you got order"

const (
	cmdCheck   = "/check"
	cmdReset   = "/reset"
	cmdCount   = "/count"
	cmdState   = "/state"
	cmdRuntime = "/runtime"
	cmdAmount  = "/amount"

	msgQueryFailed   = "The order query failed, please try again later."
	msgChooseOption  = "Please reply with 1, 2 or 3."
	msgAskDateRange  = "Enter a date range as " + daterange.Format + ", for example 31-12-2024 to 01-05-2025."
	msgBadDateRange  = "Invalid date format. Send /check to start again and use " + daterange.Format + "."
	msgAskLatest     = "How many of your latest orders should I show? Enter a number."
	msgNoRangeOrders = "No orders in this range."
	msgNoOrders      = "No orders found."
	msgAskAmount     = "Send the amount details to check."
	msgNoAmountCheck = "The amount check service is not configured."
	msgAmountFailed  = "The amount check failed, please try again later."
	msgAmountSent    = "Amount check submitted."
	msgReset         = "Ok, I've deleted the current conversation state."
)

var menuOptions = []string{"All my orders", "My orders in a date range", "My latest orders"}

var mentionPattern = regexp.MustCompile(`(?is)<at>.*?</at>`)

type SessionStore interface {
	session.LoadSaver
	Delete(ctx context.Context, conversationID string) error
}

type OrderQuerier interface {
	AllOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error)
	LatestByEmail(ctx context.Context, staffEmail string, count int) ([]domain.Order, error)
}

// EmailResolver maps a directory object id to a mail address. An empty
// result means the directory has none.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, id string) (string, error)
}

// CountHandler receives turns of the legacy amount-check flow.
type CountHandler interface {
	CheckAmount(ctx context.Context, payload any) error
}

type amountCheck struct {
	ConversationID string `json:"conversationId"`
	StaffEmail     string `json:"staffEmail"`
	Text           string `json:"text"`
}

// Dialog drives the per-conversation /check flow.
type Dialog struct {
	sessions   SessionStore
	saver      *session.Retrier
	orders     OrderQuerier
	identities EmailResolver
	counter    CountHandler
	loc        *time.Location
	logger     *slog.Logger
	version    string

	saveAttempts int
}

type DialogOption func(*Dialog)

func WithEmailResolver(r EmailResolver) DialogOption {
	return func(d *Dialog) { d.identities = r }
}

// WithCountHandler enables the amount-check flow. Without it the flow
// reports that the service is not configured.
func WithCountHandler(h CountHandler) DialogOption {
	return func(d *Dialog) { d.counter = h }
}

func WithLocation(loc *time.Location) DialogOption {
	return func(d *Dialog) {
		if loc != nil {
			d.loc = loc
		}
	}
}

func WithSaveAttempts(n int) DialogOption {
	return func(d *Dialog) { d.saveAttempts = n }
}

func WithDialogLogger(logger *slog.Logger) DialogOption {
	return func(d *Dialog) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithVersion(v string) DialogOption {
	return func(d *Dialog) { d.version = v }
}

func NewDialog(sessions SessionStore, orders OrderQuerier, opts ...DialogOption) (*Dialog, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if orders == nil {
		return nil, errors.New("usecase: order querier must not be nil")
	}
	d := &Dialog{
		sessions:     sessions,
		orders:       orders,
		loc:          time.UTC,
		logger:       slog.Default(),
		version:      "dev",
		saveAttempts: session.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	saver, err := session.NewRetrier(sessions, d.saveAttempts, d.logger)
	if err != nil {
		return nil, err
	}
	d.saver = saver
	return d, nil
}

// IsOrderNotification reports whether a is an order notification echoed
// back from the web-post path.
func IsOrderNotification(a domain.Activity) bool {
	return a.Kind() == domain.KindWebPost && strings.HasPrefix(strings.TrimSpace(a.Text), OrderNotificationPrefix)
}

// Respond interprets one message turn and returns the replies to send.
// Replies computed before a failed save are still returned with the error.
func (d *Dialog) Respond(ctx context.Context, a domain.Activity) ([]domain.Reply, error) {
	if IsOrderNotification(a) {
		return []domain.Reply{domain.TextReply(a.Text)}, nil
	}

	convID := a.Conversation.ID
	sess, err := d.saver.Load(ctx, convID)
	var corrupt *session.CorruptError
	switch {
	case errors.As(err, &corrupt):
		d.logger.Warn("session document unreadable, replacing", "conversation_id", convID, "err", err)
		sess = domain.NewSession(convID)
		sess.ETag = corrupt.ETag
	case err != nil:
		d.logger.Warn("session load failed, starting fresh", "conversation_id", convID, "err", err)
		sess = domain.NewSession(convID)
	}
	sess.MessageCount++

	text := cleanText(a.Text)
	if sess.Step == domain.StepNone && strings.EqualFold(text, cmdReset) {
		if err := d.sessions.Delete(ctx, convID); err != nil {
			return nil, newError(ErrorInternal, "failed to reset session", err)
		}
		return []domain.Reply{domain.TextReply(msgReset)}, nil
	}

	replies := d.step(ctx, &sess, a, text)
	if err := d.saver.Save(ctx, &sess); err != nil {
		return replies, newError(ErrorInternal, "failed to persist session", err)
	}
	return replies, nil
}

func (d *Dialog) step(ctx context.Context, sess *domain.ConversationSession, a domain.Activity, text string) []domain.Reply {
	switch sess.Step {
	case domain.StepAwaitOption:
		return d.onOption(ctx, sess, a, text)
	case domain.StepAwaitDateRange:
		sess.Step = domain.StepNone
		return d.onDateRange(ctx, sess, text)
	case domain.StepAwaitLatestOrderCount:
		sess.Step = domain.StepNone
		return d.onLatest(ctx, sess, text)
	case domain.StepAwaitCount:
		sess.Step = domain.StepNone
		return d.onAmount(ctx, sess, text)
	default:
		return d.onIdle(ctx, sess, a, text)
	}
}

func (d *Dialog) onIdle(ctx context.Context, sess *domain.ConversationSession, a domain.Activity, text string) []domain.Reply {
	switch strings.ToLower(text) {
	case cmdCheck:
		sess.StaffIdentity = d.resolveStaff(ctx, a.From)
		sess.Step = domain.StepAwaitOption
		return []domain.Reply{menuReply()}
	case cmdAmount:
		sess.StaffIdentity = d.resolveStaff(ctx, a.From)
		sess.Step = domain.StepAwaitCount
		return []domain.Reply{domain.TextReply(msgAskAmount)}
	case cmdCount:
		return []domain.Reply{domain.TextReply(fmt.Sprintf("The count is %d", sess.MessageCount))}
	case cmdState:
		buf, err := json.Marshal(sess)
		if err != nil {
			return []domain.Reply{domain.TextReply(err.Error())}
		}
		return []domain.Reply{domain.TextReply(string(buf))}
	case cmdRuntime:
		buf, _ := json.Marshal(map[string]string{"goversion": runtime.Version(), "version": d.version})
		return []domain.Reply{domain.TextReply(string(buf))}
	}
	return []domain.Reply{domain.TextReply(fmt.Sprintf("[%d] you said: %s", sess.MessageCount, a.Text))}
}

func (d *Dialog) onOption(ctx context.Context, sess *domain.ConversationSession, a domain.Activity, text string) []domain.Reply {
	if sess.StaffIdentity == "" {
		sess.StaffIdentity = d.resolveStaff(ctx, a.From)
	}
	switch text {
	case "1":
		sess.Step = domain.StepNone
		orders, err := d.orders.AllOrders(ctx, domain.OrderQuery{StaffEmail: sess.StaffIdentity})
		if err != nil {
			d.logQueryFailure(sess, "all", err)
			return []domain.Reply{domain.TextReply(msgQueryFailed)}
		}
		return []domain.Reply{domain.TextReply(fmt.Sprintf("You have %d orders.", len(orders)))}
	case "2":
		sess.Step = domain.StepAwaitDateRange
		return []domain.Reply{domain.TextReply(msgAskDateRange)}
	case "3":
		sess.Step = domain.StepAwaitLatestOrderCount
		return []domain.Reply{domain.TextReply(msgAskLatest)}
	}
	return []domain.Reply{domain.TextReply(msgChooseOption), menuReply()}
}

// onDateRange aborts the flow on a malformed range; the user starts over
// with /check.
func (d *Dialog) onDateRange(ctx context.Context, sess *domain.ConversationSession, text string) []domain.Reply {
	r, ok := daterange.Parse(text)
	if !ok {
		return []domain.Reply{domain.TextReply(msgBadDateRange)}
	}
	orders, err := d.orders.AllOrders(ctx, domain.OrderQuery{
		StaffEmail: sess.StaffIdentity,
		StartDate:  r.Start,
		EndDate:    r.End,
	})
	if err != nil {
		d.logQueryFailure(sess, "range", err)
		return []domain.Reply{domain.TextReply(msgQueryFailed)}
	}
	if len(orders) == 0 {
		return []domain.Reply{domain.TextReply(msgNoRangeOrders)}
	}
	return []domain.Reply{
		domain.TextReply(fmt.Sprintf("Found %d orders in %s.", len(orders), text)),
		{Attachment: cards.Attachment(cards.Orders("Orders in "+text, orders, d.loc))},
	}
}

func (d *Dialog) onLatest(ctx context.Context, sess *domain.ConversationSession, text string) []domain.Reply {
	count := parseCount(text)
	orders, err := d.orders.LatestByEmail(ctx, sess.StaffIdentity, count)
	if err != nil {
		d.logQueryFailure(sess, "latest", err)
		return []domain.Reply{domain.TextReply(msgQueryFailed)}
	}
	if len(orders) == 0 {
		return []domain.Reply{domain.TextReply(msgNoOrders)}
	}
	title := fmt.Sprintf("Latest %d orders", len(orders))
	return []domain.Reply{{Attachment: cards.Attachment(cards.Orders(title, orders, d.loc))}}
}

func (d *Dialog) onAmount(ctx context.Context, sess *domain.ConversationSession, text string) []domain.Reply {
	if d.counter == nil {
		return []domain.Reply{domain.TextReply(msgNoAmountCheck)}
	}
	err := d.counter.CheckAmount(ctx, amountCheck{
		ConversationID: sess.ConversationID,
		StaffEmail:     sess.StaffIdentity,
		Text:           text,
	})
	if err != nil {
		d.logger.Error("amount check failed", "conversation_id", sess.ConversationID, "err", err)
		return []domain.Reply{domain.TextReply(msgAmountFailed)}
	}
	return []domain.Reply{domain.TextReply(msgAmountSent)}
}

// resolveStaff returns the sender's mail address, falling back to
// "{name}_{id}" or the raw id when the directory has nothing usable.
func (d *Dialog) resolveStaff(ctx context.Context, from domain.ChannelAccount) string {
	lookupID := from.AADObjectID
	if lookupID == "" {
		lookupID = from.ID
	}
	if d.identities != nil && lookupID != "" {
		email, err := d.identities.ResolveEmail(ctx, lookupID)
		if err == nil && strings.TrimSpace(email) != "" {
			return strings.TrimSpace(email)
		}
		d.logger.Warn("identity lookup gave no address, using fallback", "user_id", lookupID, "err", err)
	}
	if name := strings.TrimSpace(from.Name); name != "" {
		return name + "_" + from.ID
	}
	return from.ID
}

func (d *Dialog) logQueryFailure(sess *domain.ConversationSession, query string, err error) {
	attrs := []any{"conversation_id", sess.ConversationID, "query", query, "err", err}
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		attrs = append(attrs, "status", statusErr.HTTPStatusCode())
	}
	d.logger.Error("order query failed", attrs...)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func menuReply() domain.Reply {
	var b strings.Builder
	b.WriteString("What would you like to check?")
	for i, opt := range menuOptions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return domain.Reply{
		Text:       b.String(),
		Attachment: cards.Attachment(cards.Menu("Order check", menuOptions)),
	}
}

var trailingInt = regexp.MustCompile(`-?\d+\s*$`)

// parseCount reads the trailing integer of text. Missing or non-positive
// values become 1.
func parseCount(text string) int {
	m := trailingInt.FindString(text)
	n, err := strconv.Atoi(strings.TrimSpace(m))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cleanText(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}
