// Package notify delivers Telegram messages about rooftop decisions and laundry reminders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

const (
	sendTimeout = 10 * time.Second
	queueSize   = 256
)

// Sender is the part of the Telegram bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ErrBlocked is returned when the recipient has blocked the bot.
var ErrBlocked = errors.New("recipient blocked the bot")

// NewBot connects to the Telegram bot API. Every API call is bounded by sendTimeout.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// Notifier turns booking events into Telegram messages.
type Notifier struct {
	sender    Sender
	users     domain.UserRepository
	adminChat int64
	timeout   time.Duration
	queue     chan events.Event
	logger    zerolog.Logger
}

// NewNotifier creates a notifier. adminChat 0 disables admin messages.
func NewNotifier(sender Sender, users domain.UserRepository, adminChat int64, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		users:     users,
		adminChat: adminChat,
		timeout:   sendTimeout,
		queue:     make(chan events.Event, queueSize),
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Subscribe registers the notifier for the rooftop events it reports on.
// Events are queued and delivered by Run, so publishers never wait on Telegram.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.enqueue,
		events.RooftopRequestSubmitted,
		events.RooftopRequestApproved,
		events.RooftopRequestRejected,
		events.RooftopBookingDeleted,
	)
}

// enqueue hands e to Run. A full queue drops the event.
func (n *Notifier) enqueue(e events.Event) error {
	select {
	case n.queue <- e:
		return nil
	default:
		n.logger.Warn().Str("event", e.Type).Int64("id", e.ID).Msg("notification queue full, dropping event")
		return nil
	}
}

// Run delivers queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.queue:
			if err := n.HandleEvent(e); err != nil {
				n.logger.Warn().Err(err).Str("event", e.Type).Int64("id", e.ID).Msg("notification failed")
			}
		}
	}
}

// HandleEvent sends the message matching e, if any.
func (n *Notifier) HandleEvent(e events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	date := e.Date.Format("02.01.2006")
	switch e.Type {
	case events.RooftopRequestSubmitted:
		if n.adminChat == 0 {
			return nil
		}
		return n.Send(ctx, n.adminChat, fmt.Sprintf("🏙 New rooftop request #%d\n\n👤 Room %s\n📅 %s", e.ID, e.Booker, date))
	case events.RooftopRequestApproved:
		msg := fmt.Sprintf("✅ Your rooftop request #%d for %s was approved.", e.ID, date)
		return n.toResident(ctx, e.Booker, withComment(msg, e.Reason))
	case events.RooftopRequestRejected:
		msg := fmt.Sprintf("❌ Your rooftop request #%d for %s was rejected.", e.ID, date)
		return n.toResident(ctx, e.Booker, withComment(msg, e.Reason))
	case events.RooftopBookingDeleted:
		if e.Actor == e.Booker {
			return nil
		}
		return n.toResident(ctx, e.Booker, fmt.Sprintf("🚫 Your rooftop booking for %s was cancelled by an administrator.", date))
	}
	return nil
}

// SendReminder tells the booker that a laundry slot is about to start.
func (n *Notifier) SendReminder(ctx context.Context, chatID int64, b models.SlotBooking) error {
	msg := fmt.Sprintf("🧺 Reminder: your %s slot on %s starts at %s.",
		b.Machine, b.Date.Format("02.01.2006"), timegrid.FormatSlot(b.SlotStart))
	return n.Send(ctx, chatID, msg)
}

// SendDocument uploads a file to the admin chat.
func (n *Notifier) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if n.adminChat == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(n.adminChat, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	if err := n.send(ctx, doc); err != nil {
		return fmt.Errorf("send document %s: %w", filename, err)
	}
	return nil
}

// Send delivers text to chatID.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	if err := n.send(ctx, tgbotapi.NewMessage(chatID, text)); err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) && tgErr.Code == 403 {
			return fmt.Errorf("send to %d: %w", chatID, ErrBlocked)
		}
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// send runs one API call and gives up when ctx ends. The call itself is bounded by the bot's client timeout.
func (n *Notifier) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := n.sender.Send(c)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) toResident(ctx context.Context, room, text string) error {
	user, err := n.users.GetUser(ctx, room)
	if err != nil {
		return fmt.Errorf("load user %s: %w", room, err)
	}
	if user == nil || user.TelegramChatID == 0 {
		n.logger.Debug().Str("room", room).Msg("no telegram chat linked, skipping")
		return nil
	}
	return n.Send(ctx, user.TelegramChatID, text)
}

func withComment(msg, comment string) string {
	if comment = strings.TrimSpace(comment); comment != "" {
		msg += "\n\n💬 " + comment
	}
	return msg
}
