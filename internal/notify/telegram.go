// Package notify pushes booking events to the salon managers' Telegram
// chats.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"glowbook/internal/events"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// Sender sends a prepared Telegram message. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier forwards appointment events to manager chats, throttled
// so a burst of bookings cannot trip Telegram's flood limits.
type TelegramNotifier struct {
	sender  Sender
	chats   []int64
	limiter *rate.Limiter
	offset  float64 // venue UTC offset, for human-readable times
	logger  *zerolog.Logger
}

// New creates a notifier talking to the Telegram Bot API.
func New(token string, chats []int64, venueOffsetHours float64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewWithSender(bot, chats, venueOffsetHours, logger), nil
}

// NewWithSender creates a notifier over an existing sender.
func NewWithSender(sender Sender, chats []int64, venueOffsetHours float64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:  sender,
		chats:   chats,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		offset:  venueOffsetHours,
		logger:  logger,
	}
}

// Attach subscribes the notifier to booking events on the bus. Sends run on
// their own goroutine: bus handlers are called inline from the payment
// webhook, which must not wait on Telegram's flood limiter.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	bus.Subscribe(events.AppointmentConfirmed, func(e events.Event) error {
		n.dispatch(formatConfirmed(e.Appointment, n.offset))
		return nil
	})
	bus.Subscribe(events.AppointmentAbandoned, func(e events.Event) error {
		n.dispatch(formatAbandoned(e.Appointment, n.offset))
		return nil
	})
}

func (n *TelegramNotifier) dispatch(text string) {
	go func() {
		if err := n.broadcast(text); err != nil {
			n.logger.Error().Err(err).Msg("telegram broadcast failed")
		}
	}()
}

func (n *TelegramNotifier) broadcast(text string) error {
	ctx := context.Background()
	for _, chatID := range n.chats {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
		}
	}
	return nil
}

func formatConfirmed(a *models.Appointment, offset float64) string {
	local := schedule.VenueLocal(a.StartTime, offset)
	return fmt.Sprintf("*New appointment confirmed*\n\n%s\n%s at %s\n%s\nDeposit: %d.%02d",
		a.ClientName,
		local.Format("Mon, 02 Jan 2006"),
		local.Format("15:04"),
		a.ServiceName,
		a.DepositCents/100, a.DepositCents%100,
	)
}

func formatAbandoned(a *models.Appointment, offset float64) string {
	local := schedule.VenueLocal(a.StartTime, offset)
	return fmt.Sprintf("Appointment abandoned: %s, %s at %s (%s)",
		a.ClientName,
		local.Format("02 Jan"),
		local.Format("15:04"),
		a.ServiceName,
	)
}
