// Package notify delivers booking notifications to professionals over
// Telegram.
package notify

import (
	"context"
	"fmt"

	"agendo/internal/availability"
	"agendo/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the subset of the Telegram bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot Sender
}

// NewTelegramNotifier wraps an authorized bot.
func NewTelegramNotifier(bot Sender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// NewBot authorizes against the Telegram API with the given token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// NotifyAppointment tells the professional about a new booking.
func (n *TelegramNotifier) NotifyAppointment(ctx context.Context, chatID int64, appt *models.Appointment, svc *models.Service) error {
	serviceName := appt.ServiceID
	if svc != nil {
		serviceName = svc.Name
	}

	text := fmt.Sprintf(
		"📅 New booking\n%s %s–%s\n%s\nClient: %s (%s)\nStatus: %s",
		appt.Date.Format("02/01/2006"),
		availability.Clock(appt.StartMin),
		availability.Clock(appt.StartMin+appt.DurationMin),
		serviceName,
		appt.Client.Name,
		appt.Client.Phone,
		appt.Status,
	)

	_, err := n.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// NotifyCancellation tells the professional a booking was canceled.
func (n *TelegramNotifier) NotifyCancellation(ctx context.Context, chatID int64, appt *models.Appointment) error {
	text := fmt.Sprintf(
		"❌ Booking canceled\n%s %s–%s\nClient: %s",
		appt.Date.Format("02/01/2006"),
		availability.Clock(appt.StartMin),
		availability.Clock(appt.StartMin+appt.DurationMin),
		appt.Client.Name,
	)

	_, err := n.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
