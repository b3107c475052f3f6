package notify

import (
	"context"
	"testing"
	"time"

	"agendo/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func sampleAppointment() *models.Appointment {
	return &models.Appointment{
		ID:             "appt-1",
		ProfessionalID: "pro-1",
		ServiceID:      "svc-1",
		Date:           time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		StartMin:       540,
		DurationMin:    60,
		Client:         models.ClientInfo{Name: "Bruno Lima", Phone: "+5511999990000"},
		Status:         models.StatusConfirmed,
	}
}

func TestNotifyAppointment(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewTelegramNotifier(sender)

	svc := &models.Service{Name: "Consultation"}
	err := notifier.NotifyAppointment(context.Background(), 42, sampleAppointment(), svc)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "07/09/2026")
	assert.Contains(t, msg.Text, "09:00")
	assert.Contains(t, msg.Text, "Consultation")
	assert.Contains(t, msg.Text, "Bruno Lima")
}

func TestNotifyAppointment_NoServiceFallsBackToID(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewTelegramNotifier(sender)

	err := notifier.NotifyAppointment(context.Background(), 42, sampleAppointment(), nil)
	require.NoError(t, err)

	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "svc-1")
}

func TestNotifyCancellation(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewTelegramNotifier(sender)

	err := notifier.NotifyCancellation(context.Background(), 42, sampleAppointment())
	require.NoError(t, err)

	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "canceled")
	assert.Contains(t, msg.Text, "Bruno Lima")
}
