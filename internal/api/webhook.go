package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// webhookBody covers the JSON notification shape used by the payment
// gateway. Query-parameter notifications carry the same fields as
// ?id=...&topic=... instead.
type webhookBody struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// handlePaymentWebhook processes payment gateway notifications. The
// gateway retries on non-2xx responses, so the handler always
// acknowledges with 202 and relies on notification dedup plus payment
// lookup for correctness.
func (s *HTTPServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	notificationID, paymentID := extractNotification(r)
	if paymentID == "" {
		s.logger.Warn().
			Str("query", r.URL.RawQuery).
			Msg("Webhook without payment id, acknowledging")
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if notificationID == "" {
		notificationID = paymentID
	}

	if err := s.booker.HandleGatewayNotification(r.Context(), notificationID, paymentID); err != nil {
		// Acknowledge anyway: a retry storm from the gateway will
		// not recover a failed lookup, and dedup absorbs duplicates.
		s.logger.Error().Err(err).
			Str("notification_id", notificationID).
			Str("payment_id", paymentID).
			Msg("Webhook processing failed")
	}

	w.WriteHeader(http.StatusAccepted)
}

// extractNotification pulls the notification and payment identifiers
// from either the query string or the JSON body.
func extractNotification(r *http.Request) (notificationID, paymentID string) {
	query := r.URL.Query()
	notificationID = query.Get("id")
	topic := query.Get("topic")
	if topic == "" {
		topic = query.Get("type")
	}
	if strings.Contains(topic, "payment") && notificationID != "" {
		return notificationID, notificationID
	}
	if dataID := query.Get("data.id"); dataID != "" {
		return notificationID, dataID
	}

	var body webhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		if body.ID != "" {
			notificationID = body.ID
		}
		if body.Data.ID != "" {
			return notificationID, body.Data.ID
		}
		if strings.Contains(body.Type, "payment") && body.ID != "" {
			return notificationID, body.ID
		}
	}
	return notificationID, ""
}
