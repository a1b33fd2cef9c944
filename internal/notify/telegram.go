// Package notify pushes order events to the back office chat. The core never
// depends on delivery succeeding; failures are logged and dropped.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arsuvenir/backend/internal/models"
)

// Notifier is informed of newly created orders.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order, partner *models.Partner)
}

// Telegram posts sendMessage calls to the Bot API. Zero value with an empty
// token is a no-op, so dev environments need no configuration. Delivery is
// fire-and-forget: OrderCreated returns immediately and the HTTP call runs
// in the background so a slow Bot API cannot stall order creation.
type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	Client  *http.Client
	Log     *logrus.Logger
}

func NewTelegram(token, chatID string, log *logrus.Logger) *Telegram {
	return &Telegram{
		Token:   token,
		ChatID:  chatID,
		BaseURL: "https://api.telegram.org",
		Client:  &http.Client{Timeout: 10 * time.Second},
		Log:     log,
	}
}

func (t *Telegram) OrderCreated(_ context.Context, order *models.Order, partner *models.Partner) {
	if t.Token == "" || t.ChatID == "" {
		return
	}
	kind := "order"
	if order.IsRealization {
		kind = "consignment order"
	}
	text := fmt.Sprintf("New %s #%d from %s, total %s", kind, order.ID, partner.Name, order.TotalPrice.String())
	go t.send(text)
}

// send runs detached from the request; it carries its own deadline.
func (t *Telegram) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	payload, _ := json.Marshal(map[string]string{"chat_id": t.ChatID, "text": text})
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		t.Log.WithError(err).Warn("telegram notify failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Log.WithField("status", resp.StatusCode).Warn("telegram notify rejected")
	}
}
