package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	logx "github.com/seller-copilot/server/pkg/logger"
)

// TelegramNotifier pushes seller notifications through the Bot API.
// All sends are best effort: a failed notification is logged and never
// surfaces to the buyer conversation.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t != nil && t.token != "" && t.chatID != ""
}

func (t *TelegramNotifier) send(ctx context.Context, text string) {
	if !t.IsEnabled() {
		return
	}
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		logx.Error().Err(err).Msg("Telegram payload marshal failed")
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logx.Error().Err(err).Msg("Telegram request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		logx.Warn().Err(err).Msg("Telegram notification failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logx.Warn().Int("status", resp.StatusCode).Msg("Telegram notification rejected")
	}
}

// NotifyNewMessage reports an incoming buyer message.
func (t *TelegramNotifier) NotifyNewMessage(ctx context.Context, sessionID, message string) {
	t.send(ctx, fmt.Sprintf("💬 <b>Новое сообщение</b>\nСессия: %s\n%s", sessionID, message))
}

// NotifyDealAgreed reports an accepted price.
func (t *TelegramNotifier) NotifyDealAgreed(ctx context.Context, productTitle string, price float64) {
	t.send(ctx, fmt.Sprintf("🤝 <b>Сделка согласована</b>\nТовар: %s\nЦена: %.0f руб.", productTitle, price))
}

// NotifyMeetingScheduled reports a confirmed meeting.
func (t *TelegramNotifier) NotifyMeetingScheduled(ctx context.Context, productTitle, location, date, timeStr string) {
	t.send(ctx, fmt.Sprintf("📅 <b>Встреча назначена</b>\nТовар: %s\nМесто: %s\nКогда: %s %s",
		productTitle, location, date, timeStr))
}
