package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
)

const (
	telegramDefaultAPIURL   = "https://api.telegram.org"
	maxTelegramResponseSize = 64 << 10
)

// ErrNotificationSkipped is returned when no Telegram chat is configured
var ErrNotificationSkipped = errors.New("telegram chat not configured")

// TelegramConfig represents Telegram bot configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
	Timeout  time.Duration
}

// TelegramNotifier posts new-order summaries to a Telegram chat
type TelegramNotifier struct {
	config TelegramConfig
	client *http.Client
	logger zerolog.Logger
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig, logger zerolog.Logger) *TelegramNotifier {
	if config.APIURL == "" {
		config.APIURL = telegramDefaultAPIURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NotifyOrder sends the order summary. Without a bot token or chat id it
// logs a warning and returns ErrNotificationSkipped.
func (n *TelegramNotifier) NotifyOrder(ctx context.Context, order *models.Order, req *models.CreateOrderRequest) error {
	if n.config.BotToken == "" || n.config.ChatID == "" {
		n.logger.Warn().Int64("order_id", order.ID).Msg("Telegram chat not configured, skipping order notification")
		return ErrNotificationSkipped
	}
	return n.SendMessage(ctx, FormatOrderMessage(order, req, time.Now()))
}

// SendMessage posts a Markdown message to the configured chat
func (n *TelegramNotifier) SendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(telegramMessage{ChatID: n.config.ChatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.config.APIURL, "/"), n.config.BotToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: telegram request: %v", models.ErrExternalDependency, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxTelegramResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read telegram response: %v", models.ErrExternalDependency, err)
	}

	var result telegramResponse
	if err := json.Unmarshal(respBody, &result); err != nil || !result.OK || resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: telegram returned %d: %s", models.ErrExternalDependency, resp.StatusCode, result.Description)
	}

	return nil
}

// markdownEscaper covers the entity characters of Telegram's legacy Markdown
// parse mode, the mode SendMessage uses.
var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`,
)

// EscapeMarkdown escapes Telegram Markdown control characters
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatOrderMessage renders the multi-line order summary sent to staff.
// Every customer and catalog value is escaped.
func FormatOrderMessage(order *models.Order, req *models.CreateOrderRequest, now time.Time) string {
	var b strings.Builder

	b.WriteString("*New order created*\n")
	fmt.Fprintf(&b, "%s\n\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "*Name:* %s\n", EscapeMarkdown(req.User.Name))
	fmt.Fprintf(&b, "*Phone:* %s\n", EscapeMarkdown(req.User.Telephone))
	fmt.Fprintf(&b, "*Email:* %s\n\n", EscapeMarkdown(req.User.Email))
	b.WriteString("*Services:*\n")

	for _, service := range order.Services {
		fmt.Fprintf(&b, "\n*Title:* %s\n", EscapeMarkdown(service.ServiceTitle))
		fmt.Fprintf(&b, "*Date:* %s\n", service.Date.Format("02.01.2006"))
		fmt.Fprintf(&b, "*Time:* %s\n", EscapeMarkdown(service.Time))
		for _, price := range service.Prices {
			title := price.CategoryTitle
			if title == "" {
				title = price.PriceType
			}
			fmt.Fprintf(&b, "%s: %d pers.\n", EscapeMarkdown(title), price.Quantity)
		}
	}

	promo := order.PromoCode
	if promo == "" {
		promo = "N/A"
	}
	fmt.Fprintf(&b, "\n*Promo Code:* %s\n", EscapeMarkdown(promo))
	fmt.Fprintf(&b, "*Total:* %s\n", order.TotalCurrentPrice.StringFixed(2))
	fmt.Fprintf(&b, "*Payment Method:* %s\n", EscapeMarkdown(string(order.PaymentMethod)))

	return b.String()
}
