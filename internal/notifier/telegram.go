package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultAPIBase = "https://api.telegram.org"

// telegramMessageLimit is the Bot API cap on message length.
const telegramMessageLimit = 4096

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	Client   *http.Client
	APIBase  string
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		APIBase: defaultAPIBase,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.BotToken, method)
}

// Send sends a message to the configured chat. Text over the Bot API limit
// goes out as several messages split at line boundaries.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	parts := splitMessage(text, telegramMessageLimit)
	for i, part := range parts {
		if err := t.sendMessage(ctx, part); err != nil {
			if len(parts) > 1 {
				return fmt.Errorf("part %d/%d: %w", i+1, len(parts), err)
			}
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

const (
	preOpen  = "<pre>"
	preClose = "</pre>"
)

// splitMessage cuts text into parts of at most limit characters. A part that
// ends inside a <pre> block is closed and the block reopened in the next part.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	budget := limit - len(preOpen) - len(preClose)

	var parts []string
	var cur strings.Builder
	curLen := 0
	inPre := false
	flush := func() {
		chunk := strings.TrimRight(cur.String(), "\n")
		cur.Reset()
		curLen = 0
		if inPre {
			if chunk != preOpen {
				parts = append(parts, chunk+preClose)
			}
			cur.WriteString(preOpen)
			curLen = len(preOpen)
			return
		}
		if strings.TrimSpace(chunk) != "" {
			parts = append(parts, chunk)
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		for _, piece := range splitRunes(line, budget-len(preOpen)) {
			n := utf8.RuneCountInString(piece)
			if curLen+n > budget {
				flush()
			}
			cur.WriteString(piece)
			curLen += n
			inPre = preStateAfter(piece, inPre)
		}
	}
	if rest := cur.String(); strings.TrimSpace(rest) != "" && rest != preOpen {
		parts = append(parts, rest)
	}
	return parts
}

// preStateAfter reports whether a <pre> block is open after s.
func preStateAfter(s string, inPre bool) bool {
	open := strings.LastIndex(s, preOpen)
	closed := strings.LastIndex(s, preClose)
	if open < 0 && closed < 0 {
		return inPre
	}
	return open > closed
}

func splitRunes(s string, size int) []string {
	if utf8.RuneCountInString(s) <= size {
		return []string{s}
	}
	var out []string
	r := []rune(s)
	for len(r) > size {
		out = append(out, string(r[:size]))
		r = r[size:]
	}
	return append(out, string(r))
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	parts := splitMessage(text, telegramMessageLimit)
	for i, part := range parts {
		if err := t.sendPartWithRetry(ctx, part, maxRetries); err != nil {
			if len(parts) > 1 {
				return fmt.Errorf("part %d/%d: %w", i+1, len(parts), err)
			}
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) sendPartWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := t.sendMessage(ctx, text); err != nil {
			lastErr = err
			if i == maxRetries {
				break
			}
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
