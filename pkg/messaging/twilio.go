package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatrail/chatrail/pkg/models"
)

const defaultSendTimeout = 15 * time.Second

// TwilioTransport sends messages through the Twilio Messages API. WhatsApp
// recipients are addressed with the "whatsapp:" prefix Twilio expects.
type TwilioTransport struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
	logger     *slog.Logger
}

// NewTwilioTransport creates a transport for the given Twilio account.
func NewTwilioTransport(logger *slog.Logger, accountSID, authToken, fromNumber string) *TwilioTransport {
	return &TwilioTransport{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    "https://api.twilio.com",
		client:     &http.Client{Timeout: defaultSendTimeout},
		logger:     logger.With("module", "messaging"),
	}
}

func (t *TwilioTransport) Send(ctx context.Context, channel models.Channel, to, body string) error {
	if !channel.RequiresDelivery() {
		return fmt.Errorf("channel %q has no delivery provider", channel)
	}

	from := t.fromNumber

	if channel == models.ChannelWhatsApp {
		to = "whatsapp:" + to
		from = "whatsapp:" + from
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}

	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("message send rejected with status %d: %s", resp.StatusCode, string(payload))
	}

	t.logger.DebugContext(ctx, "Message delivered", "channel", channel, "to", to)

	return nil
}

// NoopTransport records nothing and always succeeds. Used in local
// development when no provider credentials are configured.
type NoopTransport struct {
	logger *slog.Logger
}

// NewNoopTransport creates a transport that only logs deliveries.
func NewNoopTransport(logger *slog.Logger) *NoopTransport {
	return &NoopTransport{logger: logger.With("module", "messaging")}
}

func (t *NoopTransport) Send(ctx context.Context, channel models.Channel, to, _ string) error {
	t.logger.InfoContext(ctx, "Skipping delivery, no transport configured", "channel", channel, "to", to)

	return nil
}
