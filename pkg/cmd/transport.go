package cmd

import (
	"log/slog"

	"github.com/chatrail/chatrail/pkg/messaging"
)

// NewTransport wires the outbound message transport. Without Twilio
// credentials deliveries are logged and dropped, which keeps local
// development working without an account.
func NewTransport(logger *slog.Logger, accountSID, authToken, fromNumber string) messaging.Transport {
	if accountSID == "" || authToken == "" {
		logger.Warn("Twilio credentials not configured, using noop transport")

		return messaging.NewNoopTransport(logger)
	}

	return messaging.NewTwilioTransport(logger, accountSID, authToken, fromNumber)
}
