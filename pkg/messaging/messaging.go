// Package messaging delivers outbound messages to customers over external
// channel providers. Delivery is best effort: engines record the message
// first and treat transport failures as non-fatal.
package messaging

import (
	"context"

	"github.com/chatrail/chatrail/pkg/models"
)

// Transport delivers an outbound message body to a phone number on a
// channel. Channels without an external provider are recorded only and
// never reach a Transport.
type Transport interface {
	Send(ctx context.Context, channel models.Channel, to, body string) error
}
