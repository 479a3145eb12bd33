package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/log"
	"github.com/chatrail/chatrail/pkg/models"
)

func TestTwilioTransportSend(t *testing.T) {
	var captured struct {
		to   string
		from string
		body string
		auth bool
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		captured.to = r.PostFormValue("To")
		captured.from = r.PostFormValue("From")
		captured.body = r.PostFormValue("Body")
		_, _, captured.auth = r.BasicAuth()

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	transport := NewTwilioTransport(log.WithModule("test"), "AC123", "token", "+15550001111")
	transport.baseURL = server.URL

	err := transport.Send(context.Background(), models.ChannelWhatsApp, "+2348012345678", "Hello!")
	require.NoError(t, err)

	assert.Equal(t, "whatsapp:+2348012345678", captured.to)
	assert.Equal(t, "whatsapp:+15550001111", captured.from)
	assert.Equal(t, "Hello!", captured.body)
	assert.True(t, captured.auth)
}

func TestTwilioTransportSendSMSKeepsPlainNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+2348012345678", r.PostFormValue("To"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	transport := NewTwilioTransport(log.WithModule("test"), "AC123", "token", "+15550001111")
	transport.baseURL = server.URL

	err := transport.Send(context.Background(), models.ChannelSMS, "+2348012345678", "Hello!")
	require.NoError(t, err)
}

func TestTwilioTransportSendRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code": 21211}`, http.StatusBadRequest)
	}))
	defer server.Close()

	transport := NewTwilioTransport(log.WithModule("test"), "AC123", "token", "+15550001111")
	transport.baseURL = server.URL

	err := transport.Send(context.Background(), models.ChannelSMS, "bad", "Hello!")
	assert.ErrorContains(t, err, "status 400")
}

func TestTwilioTransportRejectsRecordOnlyChannels(t *testing.T) {
	transport := NewTwilioTransport(log.WithModule("test"), "AC123", "token", "+15550001111")

	err := transport.Send(context.Background(), models.ChannelInstagram, "+234", "Hello!")
	assert.ErrorContains(t, err, "no delivery provider")
}
