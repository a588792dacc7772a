package services

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"trailcatalog-api/config"
)

func TestSendWelcomeEmail(t *testing.T) {
	cfg := &config.Config{FromName: "Trail Catalog", FromEmail: "noreply@example.com", AppBaseURL: "https://trasy.example.com"}
	es := NewEmailService(cfg, zap.NewNop())

	var to []string
	var body bytes.Buffer
	es.send = func(m *gomail.Message) error {
		return gomail.Send(gomail.SendFunc(func(from string, rcpt []string, msg io.WriterTo) error {
			to = rcpt
			_, err := msg.WriteTo(&body)
			return err
		}), m)
	}

	require.NoError(t, es.SendWelcomeEmail("jana@example.com", "Jana"))
	assert.Equal(t, []string{"jana@example.com"}, to)
	assert.Contains(t, body.String(), "trasy.example.com")
}

func TestSendWelcomeEmailFailure(t *testing.T) {
	es := NewEmailService(&config.Config{}, zap.NewNop())
	es.send = func(*gomail.Message) error { return errors.New("smtp down") }

	err := es.SendWelcomeEmail("jana@example.com", "Jana")
	assert.ErrorContains(t, err, "smtp down")
}
