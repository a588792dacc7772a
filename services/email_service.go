// File: /services/email_service.go
package services

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"trailcatalog-api/config"
)

// WelcomeMailer is notified once, when a profile is first created.
type WelcomeMailer interface {
	SendWelcomeEmail(email, name string) error
}

type EmailService struct {
	config *config.Config
	log    *zap.Logger
	send   func(m *gomail.Message) error
}

func NewEmailService(cfg *config.Config, log *zap.Logger) *EmailService {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)

	return &EmailService{
		config: cfg,
		log:    log,
		send:   func(m *gomail.Message) error { return dialer.DialAndSend(m) },
	}
}

// Send welcome email after the first sign-in
func (es *EmailService) SendWelcomeEmail(email, name string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", es.config.FromName, es.config.FromEmail))
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Vítejte v katalogu tras")

	catalogURL := es.config.AppBaseURL

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Vítejte</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { text-align: center; background: #2f6b3a; color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f6f8f4; padding: 30px; border-radius: 0 0 10px 10px; }
        .btn { display: inline-block; background: #2f6b3a; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin: 10px 0; }
        .footer { text-align: center; margin-top: 20px; color: #666; font-size: 14px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Katalog tras</h1>
        </div>
        <div class="content">
            <h2>Ahoj %s!</h2>
            <p>Váš účet je připraven. Můžete přidávat trasy, fotografie a popisy.</p>
            <p><a class="btn" href="%s">Otevřít katalog</a></p>
        </div>
        <div class="footer">
            <p>Tento e-mail byl odeslán automaticky, neodpovídejte na něj.</p>
        </div>
    </div>
</body>
</html>`, name, catalogURL)

	textBody := fmt.Sprintf(`
Ahoj %s!

Váš účet je připraven. Můžete přidávat trasy, fotografie a popisy.

Katalog: %s

Tento e-mail byl odeslán automaticky, neodpovídejte na něj.
`, name, catalogURL)

	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := es.send(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	es.log.Info("welcome email sent", zap.String("email", email))
	return nil
}
