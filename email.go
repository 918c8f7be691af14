package cropauth

import "log/slog"

// Mailer delivers rendered messages. Transport mechanics (SMTP etc.) live
// behind this interface and outside this package.
type Mailer interface {
	SendPasswordResetEmail(to string, resetLink string) error
}

// ConsoleMailer is a development Mailer that logs instead of sending.
type ConsoleMailer struct {
	Logger *slog.Logger
}

func (c *ConsoleMailer) SendPasswordResetEmail(to string, resetLink string) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("password reset email",
		"to", to,
		"subject", "Reset your password",
		"link", resetLink)
	return nil
}
