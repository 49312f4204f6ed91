package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"ReviewSentinel/internal/config"
	"ReviewSentinel/internal/domain"
	"ReviewSentinel/internal/ports"
	"ReviewSentinel/pkg/retry"
)

const alertTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #dc3545;">New {{.Rating}}-Star Review Detected</h2>
  <div style="background: #f8f9fa; border-left: 4px solid #dc3545; padding: 16px; margin: 16px 0;">
    <p style="color: #666; font-size: 14px; margin: 0 0 8px 0;">
      <strong>Reviewer:</strong> {{.Author}}<br>
      <strong>Rating:</strong> <span style="color: #ffc107;">{{.Stars}}</span><br>
      <strong>Posted:</strong> {{.PostedRaw}} (about {{.PostedDate}})
    </p>
    <p style="font-size: 16px; margin: 0;">{{if .Text}}&quot;{{.Text}}&quot;{{else}}<em>Rating-only review, no text.</em>{{end}}</p>
  </div>
  <div style="background: #e7f3ff; border-left: 4px solid #0066cc; padding: 16px; margin: 16px 0;">
    <h3 style="margin-top: 0; color: #0066cc;">Recommended Reporting Category</h3>
    <p><span style="background: #0066cc; color: white; padding: 6px 14px; border-radius: 16px; font-weight: bold;">{{.Category}}</span></p>
    <p style="color: #555; font-style: italic;"><strong>Why:</strong> {{.Rationale}}</p>
  </div>
  <p style="text-align: center;">
    <a href="{{.Link}}" style="background: #28a745; color: white; padding: 12px 28px; text-decoration: none; border-radius: 5px; font-weight: bold;">Open This Review</a>
  </p>
  <p style="text-align: center; color: #666; font-size: 12px;">
    Detected on {{.DetectedAt}} by your review monitor.
  </p>
</body>
</html>`

const failureTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #dc3545;">Review Monitoring Failed</h2>
  <p><strong>Reason:</strong> {{.Reason}}</p>
  <h3>Possible causes</h3>
  <ul>
    <li>The source changed its page structure - selectors need updating</li>
    <li>The proxy was blocked</li>
    <li>Network connectivity issue or timeout</li>
  </ul>
  <p>A snapshot of the last fetched page, if any, was saved next to the database for inspection.</p>
  <p style="color: #666; font-size: 12px;">Generated on {{.GeneratedAt}}</p>
</body>
</html>`

// sendFunc matches smtp.SendMail; a seam for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers one self-contained HTML alert per review over SMTP.
type SMTPNotifier struct {
	cfg       config.MailConfig
	policy    retry.Policy
	send      sendFunc
	alertTmpl *template.Template
	failTmpl  *template.Template
	logger    *slog.Logger
}

var _ ports.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier wires the mail transport configuration.
func NewSMTPNotifier(cfg config.MailConfig, policy retry.Policy, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:       cfg,
		policy:    policy,
		send:      smtp.SendMail,
		alertTmpl: template.Must(template.New("alert").Parse(alertTemplate)),
		failTmpl:  template.Must(template.New("failure").Parse(failureTemplate)),
		logger:    logger,
	}
}

// SendReviewAlert renders and delivers the notification for one review.
// Transient transport failures are retried; 5xx SMTP rejections are permanent
// and surface as a per-review failure.
func (n *SMTPNotifier) SendReviewAlert(ctx context.Context, review domain.Review, result domain.Classification, detectedAt time.Time) error {
	subject := fmt.Sprintf("New %d-Star Review Alert - %s", review.Rating, review.Author)

	var body bytes.Buffer
	err := n.alertTmpl.Execute(&body, map[string]any{
		"Author":     review.Author,
		"Rating":     review.Rating,
		"Stars":      starGlyphs(review.Rating),
		"Text":       review.Text,
		"PostedRaw":  review.PostedRaw,
		"PostedDate": review.PostedAt.Format("January 2, 2006"),
		"Category":   result.Category,
		"Rationale":  result.Rationale,
		"Link":       review.DeepLink(),
		"DetectedAt": detectedAt.Format("January 2, 2006 at 3:04 PM"),
	})
	if err != nil {
		return fmt.Errorf("render alert: %w", err)
	}

	return n.deliver(ctx, subject, body.String())
}

// SendFailureAlert notifies the operator that a run hard-failed.
func (n *SMTPNotifier) SendFailureAlert(ctx context.Context, subject, reason string) error {
	var body bytes.Buffer
	err := n.failTmpl.Execute(&body, map[string]any{
		"Reason":      reason,
		"GeneratedAt": time.Now().Format("January 2, 2006 at 3:04 PM"),
	})
	if err != nil {
		return fmt.Errorf("render failure alert: %w", err)
	}
	return n.deliver(ctx, subject, body.String())
}

func (n *SMTPNotifier) deliver(ctx context.Context, subject, htmlBody string) error {
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	from := n.cfg.From
	if from == "" {
		from = n.cfg.Username
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	err := n.policy.Do(ctx, func(context.Context) error {
		sendErr := n.send(addr, auth, from, []string{n.cfg.To}, msg.Bytes())
		if sendErr == nil {
			return nil
		}
		if isPermanentSMTP(sendErr) {
			return retry.Permanent(fmt.Errorf("send mail: %w", sendErr))
		}
		return fmt.Errorf("send mail: %w", sendErr)
	})
	if err != nil {
		return err
	}

	n.debug("alert delivered", "to", n.cfg.To, "subject", subject)
	return nil
}

// isPermanentSMTP treats SMTP 5xx replies (bad destination, auth rejection)
// as not worth retrying.
func isPermanentSMTP(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 500 && tpErr.Code < 600
	}
	return false
}

func starGlyphs(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func (n *SMTPNotifier) debug(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}
