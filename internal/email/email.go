package email

import (
	_ "embed"
	"fmt"
	"html"
	"strconv"
	"strings"

	"speakwise-feedback/internal/backend"

	"github.com/labstack/echo/v4"
	resend "github.com/resend/resend-go/v2"
)

//go:embed templates/feedback-receipt.html
var receiptTemplate string

// EmailClient is an interface for sending emails
type EmailClient interface {
	SendAsync(toEmail, subject, htmlBody string)
	FeedbackReceived(toEmail string, record *backend.FeedbackRecord)
}

// ResendEmailClient implements EmailClient using the Resend service
type ResendEmailClient struct {
	client        *resend.Client
	defaultSender string
	logger        echo.Logger
}

// NewResendEmailClient creates a new ResendEmailClient. client may be nil,
// in which case every send is skipped.
func NewResendEmailClient(client *resend.Client, defaultSender string, logger echo.Logger) *ResendEmailClient {
	return &ResendEmailClient{
		client:        client,
		defaultSender: defaultSender,
		logger:        logger,
	}
}

// SendAsync sends an email asynchronously
func (c *ResendEmailClient) SendAsync(toEmail, subject, htmlBody string) {
	if c == nil || c.client == nil {
		if c != nil {
			c.logger.Debugf("Resend client not initialized, skipping email to %s.", toEmail)
		}
		return
	}

	if c.defaultSender == "" {
		c.logger.Errorf("Resend default sender not configured, skipping email.")
		return
	}

	go func() {
		params := &resend.SendEmailRequest{
			From:    c.defaultSender,
			To:      []string{toEmail},
			Subject: subject,
			Html:    htmlBody,
		}

		_, err := c.client.Emails.Send(params)
		if err != nil {
			c.logger.Errorf("Failed to send email to %s (Subject: %s): %v", toEmail, subject, err)
		} else {
			c.logger.Infof("Email sent successfully to %s (Subject: %s)", toEmail, subject)
		}
	}()
}

// FeedbackReceived sends the attendee a receipt of the ratings they gave.
func (c *ResendEmailClient) FeedbackReceived(toEmail string, record *backend.FeedbackRecord) {
	if toEmail == "" || record == nil {
		c.logger.Error("Cannot send feedback receipt without recipient or record")
		return
	}

	subject := fmt.Sprintf("Your feedback for session #%d", record.Session)
	c.SendAsync(toEmail, subject, ReceiptBody(record))
}

// ReceiptBody renders the receipt email for record. Comments are escaped.
func ReceiptBody(record *backend.FeedbackRecord) string {
	comments := "No comments provided"
	if record.Comments != nil && strings.TrimSpace(*record.Comments) != "" {
		comments = *record.Comments
	}

	return strings.NewReplacer(
		"{session_id}", strconv.Itoa(record.Session),
		"{engagement}", strconv.Itoa(record.Engagement),
		"{clarity}", strconv.Itoa(record.Clarity),
		"{content_depth}", strconv.Itoa(record.ContentDepth),
		"{speaker_knowledge}", strconv.Itoa(record.SpeakerKnowledge),
		"{practical_relevance}", strconv.Itoa(record.PracticalRelevance),
		"{overall_rating}", strconv.Itoa(record.OverallRating),
		"{comments}", html.EscapeString(comments),
	).Replace(receiptTemplate)
}
