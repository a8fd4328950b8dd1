package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/brinebarrel/storefront-api/internal/models"
	"github.com/brinebarrel/storefront-api/pkg/logger"
)

// EmailSender defines the interface for sending verification emails
type EmailSender interface {
	SendOTPEmail(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	brandName   string
	supportURL  string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, brandName, supportURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		brandName:   brandName,
		supportURL:  supportURL,
		logger:      logger,
	}, nil
}

// purposeSubject maps each code purpose to its email subject line
func (s *AWSSESEmailService) purposeSubject(purpose models.OTPPurpose) string {
	switch purpose {
	case models.OTPPurposePasswordReset:
		return fmt.Sprintf("%s: your password reset code", s.brandName)
	case models.OTPPurposeLogin:
		return fmt.Sprintf("%s: your sign-in code", s.brandName)
	default:
		return fmt.Sprintf("%s: verify your email address", s.brandName)
	}
}

// purposeIntro returns the lead-in sentence for the email body
func purposeIntro(purpose models.OTPPurpose) string {
	switch purpose {
	case models.OTPPurposePasswordReset:
		return "Use this code to reset your password:"
	case models.OTPPurposeLogin:
		return "Use this code to sign in to your account:"
	default:
		return "Use this code to verify your email address:"
	}
}

// SendOTPEmail sends a one-time code to the user for the given purpose
func (s *AWSSESEmailService) SendOTPEmail(ctx context.Context, email, code string, purpose models.OTPPurpose, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px; background-color: #f1f3f5; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>%s</h1>
        </div>
        <p>%s</p>
        <div class="code">%s</div>
        <div class="warning">
            <strong>Security notice:</strong> This code expires in %d minutes and can only be used once.
        </div>
        <p><strong>Didn't request this code?</strong><br>
        You can safely ignore this email. Nobody can use the code without access to your inbox.</p>
        <div class="footer">
            <p>This is an automated message from %s. Please do not reply.</p>
            <p>Questions? Visit %s</p>
        </div>
    </div>
</body>
</html>
`, s.brandName, purposeIntro(purpose), code, minutes, s.brandName, s.supportURL)

	textBody := fmt.Sprintf(`%s

%s

    %s

Security notice: this code expires in %d minutes and can only be used once.

Didn't request this code? You can safely ignore this email.

This is an automated message from %s. Please do not reply.
Questions? Visit %s
`, s.brandName, purposeIntro(purpose), code, minutes, s.brandName, s.supportURL)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(s.purposeSubject(purpose)),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send otp email via SES",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("otp email sent",
		slog.String("email", logger.SanitizedEmail(email)),
		slog.String("purpose", string(purpose)),
		slog.String("message_id", *result.MessageId))

	return nil
}
