package delivery

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESMailer implements Mailer using AWS SES.
type SESMailer struct {
	client      *ses.Client
	fromAddress string
}

// NewSESMailer creates an SES-backed mailer for the given region.
func NewSESMailer(ctx context.Context, region, fromAddress string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
	}, nil
}

func aws(s string) *string { return &s }

// SendEmail sends a single email via SES.
func (m *SESMailer) SendEmail(ctx context.Context, msg EmailMessage) error {
	from := msg.From
	if from == "" {
		from = m.fromAddress
	}

	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws(msg.TextBody), Charset: aws("UTF-8")}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws(msg.HTMLBody), Charset: aws("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source:      &from,
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws(msg.Subject), Charset: aws("UTF-8")},
			Body:    body,
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	return nil
}
