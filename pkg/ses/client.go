package ses

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

const charset = "UTF-8"

// Message is one outbound transactional email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	// Tags are forwarded as SES message tags (cart_id, stage).
	Tags map[string]string
}

type sendAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Client sends recovery emails through SES v2.
type Client struct {
	api      sendAPI
	from     string
	fromName string
	replyTo  string
}

// NewClient builds the SES client. An empty from address yields a client whose
// Send always reports NOT_CONFIGURED, so the API can boot without SES.
func NewClient(ctx context.Context, cfg config.EmailConfig) (*Client, error) {
	c := &Client{
		from:     strings.TrimSpace(cfg.FromEmail),
		fromName: strings.TrimSpace(cfg.FromName),
		replyTo:  strings.TrimSpace(cfg.ReplyTo),
	}
	if c.from == "" || strings.TrimSpace(cfg.Region) == "" {
		return c, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	c.api = sesv2.NewFromConfig(awsCfg)
	return c, nil
}

func newWithAPI(api sendAPI, from, fromName string) *Client {
	return &Client{api: api, from: from, fromName: fromName}
}

// Configured reports whether Send can reach SES.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil && c.from != ""
}

// Send delivers msg and returns the SES message id.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if !c.Configured() {
		return "", pkgerrors.New(pkgerrors.CodeNotConfigured, "email transport not configured")
	}
	to := strings.TrimSpace(msg.To)
	if _, err := mail.ParseAddress(to); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient address")
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.fromAddress()),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	}
	if c.replyTo != "" {
		input.ReplyToAddresses = []string{c.replyTo}
	}
	for name, value := range msg.Tags {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}

	out, err := c.api.SendEmail(ctx, input)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ses send email")
	}
	return aws.ToString(out.MessageId), nil
}

func (c *Client) fromAddress() string {
	if c.fromName == "" {
		return c.from
	}
	return (&mail.Address{Name: c.fromName, Address: c.from}).String()
}
