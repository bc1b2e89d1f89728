// Package aws_ses mails rendered activities through AWS SES, typically to a
// staff mailing list.
package aws_ses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
)

const defaultRegion = "us-east-1"

// Config holds SES settings.
type Config struct {
	From             string
	To               string
	Region           string
	Profile          string
	ConfigurationSet string
	DryRun           bool
}

// SESClient is the part of the SES API the adapter calls.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Adapter sends one e-mail per activity.
type Adapter struct {
	name   string
	cfg    Config
	report adapters.Reporter

	clientOnce sync.Once
	client     SESClient
	clientErr  error
}

type Option func(*Adapter)

// WithName overrides the adapter name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if name = strings.TrimSpace(name); name != "" {
			a.name = name
		}
	}
}

// WithConfig sets the adapter configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		a.cfg = cfg
	}
}

// WithClient injects an SES client.
func WithClient(c SESClient) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// New constructs the SES adapter. Without WithClient the AWS client is
// loaded from the default credential chain on first send.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{name: "aws_ses"}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.cfg.Region == "" {
		adapter.cfg.Region = defaultRegion
	}
	adapter.report = adapters.NewReporter(adapter.name, l)
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability {
	return adapters.Capability{
		Name:     a.name,
		Channels: []string{"email"},
		Formats:  []string{"text/plain", "text/html"},
	}
}

func (a *Adapter) ses(ctx context.Context) (SESClient, error) {
	a.clientOnce.Do(func() {
		if a.client != nil {
			return
		}
		loadOpts := []func(*config.LoadOptions) error{config.WithRegion(a.cfg.Region)}
		if a.cfg.Profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(a.cfg.Profile))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			a.clientErr = fmt.Errorf("aws_ses: load config: %w", err)
			return
		}
		a.client = ses.NewFromConfig(awsCfg, func(o *ses.Options) {
			o.RetryMaxAttempts = 3
		})
	})
	return a.client, a.clientErr
}

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	to := adapters.FirstNonEmpty(msg.To, msg.Meta("to"), a.cfg.To)
	if a.cfg.DryRun {
		a.report.Skipped(msg, logger.Field{Key: "to", Value: to})
		return nil
	}
	if to == "" {
		return errors.New("aws_ses: destination required")
	}
	from := adapters.FirstNonEmpty(msg.Meta("from"), a.cfg.From)
	if from == "" {
		return errors.New("aws_ses: from required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("aws_ses: content empty")
	}
	client, err := a.ses(ctx)
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses:  []string{to},
			BccAddresses: msg.MetaList("bcc"),
		},
		Source: aws.String(from),
		Message: &types.Message{
			Subject: content(msg.Headline()),
			Body:    body(msg),
		},
	}
	if cs := strings.TrimSpace(a.cfg.ConfigurationSet); cs != "" {
		input.ConfigurationSetName = aws.String(cs)
	}
	out, err := client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("aws_ses: send email: %w", err)
	}
	a.report.Delivered(msg, logger.Field{Key: "message_id", Value: aws.ToString(out.MessageId)})
	return nil
}

func body(msg adapters.Message) *types.Body {
	if !msg.IsHTML() {
		return &types.Body{Text: content(msg.Body)}
	}
	return &types.Body{Html: content(msg.Body), Text: content(msg.Meta("text_body"))}
}

func content(text string) *types.Content {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")}
}
