package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
)

const sesName = "ses"

// sesAPI is the part of the SES v2 client the transport uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends through Amazon SES v2, one SendEmail call per recipient.
type SESTransport struct {
	client           sesAPI
	from             Sender
	configurationSet string
	workers          int
}

// NewSESTransport loads AWS configuration for cfg.Region. Static keys are used
// when both are set; otherwise the default credential chain applies.
func NewSESTransport(ctx context.Context, cfg config.SESConfig, from Sender, workers int) (*SESTransport, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newSESTransport(sesv2.NewFromConfig(awsCfg), from, cfg.ConfigurationSet, workers), nil
}

func newSESTransport(client sesAPI, from Sender, configurationSet string, workers int) *SESTransport {
	return &SESTransport{
		client:           client,
		from:             from,
		configurationSet: configurationSet,
		workers:          workers,
	}
}

// Name implements core.Transport.
func (t *SESTransport) Name() string { return sesName }

// Send implements core.Transport.
func (t *SESTransport) Send(ctx context.Context, req core.SendRequest) (*core.SendResponse, error) {
	msgs, skipped, err := compose(req)
	if err != nil {
		return nil, &core.TransportError{Provider: sesName, Err: err}
	}

	res := fanOut(ctx, sesName, t.workers, msgs, func(ctx context.Context, msg outgoing) (string, error) {
		out, err := t.client.SendEmail(ctx, t.input(req.CampaignID, msg))
		if err != nil {
			return "", err
		}
		return aws.ToString(out.MessageId), nil
	})
	res.errs = append(res.errs, skipped...)
	return res.result(sesName, len(req.Recipients))
}

func (t *SESTransport) input(campaignID string, msg outgoing) *sesv2.SendEmailInput {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(t.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if campaignID != "" {
		in.EmailTags = []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(campaignID)},
		}
	}
	if t.configurationSet != "" {
		in.ConfigurationSetName = aws.String(t.configurationSet)
	}
	return in
}
