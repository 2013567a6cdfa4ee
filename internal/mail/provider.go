package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
)

// ErrUnknownProvider is returned by NewTransport for an unsupported MAIL_PROVIDER.
var ErrUnknownProvider = errors.New("unknown mail provider")

// NewTransport builds the transport selected by cfg.Mail.Provider.
func NewTransport(ctx context.Context, cfg *config.Config) (core.Transport, error) {
	from := Sender{Name: cfg.Mail.FromName, Address: cfg.Mail.FromAddress}

	switch cfg.Mail.Provider {
	case config.ProviderSMTP:
		return NewSMTPTransport(ctx, cfg.SMTP, from), nil
	case config.ProviderSparkPost:
		return NewSparkPostTransport(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL, from, cfg.Send.Workers, cfg.SparkPost.Timeout), nil
	case config.ProviderSES:
		t, err := NewSESTransport(ctx, cfg.SES, from, cfg.Send.Workers)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Mail.Provider)
	}
}
