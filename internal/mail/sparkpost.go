package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
)

const sparkPostName = "sparkpost"

// SparkPostTransport sends through the SparkPost Transmissions API, one
// transmission per recipient.
type SparkPostTransport struct {
	apiKey  string
	baseURL string
	from    Sender
	workers int
	client  *http.Client
}

// NewSparkPostTransport creates a transport against baseURL, usually
// https://api.sparkpost.com/api/v1.
func NewSparkPostTransport(apiKey, baseURL string, from Sender, workers int, timeout time.Duration) *SparkPostTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SparkPostTransport{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		workers: workers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements core.Transport.
func (t *SparkPostTransport) Name() string { return sparkPostName }

type sparkPostAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sparkPostTransmission struct {
	Recipients []struct {
		Address sparkPostAddress `json:"address"`
	} `json:"recipients"`
	Content struct {
		From    sparkPostAddress `json:"from"`
		Subject string           `json:"subject"`
		HTML    string           `json:"html"`
		Text    string           `json:"text"`
	} `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type sparkPostResponse struct {
	Results struct {
		ID       string `json:"id"`
		Accepted int    `json:"total_accepted_recipients"`
		Rejected int    `json:"total_rejected_recipients"`
	} `json:"results"`
	Errors []struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"errors"`
}

// Send implements core.Transport.
func (t *SparkPostTransport) Send(ctx context.Context, req core.SendRequest) (*core.SendResponse, error) {
	msgs, skipped, err := compose(req)
	if err != nil {
		return nil, &core.TransportError{Provider: sparkPostName, Err: err}
	}

	res := fanOut(ctx, sparkPostName, t.workers, msgs, func(ctx context.Context, msg outgoing) (string, error) {
		return t.transmit(ctx, req.CampaignID, msg)
	})
	res.errs = append(res.errs, skipped...)
	return res.result(sparkPostName, len(req.Recipients))
}

func (t *SparkPostTransport) transmit(ctx context.Context, campaignID string, msg outgoing) (string, error) {
	var tx sparkPostTransmission
	tx.Recipients = append(tx.Recipients, struct {
		Address sparkPostAddress `json:"address"`
	}{Address: sparkPostAddress{Email: msg.To.Email, Name: msg.To.DisplayName()}})
	tx.Content.From = sparkPostAddress{Email: t.from.Address, Name: t.from.Name}
	tx.Content.Subject = msg.Subject
	tx.Content.HTML = msg.HTML
	tx.Content.Text = msg.Text
	if campaignID != "" {
		tx.Metadata = map[string]string{"campaign_id": campaignID}
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed sparkPostResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= 400 {
		te := &core.TransportError{
			Provider: sparkPostName,
			Status:   resp.StatusCode,
			Message:  sparkPostErrorMessage(parsed, raw, resp.Status),
		}
		// Bad credentials fail every message the same way.
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", &fatalError{err: te}
		}
		return "", te
	}

	if parsed.Results.Accepted < 1 {
		return "", &core.TransportError{
			Provider: sparkPostName,
			Status:   resp.StatusCode,
			Message:  "recipient rejected",
		}
	}

	logging.FromContext(ctx).Debug("transmission accepted",
		"provider", sparkPostName,
		"to", logging.RedactEmail(msg.To.Email),
		"id", parsed.Results.ID,
	)
	return parsed.Results.ID, nil
}

func sparkPostErrorMessage(parsed sparkPostResponse, raw []byte, status string) string {
	if len(parsed.Errors) > 0 {
		e := parsed.Errors[0]
		if e.Description != "" {
			return fmt.Sprintf("%s: %s", e.Message, e.Description)
		}
		return e.Message
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 200 {
		return s
	}
	return status
}
