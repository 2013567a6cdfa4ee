package core

// campaign.go packages a subject, message and recipient list into one send
// attempt and turns the transport's answer into a delivery summary.
//
// Pre-send validation never reaches the transport. A transport failure ends
// that attempt; nothing is retried automatically.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/bulkmail/internal/logging"
)

// SimulatedOpenRatePercent is the share of accepted messages reported as
// opened. There is no open tracking; the number is a placeholder.
const SimulatedOpenRatePercent = 20

// StatusCompleted is the summary status after the transport answered.
const StatusCompleted = "Completed"

var (
	ErrNoRecipients   = errors.New("Please add at least one recipient.")
	ErrBlankSubject   = errors.New("Please fill out the subject and message fields.")
	ErrBlankMessage   = errors.New("Please fill out the subject and message fields.")
	ErrBadPlaceholder = errors.New("Subject or message contains a broken placeholder.")
	ErrSendInProgress = errors.New("a campaign send is already in progress for this session")
)

// Campaign is one subject + message + recipient list send attempt.
type Campaign struct {
	Subject    string      `json:"subject"`
	Message    string      `json:"message"`
	Recipients []Recipient `json:"recipients"`
}

// SendRequest is what a Transport receives.
type SendRequest struct {
	CampaignID string
	Subject    string
	Message    string
	Recipients []Recipient
}

// SendResponse is what a Transport reports back.
type SendResponse struct {
	AcceptedCount int
	MessageIDs    []string
}

// SummaryRenderer receives the delivery summary after a completed send.
type SummaryRenderer interface {
	RenderSummary(summary DeliverySummary)
}

// Transport delivers a campaign through a mail provider.
type Transport interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
}

// DeliverySummary feeds the post-send dashboard.
type DeliverySummary struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	Total      int    `json:"total"`
	Sent       int    `json:"sent_count"`
	Failed     int    `json:"failed_count"`
	// Opens is derived as floor(Sent * 20%); it is not measured.
	Opens          int           `json:"opens_count"`
	OpensSimulated bool          `json:"opens_simulated"`
	Duration       time.Duration `json:"duration_ns"`
}

// Summarize derives the dashboard numbers from an accepted count.
// accepted is clamped to [0, total].
func Summarize(total, accepted int) DeliverySummary {
	if accepted < 0 {
		accepted = 0
	}
	if accepted > total {
		accepted = total
	}
	return DeliverySummary{
		Status:         StatusCompleted,
		Total:          total,
		Sent:           accepted,
		Failed:         total - accepted,
		Opens:          accepted * SimulatedOpenRatePercent / 100,
		OpensSimulated: true,
	}
}

// SubmissionValidationError lists why a campaign was not dispatched.
type SubmissionValidationError struct {
	Problems []error
}

func (e *SubmissionValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	seen := make(map[string]bool, len(e.Problems))
	for _, p := range e.Problems {
		if seen[p.Error()] {
			continue
		}
		seen[p.Error()] = true
		msgs = append(msgs, p.Error())
	}
	return "submission invalid: " + strings.Join(msgs, " ")
}

// Unwrap exposes the individual problems to errors.Is.
func (e *SubmissionValidationError) Unwrap() []error {
	return e.Problems
}

// UserMessage returns the first problem as the blocking message shown inline.
func (e *SubmissionValidationError) UserMessage() string {
	if len(e.Problems) == 0 {
		return ""
	}
	return e.Problems[0].Error()
}

// TransportError is a provider or network failure for one send attempt.
type TransportError struct {
	Provider string
	Status   int // HTTP-style status, 0 when the provider gave none
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("mail transport")
	if e.Provider != "" {
		b.WriteString(" " + e.Provider)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidateCampaign checks what must hold before any network call.
// Recipients are checked first, matching the order the form reports them.
func ValidateCampaign(c Campaign) error {
	var problems []error
	if len(c.Recipients) == 0 {
		problems = append(problems, ErrNoRecipients)
	}
	if strings.TrimSpace(c.Subject) == "" {
		problems = append(problems, ErrBlankSubject)
	}
	if strings.TrimSpace(c.Message) == "" {
		problems = append(problems, ErrBlankMessage)
	}
	for _, text := range []string{c.Subject, c.Message} {
		if _, err := CompileText(text); err != nil {
			problems = append(problems, fmt.Errorf("%w %v", ErrBadPlaceholder, err))
			break
		}
	}
	if len(problems) > 0 {
		return &SubmissionValidationError{Problems: problems}
	}
	return nil
}

// CampaignRecord is one finished send attempt as kept in history.
type CampaignRecord struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Provider   string    `json:"provider"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent_count"`
	Failed     int       `json:"failed_count"`
	Opens      int       `json:"opens_count"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMs int64     `json:"duration_ms"`
}

// CampaignRecorder persists send attempts. Recording failures are logged and
// never fail the send.
type CampaignRecorder interface {
	RecordCampaign(ctx context.Context, rec CampaignRecord) error
}

// Submitter validates campaigns and hands them to a Transport.
type Submitter struct {
	transport Transport
	limiter   *SendLimiter
	recorder  CampaignRecorder
	now       func() time.Time
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSendLimiter bounds concurrent sends across callers.
func WithSendLimiter(l *SendLimiter) SubmitterOption {
	return func(s *Submitter) { s.limiter = l }
}

// WithRecorder stores every attempt that reached the transport.
func WithRecorder(r CampaignRecorder) SubmitterOption {
	return func(s *Submitter) { s.recorder = r }
}

// NewSubmitter creates a Submitter for the given transport.
func NewSubmitter(t Transport, opts ...SubmitterOption) *Submitter {
	s := &Submitter{transport: t, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the transport name.
func (s *Submitter) Provider() string {
	return s.transport.Name()
}

// Limiter returns the send limiter, or nil if none is configured.
func (s *Submitter) Limiter() *SendLimiter {
	return s.limiter
}

// Submit validates c and sends it. Validation failures return a
// *SubmissionValidationError without contacting the transport; transport
// failures return a *TransportError. On success each renderer is handed the
// summary.
func (s *Submitter) Submit(ctx context.Context, c Campaign, renderers ...SummaryRenderer) (*DeliverySummary, error) {
	if err := ValidateCampaign(c); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	id := uuid.New().String()
	logger := logging.WithFields(ctx,
		"campaign_id", id,
		"provider", s.transport.Name(),
		"recipients", len(c.Recipients),
	)
	logger.Info("campaign send started")

	start := s.now()
	resp, err := s.transport.Send(ctx, SendRequest{
		CampaignID: id,
		Subject:    c.Subject,
		Message:    c.Message,
		Recipients: c.Recipients,
	})
	elapsed := s.now().Sub(start)

	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			te = &TransportError{Provider: s.transport.Name(), Err: err}
		}
		logger.Error("campaign send failed", "error", te, "duration_ms", elapsed.Milliseconds())
		s.record(ctx, CampaignRecord{
			ID:         id,
			Subject:    c.Subject,
			Provider:   s.transport.Name(),
			Total:      len(c.Recipients),
			Failed:     len(c.Recipients),
			Status:     "Failed",
			Error:      te.Error(),
			CreatedAt:  start,
			DurationMs: elapsed.Milliseconds(),
		})
		return nil, te
	}

	summary := Summarize(len(c.Recipients), resp.AcceptedCount)
	summary.CampaignID = id
	summary.Provider = s.transport.Name()
	summary.Duration = elapsed

	logger.Info("campaign send completed",
		"sent", summary.Sent,
		"failed", summary.Failed,
		"duration_ms", elapsed.Milliseconds(),
	)

	s.record(ctx, CampaignRecord{
		ID:         id,
		Subject:    c.Subject,
		Provider:   summary.Provider,
		Total:      summary.Total,
		Sent:       summary.Sent,
		Failed:     summary.Failed,
		Opens:      summary.Opens,
		Status:     summary.Status,
		CreatedAt:  start,
		DurationMs: elapsed.Milliseconds(),
	})

	for _, r := range renderers {
		r.RenderSummary(summary)
	}
	return &summary, nil
}

func (s *Submitter) record(ctx context.Context, rec CampaignRecord) {
	if s.recorder == nil {
		return
	}
	rec.SessionID = SessionIDFromContext(ctx)
	rec.IPAddress = IPAddressFromContext(ctx)
	// The send already happened; don't let a cancelled request drop the record.
	if err := s.recorder.RecordCampaign(context.WithoutCancel(ctx), rec); err != nil {
		logging.FromContext(ctx).Warn("failed to record campaign", "campaign_id", rec.ID, "error", err)
	}
}
