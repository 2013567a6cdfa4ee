package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
	"github.com/JonMunkholm/bulkmail/internal/web/views"
)

// msgCampaignSent is the success text shown on the dashboard and returned
// by both send endpoints.
const msgCampaignSent = "Campaign sent successfully!"

var (
	errMissingCampaignData = errors.New("Missing required campaign data.")
	errSendFailed          = errors.New("Failed to send campaign.")
)

// CampaignMetrics is the metrics object of a send response.
type CampaignMetrics struct {
	Status      string `json:"status"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	OpensCount  int    `json:"opens_count"`
}

// SendResponse is the JSON body of a successful send.
type SendResponse struct {
	Message string                `json:"message"`
	Metrics CampaignMetrics       `json:"metrics"`
	Summary *core.DeliverySummary `json:"summary,omitempty"`
}

func metricsOf(s core.DeliverySummary) CampaignMetrics {
	return CampaignMetrics{
		Status:      s.Status,
		SentCount:   s.Sent,
		FailedCount: s.Failed,
		OpensCount:  s.Opens,
	}
}

// composeInput is the subject and message of a session send.
type composeInput struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func readCompose(w http.ResponseWriter, r *http.Request) (composeInput, error) {
	var in composeInput
	if isJSONBody(r) {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormSize)).Decode(&in)
		return in, err
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Subject = r.FormValue("subject")
	in.Message = r.FormValue("message")
	return in, nil
}

// sendStatus picks the HTTP status for a failed Submit.
func sendStatus(err error) int {
	var ve *core.SubmissionValidationError
	var te *core.TransportError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSendInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManySends):
		return http.StatusServiceUnavailable
	case errors.As(err, &te):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleSendCampaign sends the session's recipient list. Only one send per
// session runs at a time; the list is snapshotted when the send starts, so
// edits made while it runs apply to the next campaign.
func (s *Server) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	in, err := readCompose(w, r)
	if err != nil {
		s.respondError(w, r, errMissingCampaignData, http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	if err := sess.beginSend(); err != nil {
		s.respondError(w, r, err, sendStatus(err))
		return
	}

	recipients, _ := sess.snapshot()
	ctx := WithRequestMetadata(r.Context(), r)
	summary, err := s.submitter.Submit(ctx, core.Campaign{
		Subject:    in.Subject,
		Message:    in.Message,
		Recipients: recipients,
	}, sess.events)
	sess.endSend(summary)

	if err != nil {
		s.respondError(w, r, err, sendStatus(err))
		return
	}

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, views.Dashboard(*summary))
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{
		Message: msgCampaignSent,
		Metrics: metricsOf(*summary),
		Summary: summary,
	})
}

// statelessRecipient accepts the recipient shapes older clients post.
type statelessRecipient struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (sr statelessRecipient) recipient() core.Recipient {
	r := core.Recipient{
		Email:     strings.TrimSpace(sr.Email),
		FirstName: strings.TrimSpace(sr.FirstName),
		LastName:  strings.TrimSpace(sr.LastName),
	}
	if r.FirstName == "" && r.LastName == "" && sr.Name != "" {
		first, last, _ := strings.Cut(strings.TrimSpace(sr.Name), " ")
		r.FirstName, r.LastName = first, strings.TrimSpace(last)
	}
	return r
}

type statelessSendRequest struct {
	Subject    string               `json:"subject"`
	Message    string               `json:"message"`
	Recipients []statelessRecipient `json:"recipients"`
}

// messageBody is the error shape of POST /api/send.
type messageBody struct {
	Message string `json:"message"`
}

// handleStatelessSend keeps the original JSON contract of POST /api/send:
// the caller supplies the whole campaign and gets metrics or a bare message.
func (s *Server) handleStatelessSend(w http.ResponseWriter, r *http.Request) {
	var req statelessSendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: errMissingCampaignData.Error()})
		return
	}
	if req.Subject == "" || req.Message == "" || len(req.Recipients) == 0 {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: errMissingCampaignData.Error()})
		return
	}

	recipients := make([]core.Recipient, 0, len(req.Recipients))
	for _, sr := range req.Recipients {
		recipients = append(recipients, sr.recipient())
	}

	ctx := WithRequestMetadata(r.Context(), r)
	summary, err := s.submitter.Submit(ctx, core.Campaign{
		Subject:    req.Subject,
		Message:    req.Message,
		Recipients: recipients,
	})
	if err != nil {
		logging.FromContext(ctx).Error("stateless send failed", "error", err, "code", core.MapError(err).Code)

		var ve *core.SubmissionValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, messageBody{Message: errMissingCampaignData.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: errSendFailed.Error()})
		return
	}

	writeJSON(w, http.StatusOK, SendResponse{
		Message: msgCampaignSent,
		Metrics: metricsOf(*summary),
	})
}
