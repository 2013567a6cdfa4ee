package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
	"github.com/JonMunkholm/bulkmail/internal/web/views"
)

var (
	errNoFile       = errors.New("no file provided")
	errNotCSV       = errors.New("only .csv files are accepted")
	errFileTooLarge = errors.New("file too large")
)

// maxFormSize bounds JSON and form bodies that are not file uploads.
const maxFormSize = 1 << 20

// RecipientsResponse is the JSON view of a session's recipient list.
type RecipientsResponse struct {
	Count      int                 `json:"count"`
	Recipients []core.Recipient    `json:"recipients"`
	Invalid    []core.InvalidEntry `json:"invalid"`
	Result     *core.LoadResult    `json:"result,omitempty"`
	Added      *bool               `json:"added,omitempty"`
}

// recipientInput is a manual entry from a form or JSON body.
type recipientInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// readInput fills dst from a JSON body, or from form fields named by the
// dst struct's json tags.
func readInput(w http.ResponseWriter, r *http.Request, dst *recipientInput) error {
	if isJSONBody(r) {
		return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormSize)).Decode(dst)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		return err
	}
	dst.Email = r.FormValue("email")
	dst.FirstName = r.FormValue("first_name")
	dst.LastName = r.FormValue("last_name")
	return nil
}

// snapshot copies the session's lists under its lock.
func (sess *session) snapshot() ([]core.Recipient, []core.InvalidEntry) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.store.Recipients(), sess.store.Invalid()
}

// handleListRecipients returns the current list.
func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, invalid := sessionFrom(r.Context()).snapshot()

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, views.RecipientList(recipients))
		return
	}
	writeJSON(w, http.StatusOK, RecipientsResponse{
		Count:      len(recipients),
		Recipients: recipients,
		Invalid:    invalid,
	})
}

// handleUploadRecipients replaces the list with a parsed CSV. It accepts a
// multipart "file" field or a raw text/csv body. A malformed file leaves the
// previous list in place.
func (s *Server) handleUploadRecipients(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.readUpload(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.respondError(w, r, err, status)
		return
	}

	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	result, err := sess.store.LoadFromParse(bytes.NewReader(data))
	if err == nil {
		sess.source = name
	}
	recipients, invalid := sess.store.Recipients(), sess.store.Invalid()
	sess.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logging.FromContext(r.Context()).Info("recipients loaded",
		"file", name,
		"rows", result.Rows,
		"stored", result.Stored,
		"invalid", result.Invalid,
		"duplicates", result.Duplicates,
	)

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK,
			views.LoadNotice(result),
			views.RecipientsPanel(recipients, true),
			views.InvalidPanel(invalid, true),
		)
		return
	}
	writeJSON(w, http.StatusOK, RecipientsResponse{
		Count:      len(recipients),
		Recipients: recipients,
		Invalid:    invalid,
		Result:     &result,
	})
}

// readUpload returns the uploaded bytes and the file name ("" for a raw body).
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/form-data") {
		if !strings.HasPrefix(ct, "text/csv") && !strings.HasPrefix(ct, "text/plain") {
			return nil, "", errNoFile
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", uploadReadError(err)
		}
		return data, "", nil
	}

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, "", uploadReadError(err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errNoFile
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return nil, "", fmt.Errorf("%w: %s", errNotCSV, header.Filename)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", uploadReadError(err)
	}
	return data, header.Filename, nil
}

func uploadReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, tooLarge.Limit)
	}
	// multipart parsing does not always wrap *http.MaxBytesError.
	if strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %v", errFileTooLarge, err)
	}
	return fmt.Errorf("%w: %v", errNoFile, err)
}

// handleAddRecipient appends one manually entered recipient. A duplicate
// address is not an error; the list is unchanged.
func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var in recipientInput
	if err := readInput(w, r, &in); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidEmail, err), http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	added, err := sess.store.AddManual(in.Email, in.FirstName, in.LastName)
	recipients, invalid := sess.store.Recipients(), sess.store.Invalid()
	sess.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	if isHTMX(r) {
		renderFragment(w, r, status, views.RecipientList(recipients))
		return
	}
	writeJSON(w, status, RecipientsResponse{
		Count:      len(recipients),
		Recipients: recipients,
		Invalid:    invalid,
		Added:      &added,
	})
}

// handleRemoveRecipient deletes the recipient at the given position.
func (s *Server) handleRemoveRecipient(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrIndexOutOfRange, raw), http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	err = sess.store.RemoveAt(index)
	recipients, invalid := sess.store.Recipients(), sess.store.Invalid()
	sess.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, views.RecipientList(recipients))
		return
	}
	writeJSON(w, http.StatusOK, RecipientsResponse{
		Count:      len(recipients),
		Recipients: recipients,
		Invalid:    invalid,
	})
}

// EmailCheckResponse is the live validation state of the manual entry field.
type EmailCheckResponse struct {
	State   core.EmailState `json:"state"`
	Message string          `json:"message"`
	CanAdd  bool            `json:"can_add"`
}

// handleCheckEmail validates the manual entry field on each keystroke.
func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var in recipientInput
	if err := readInput(w, r, &in); err != nil {
		in.Email = ""
	}
	state := core.CheckEmail(in.Email)

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, views.EmailStatus(state))
		return
	}
	writeJSON(w, http.StatusOK, EmailCheckResponse{
		State:   state,
		Message: state.Message(),
		CanAdd:  state.CanAdd(),
	})
}

// handleExportInvalid downloads the rejected rows of the last upload as CSV.
func (s *Server) handleExportInvalid(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	invalid := sess.store.Invalid()
	source := sess.source
	sess.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.FailedFileName(source)))
	if err := core.WriteInvalidCSV(w, invalid); err != nil {
		logging.FromContext(r.Context()).Error("write invalid csv", "error", err)
	}
}
