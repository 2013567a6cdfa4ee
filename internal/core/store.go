package core

// store.go holds the recipient list for one session.
//
// RecipientStore is the single owner of recipient state. It does no locking:
// callers that share a store between goroutines must serialize access (the web
// layer holds a per-session mutex). Every mutation redraws the full list on
// each subscribed Renderer; incremental rendering is not attempted.

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidEmail is returned by AddManual when the address fails the format check.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrIndexOutOfRange is returned by RemoveAt for a position outside the list.
	ErrIndexOutOfRange = errors.New("recipient index out of range")
)

// Renderer receives full redraw instructions from a RecipientStore.
type Renderer interface {
	RenderRecipients(list []Recipient)
	RenderInvalid(list []InvalidEntry)
}

// RecipientStore is an ordered list of recipients, unique by lower-cased email.
type RecipientStore struct {
	recipients []Recipient
	invalid    []InvalidEntry
	renderers  []Renderer
}

// NewRecipientStore creates an empty store that redraws to the given renderers.
func NewRecipientStore(renderers ...Renderer) *RecipientStore {
	return &RecipientStore{renderers: renderers}
}

// Subscribe adds a renderer and immediately sends it the current state.
func (s *RecipientStore) Subscribe(r Renderer) {
	s.renderers = append(s.renderers, r)
	r.RenderRecipients(s.Recipients())
	r.RenderInvalid(s.Invalid())
}

// Unsubscribe removes a renderer added with Subscribe.
func (s *RecipientStore) Unsubscribe(r Renderer) {
	for i, existing := range s.renderers {
		if existing == r {
			s.renderers = append(s.renderers[:i], s.renderers[i+1:]...)
			return
		}
	}
}

// LoadFromParse parses, validates and dedups a table, then replaces the whole
// store with the result. Manual entries are not kept. If the table cannot be
// parsed the store and its invalid list are left exactly as they were.
func (s *RecipientStore) LoadFromParse(r io.Reader) (LoadResult, error) {
	table, err := ParseTable(r)
	if err != nil {
		return LoadResult{}, err
	}
	return s.load(table), nil
}

// LoadRows replaces the store from already-parsed rows.
func (s *RecipientStore) LoadRows(rows []Row) LoadResult {
	return s.load(&ParsedTable{Rows: rows})
}

func (s *RecipientStore) load(table *ParsedTable) LoadResult {
	s.invalid = nil
	s.renderInvalid()

	valid, invalid := validateTable(table)
	deduped := Dedupe(valid)

	s.recipients = deduped
	s.invalid = invalid

	s.renderRecipients()
	s.renderInvalid()

	return LoadResult{
		Rows:       len(table.Rows),
		Valid:      len(valid),
		Invalid:    len(invalid),
		Duplicates: len(valid) - len(deduped),
		Stored:     len(deduped),
	}
}

// AddManual appends one recipient typed into the entry form, then re-runs
// dedup over the whole store. It reports whether the entry was kept; a
// duplicate of an existing address is dropped without error.
func (s *RecipientStore) AddManual(email, firstName, lastName string) (bool, error) {
	email = strings.TrimSpace(email)
	if !CheckEmail(email).CanAdd() {
		return false, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	before := len(s.recipients)
	s.recipients = Dedupe(append(s.recipients, Recipient{
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}))
	s.renderRecipients()

	return len(s.recipients) > before, nil
}

// RemoveAt deletes the recipient at index, keeping the order of the rest.
func (s *RecipientStore) RemoveAt(index int) error {
	if index < 0 || index >= len(s.recipients) {
		return fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, index, len(s.recipients))
	}
	s.recipients = append(s.recipients[:index], s.recipients[index+1:]...)
	s.renderRecipients()
	return nil
}

// Count returns the number of stored recipients.
func (s *RecipientStore) Count() int {
	return len(s.recipients)
}

// Recipients returns a copy of the current list.
func (s *RecipientStore) Recipients() []Recipient {
	out := make([]Recipient, len(s.recipients))
	copy(out, s.recipients)
	return out
}

// Invalid returns a copy of the rejects from the last successful load.
func (s *RecipientStore) Invalid() []InvalidEntry {
	out := make([]InvalidEntry, len(s.invalid))
	copy(out, s.invalid)
	return out
}

func (s *RecipientStore) renderRecipients() {
	if len(s.renderers) == 0 {
		return
	}
	snapshot := s.Recipients()
	for _, r := range s.renderers {
		r.RenderRecipients(snapshot)
	}
}

func (s *RecipientStore) renderInvalid() {
	if len(s.renderers) == 0 {
		return
	}
	snapshot := s.Invalid()
	for _, r := range s.renderers {
		r.RenderInvalid(snapshot)
	}
}
