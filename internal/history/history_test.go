package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	mu       sync.Mutex
	execs    []execCall
	execErr  error
	affected int64
	rows     [][]any
	queryArg []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", f.affected)), nil
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.queryArg = args
	return &fakeRows{data: f.rows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (f *fakeDB) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.idx], nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		case *int64:
			*p = row[i].(int64)
		case *time.Time:
			*p = row[i].(time.Time)
		case *pgtype.Text:
			if s, ok := row[i].(string); ok {
				*p = pgtype.Text{String: s, Valid: true}
			} else {
				*p = pgtype.Text{}
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestRecordCampaign(t *testing.T) {
	db := &fakeDB{}
	store := New(db)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := store.RecordCampaign(context.Background(), core.CampaignRecord{
		ID:        "0b6f3c1e-9a53-4e0a-8d4c-3f1d2a7b9c10",
		Subject:   "Welcome",
		Provider:  "smtp",
		Total:     10,
		Sent:      8,
		Failed:    2,
		Opens:     1,
		Status:    core.StatusCompleted,
		SessionID: "sess-1",
		CreatedAt: created,
	})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	call := db.execs[0]
	assert.True(t, strings.HasPrefix(call.sql, "INSERT INTO campaign_history"))
	require.Len(t, call.args, 13)
	assert.Equal(t, pgtype.Text{}, call.args[8], "empty error should be NULL")
	assert.Equal(t, pgtype.Text{String: "sess-1", Valid: true}, call.args[9])
	assert.Equal(t, created, call.args[12])
}

func TestRecordCampaign_Error(t *testing.T) {
	store := New(&fakeDB{execErr: errors.New("connection reset")})

	err := store.RecordCampaign(context.Background(), core.CampaignRecord{ID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert campaign abc")
}

func TestList(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{"id-2", "Promo", "ses", 3, 0, 3, 0, "Failed", "mail transport ses: AccessDenied", nil, "203.0.113.7", int64(120), created},
		{"id-1", "Welcome", "smtp", 10, 8, 2, 1, "Completed", nil, "sess-1", nil, int64(900), created.Add(-time.Hour)},
	}}
	store := New(db)

	records, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []any{MaxListLimit}, db.queryArg)
	assert.Equal(t, "Failed", records[0].Status)
	assert.Equal(t, "mail transport ses: AccessDenied", records[0].Error)
	assert.Equal(t, "203.0.113.7", records[0].IPAddress)
	assert.Empty(t, records[0].SessionID)
	assert.Equal(t, 8, records[1].Sent)
	assert.Equal(t, "sess-1", records[1].SessionID)
}

func TestPrune(t *testing.T) {
	db := &fakeDB{affected: 7}
	n, err := New(db).Prune(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, int64(7), n)
	assert.Equal(t, []any{30}, db.execs[0].args)
}

func TestStartPruner(t *testing.T) {
	db := &fakeDB{}
	store := New(db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.StartPruner(ctx, PruneConfig{RetentionDays: 1, Interval: 10 * time.Millisecond})
		close(done)
	}()

	require.Eventually(t, func() bool { return db.execCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}

func TestPruneConfigDefaults(t *testing.T) {
	cfg := PruneConfig{}.withDefaults()
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.Interval)
}
