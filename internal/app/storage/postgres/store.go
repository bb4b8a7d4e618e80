package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/mintix/internal/app/domain/event"
	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/domain/user"
	"github.com/R3E-Network/mintix/internal/app/storage"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// --- UserStore ----------------------------------------------------------------

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)
	if err != nil {
		return user.User{}, translate(err)
	}
	return user.User{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// --- EventStore ---------------------------------------------------------------

type eventRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Location   []byte         `db:"location"`
	Categories pq.StringArray `db:"categories"`
	Media      string         `db:"media"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r eventRow) toDomain() (event.Event, error) {
	evt := event.Event{
		ID:         r.ID,
		Name:       r.Name,
		Categories: []string(r.Categories),
		Media:      r.Media,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if len(r.Location) > 0 && string(r.Location) != "null" {
		var loc event.Location
		if err := json.Unmarshal(r.Location, &loc); err != nil {
			return event.Event{}, err
		}
		evt.Location = &loc
	}
	if evt.Categories == nil {
		evt.Categories = []string{}
	}
	return evt, nil
}

const eventColumns = `id, name, location, categories, media, created_at, updated_at`

func (s *Store) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	evt.CreatedAt = now
	evt.UpdatedAt = now

	location, err := marshalLocation(evt.Location)
	if err != nil {
		return event.Event{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, location, categories, media, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evt.ID, evt.Name, location, pq.Array(evt.Categories), evt.Media, evt.CreatedAt, evt.UpdatedAt)
	if err != nil {
		return event.Event{}, translate(err)
	}
	return evt, nil
}

func (s *Store) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	existing, err := s.GetEvent(ctx, evt.ID)
	if err != nil {
		return event.Event{}, err
	}
	evt.CreatedAt = existing.CreatedAt
	evt.UpdatedAt = time.Now().UTC()

	location, err := marshalLocation(evt.Location)
	if err != nil {
		return event.Event{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET name = $2, location = $3, categories = $4, media = $5, updated_at = $6
		WHERE id = $1
	`, evt.ID, evt.Name, location, pq.Array(evt.Categories), evt.Media, evt.UpdatedAt)
	if err != nil {
		return event.Event{}, translate(err)
	}
	if err := requireAffected(result); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return event.Event{}, storage.ErrNotFound
	}
	var row eventRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		return event.Event{}, translate(err)
	}
	return row.toDomain()
}

func (s *Store) ListEvents(ctx context.Context, page storage.Page) ([]event.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limitOrAll(page.Limit), offset(page.Offset))
	if err != nil {
		return nil, translate(err)
	}
	out := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		evt, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

// --- TransactionStore ---------------------------------------------------------

type transactionRow struct {
	ID             string              `db:"id"`
	Kind           string              `db:"kind"`
	Amount         decimal.NullDecimal `db:"amount"`
	EventID        sql.NullString      `db:"event_id"`
	TicketAddress  string              `db:"ticket_address"`
	Signature      string              `db:"signature"`
	Status         string              `db:"status"`
	IdempotencyKey sql.NullString      `db:"idempotency_key"`
	RequestedBy    string              `db:"requested_by"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

func (r transactionRow) toDomain() ticket.Record {
	return ticket.Record{
		ID:             r.ID,
		Kind:           ticket.Kind(r.Kind),
		Amount:         r.Amount,
		EventID:        r.EventID.String,
		TicketAddress:  r.TicketAddress,
		Signature:      r.Signature,
		Status:         ticket.Status(r.Status),
		IdempotencyKey: r.IdempotencyKey.String,
		RequestedBy:    r.RequestedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const transactionColumns = `id, kind, amount, event_id, ticket_address, signature, status, idempotency_key, requested_by, created_at, updated_at`

func (s *Store) CreateTransaction(ctx context.Context, rec ticket.Record) (ticket.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, string(rec.Kind), rec.Amount, nullString(rec.EventID), rec.TicketAddress, rec.Signature,
		string(rec.Status), nullString(rec.IdempotencyKey), rec.RequestedBy, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return ticket.Record{}, translate(err)
	}
	return rec, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, rec ticket.Record) (ticket.Record, error) {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return ticket.Record{}, storage.ErrNotFound
	}
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE ticket_transactions
		SET amount = $2, event_id = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+transactionColumns, rec.ID, rec.Amount, nullString(rec.EventID), time.Now().UTC())
	if err != nil {
		return ticket.Record{}, translate(err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id string, status ticket.Status) (ticket.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ticket.Record{}, storage.ErrNotFound
	}
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE ticket_transactions
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+transactionColumns, id, string(status), time.Now().UTC())
	if err != nil {
		return ticket.Record{}, translate(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (ticket.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ticket.Record{}, storage.ErrNotFound
	}
	return s.getTransaction(ctx, `SELECT `+transactionColumns+` FROM ticket_transactions WHERE id = $1`, id)
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (ticket.Record, error) {
	return s.getTransaction(ctx, `SELECT `+transactionColumns+` FROM ticket_transactions WHERE idempotency_key = $1`, key)
}

func (s *Store) getTransaction(ctx context.Context, query string, arg any) (ticket.Record, error) {
	var row transactionRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		return ticket.Record{}, translate(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTransactions(ctx context.Context, page storage.Page) ([]ticket.Record, error) {
	return s.selectTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM ticket_transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limitOrAll(page.Limit), offset(page.Offset))
}

func (s *Store) ListTransactionsByAddress(ctx context.Context, address string, page storage.Page) ([]ticket.Record, error) {
	return s.selectTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM ticket_transactions
		WHERE ticket_address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, address, limitOrAll(page.Limit), offset(page.Offset))
}

func (s *Store) ListTransactionsByStatus(ctx context.Context, status ticket.Status, limit int) ([]ticket.Record, error) {
	return s.selectTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM ticket_transactions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, string(status), limitOrAll(limit))
}

func (s *Store) selectTransactions(ctx context.Context, query string, args ...any) ([]ticket.Record, error) {
	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate(err)
	}
	out := make([]ticket.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM ticket_transactions WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

// --- helpers ------------------------------------------------------------------

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// marshalLocation returns text rather than bytes since lib/pq would send []byte as bytea.
func marshalLocation(loc *event.Location) (sql.NullString, error) {
	if loc == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// limitOrAll maps a non-positive limit to NULL, which Postgres treats as no limit.
func offset(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
