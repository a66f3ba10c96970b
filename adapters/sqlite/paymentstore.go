package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// PaymentStore implements ports.PaymentStore with SQLite. The state machine
// is enforced with conditional UPDATEs keyed on status = 'PENDING', so a
// transition races at the database, not in application code.
type PaymentStore struct {
	db *DB
}

// NewPaymentStore creates a new SQLite payment store.
func NewPaymentStore(db *DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `id, subscriber_id, plan_id, amount, phone_number, status,
	COALESCE(provider_ref, ''), COALESCE(receipt, ''), COALESCE(fail_reason, ''),
	created_at, terminal_at`

// Create stores a new payment in PENDING.
func (s *PaymentStore) Create(ctx context.Context, p payment.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, subscriber_id, plan_id, amount, phone_number, status,
			provider_ref, receipt, fail_reason, created_at, terminal_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.SubscriberID, p.PlanID, p.Amount, p.PhoneNumber, string(p.Status),
		nullStr(p.ProviderRef), nullStr(p.Receipt), nullStr(p.FailReason),
		p.CreatedAt.UTC(), nullTime(p.TerminalAt))
	return err
}

// Get retrieves a payment by ID.
func (s *PaymentStore) Get(ctx context.Context, id string) (payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	return scanPayment(row)
}

// GetByProviderRef retrieves a payment by its provider correlation id.
func (s *PaymentStore) GetByProviderRef(ctx context.Context, ref string) (payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_ref = ?`, ref)
	return scanPayment(row)
}

// SetProviderRef records the provider correlation id after initiation.
func (s *PaymentStore) SetProviderRef(ctx context.Context, id, ref string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE payments SET provider_ref = ? WHERE id = ?`, ref, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Transition moves a payment to a terminal status. The conditional UPDATE is
// the compare-and-set: zero rows affected means the payment was already
// terminal (or missing), so repeated callbacks become no-ops upstream.
func (s *PaymentStore) Transition(ctx context.Context, id string, to payment.Status, failReason string, at time.Time) (payment.Payment, error) {
	if err := payment.CanTransition(payment.StatusPending, to); err != nil {
		return payment.Payment{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = ?, fail_reason = ?, terminal_at = ?
		WHERE id = ? AND status = ?
	`, string(to), nullStr(failReason), at.UTC(), id, string(payment.StatusPending))
	if err != nil {
		return payment.Payment{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return payment.Payment{}, err
	}
	if n == 0 {
		// Lost the race or unknown id; read back to tell which.
		p, getErr := s.Get(ctx, id)
		if getErr != nil {
			return payment.Payment{}, getErr
		}
		return p, payment.ErrInvalidTransition
	}
	return s.Get(ctx, id)
}

// Settle records the SUCCESS transition and the granted subscription in one
// transaction. Either both rows land or neither does.
func (s *PaymentStore) Settle(ctx context.Context, id, receipt string, sub subscription.Subscription, at time.Time) (payment.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payment.Payment{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = ?, receipt = ?, terminal_at = ?
		WHERE id = ? AND status = ?
	`, string(payment.StatusSuccess), receipt, at.UTC(), id, string(payment.StatusPending))
	if err != nil {
		return payment.Payment{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return payment.Payment{}, err
	}
	if n == 0 {
		p, getErr := s.Get(ctx, id)
		if getErr != nil {
			return payment.Payment{}, getErr
		}
		return p, payment.ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, subscriber_id, plan_id, source_payment_id,
			started_at, expires_at, remaining_listings, remaining_featured,
			total_listings, total_featured, revoked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.SubscriberID, sub.PlanID, nullStr(sub.SourcePaymentID),
		sub.StartedAt.UTC(), sub.ExpiresAt.UTC(), sub.RemainingListings, sub.RemainingFeatured,
		sub.TotalListings, sub.TotalFeatured, nullTime(sub.RevokedAt),
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return payment.Payment{}, subscription.ErrDuplicateGrant
		}
		return payment.Payment{}, err
	}

	if err := tx.Commit(); err != nil {
		return payment.Payment{}, err
	}
	return s.Get(ctx, id)
}

// ListPendingBefore returns PENDING payments created before the cutoff.
func (s *PaymentStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]payment.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC
	`, string(payment.StatusPending), cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// List returns payments for export, newest first.
func (s *PaymentStore) List(ctx context.Context, f ports.ExportFilter) ([]payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	var conds []string
	var args []interface{}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UTC())
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]payment.Payment, error) {
	var out []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (payment.Payment, error) {
	var p payment.Payment
	var status string
	var terminalAt sql.NullTime
	err := row.Scan(&p.ID, &p.SubscriberID, &p.PlanID, &p.Amount, &p.PhoneNumber,
		&status, &p.ProviderRef, &p.Receipt, &p.FailReason, &p.CreatedAt, &terminalAt)
	if errors.Is(err, sql.ErrNoRows) {
		return payment.Payment{}, ports.ErrNotFound
	}
	if err != nil {
		return payment.Payment{}, err
	}
	p.Status = payment.Status(status)
	if terminalAt.Valid {
		t := terminalAt.Time
		p.TerminalAt = &t
	}
	return p, nil
}

// Ensure interface compliance.
var _ ports.PaymentStore = (*PaymentStore)(nil)
