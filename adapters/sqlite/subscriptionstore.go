package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// SubscriptionStore implements ports.SubscriptionStore with SQLite.
// Decrement is a single conditional UPDATE guarded on the remaining counter
// and the validity window, so concurrent spenders of the last unit race at
// the row, and at most one wins. Admin mutations and their audit entries
// share a transaction.
type SubscriptionStore struct {
	db *DB
}

// NewSubscriptionStore creates a new SQLite subscription store.
func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subColumns = `id, subscriber_id, plan_id, COALESCE(source_payment_id, ''),
	started_at, expires_at, remaining_listings, remaining_featured,
	total_listings, total_featured, revoked_at, created_at, updated_at`

// Get retrieves a subscription by ID.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

// ListBySubscriber returns a subscriber's subscriptions, expires_at ascending
// with created_at as tie-break.
func (s *SubscriptionStore) ListBySubscriber(ctx context.Context, subscriberID string) ([]subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions
		WHERE subscriber_id = ?
		ORDER BY expires_at ASC, created_at ASC
	`, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// Decrement atomically spends units of one quota field.
func (s *SubscriptionStore) Decrement(ctx context.Context, id string, field subscription.QuotaField, by int64, now time.Time) (subscription.Subscription, error) {
	var column string
	switch field {
	case subscription.FieldListings:
		column = "remaining_listings"
	case subscription.FieldFeatured:
		column = "remaining_featured"
	default:
		return subscription.Subscription{}, fmt.Errorf("unknown quota field %q", field)
	}
	if by <= 0 {
		return subscription.Subscription{}, fmt.Errorf("decrement by must be positive")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET `+column+` = `+column+` - ?, updated_at = ?
		WHERE id = ? AND revoked_at IS NULL AND expires_at > ? AND `+column+` >= ?
	`, by, now.UTC(), id, now.UTC(), by)
	if err != nil {
		return subscription.Subscription{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return subscription.Subscription{}, err
	}
	if n == 1 {
		return s.Get(ctx, id)
	}

	// Nothing updated; read back to classify the rejection.
	sub, err := s.Get(ctx, id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if !sub.Active(now) {
		return sub, subscription.ErrInactive
	}
	return sub, subscription.ErrQuotaExhausted
}

// CreateAudited stores an admin-granted subscription and its audit entry
// atomically.
func (s *SubscriptionStore) CreateAudited(ctx context.Context, sub subscription.Subscription, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

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
			return subscription.ErrDuplicateGrant
		}
		return err
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ExtendAudited pushes the expiry out by days and writes the audit entry
// atomically. The new expiry is derived from the stored one via a
// compare-and-swap on expires_at, so concurrent extends accumulate: a retry
// only happens when another extend committed in between.
func (s *SubscriptionStore) ExtendAudited(ctx context.Context, id string, days int, entry audit.Entry) (subscription.Subscription, error) {
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return subscription.Subscription{}, err
		}
		newExpiry := subscription.ExtendedExpiry(entry.CreatedAt, cur.ExpiresAt, days)

		sub, err := s.extendCAS(ctx, id, cur.ExpiresAt, newExpiry, entry)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, errExpiryChanged) {
			return subscription.Subscription{}, err
		}
	}
	return subscription.Subscription{}, fmt.Errorf("extend subscription %s: too much contention", id)
}

// errExpiryChanged signals a lost compare-and-swap on expires_at.
var errExpiryChanged = errors.New("expiry changed concurrently")

func (s *SubscriptionStore) extendCAS(ctx context.Context, id string, oldExpiry, newExpiry time.Time, entry audit.Entry) (subscription.Subscription, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return subscription.Subscription{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET expires_at = ?, updated_at = ? WHERE id = ? AND expires_at = ?
	`, newExpiry.UTC(), entry.CreatedAt.UTC(), id, oldExpiry.UTC())
	if err != nil {
		return subscription.Subscription{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return subscription.Subscription{}, err
	}
	if n == 0 {
		return subscription.Subscription{}, errExpiryChanged
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return subscription.Subscription{}, err
	}
	if err := tx.Commit(); err != nil {
		return subscription.Subscription{}, err
	}
	return s.Get(ctx, id)
}

// ResetUsageAudited restores the remaining counters to the given totals and
// writes the audit entry atomically. Expiry is untouched.
func (s *SubscriptionStore) ResetUsageAudited(ctx context.Context, id string, listings, featured int64, entry audit.Entry) (subscription.Subscription, error) {
	return s.mutateAudited(ctx, id, entry, `
		UPDATE subscriptions SET remaining_listings = ?, remaining_featured = ?, updated_at = ? WHERE id = ?
	`, listings, featured, entry.CreatedAt.UTC(), id)
}

// RevokeAudited marks the subscription revoked and writes the audit entry
// atomically.
func (s *SubscriptionStore) RevokeAudited(ctx context.Context, id string, entry audit.Entry) (subscription.Subscription, error) {
	return s.mutateAudited(ctx, id, entry, `
		UPDATE subscriptions SET revoked_at = ?, updated_at = ? WHERE id = ?
	`, entry.CreatedAt.UTC(), entry.CreatedAt.UTC(), id)
}

// mutateAudited runs one subscription UPDATE plus the audit insert in a
// transaction. A mutation that audits-but-doesn't-apply (or the reverse) is a
// data-integrity bug, so neither half commits alone.
func (s *SubscriptionStore) mutateAudited(ctx context.Context, id string, entry audit.Entry, query string, args ...interface{}) (subscription.Subscription, error) {
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return subscription.Subscription{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return subscription.Subscription{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return subscription.Subscription{}, err
	}
	if n == 0 {
		return subscription.Subscription{}, ports.ErrNotFound
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return subscription.Subscription{}, err
	}
	if err := tx.Commit(); err != nil {
		return subscription.Subscription{}, err
	}
	return s.Get(ctx, id)
}

func insertAudit(ctx context.Context, tx *sql.Tx, entry audit.Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_entries (id, action, actor_id, subscription_id, payment_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Action), entry.ActorID, nullStr(entry.SubscriptionID),
		nullStr(entry.PaymentID), entry.Reason, entry.CreatedAt.UTC())
	return err
}

// List returns subscriptions for export, newest first.
func (s *SubscriptionStore) List(ctx context.Context, f ports.ExportFilter) ([]subscription.Subscription, error) {
	query := `SELECT ` + subColumns + ` FROM subscriptions`
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
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows *sql.Rows) ([]subscription.Subscription, error) {
	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanSubscription(row rowScanner) (subscription.Subscription, error) {
	var sub subscription.Subscription
	var revokedAt sql.NullTime
	err := row.Scan(&sub.ID, &sub.SubscriberID, &sub.PlanID, &sub.SourcePaymentID,
		&sub.StartedAt, &sub.ExpiresAt, &sub.RemainingListings, &sub.RemainingFeatured,
		&sub.TotalListings, &sub.TotalFeatured, &revokedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return subscription.Subscription{}, ports.ErrNotFound
	}
	if err != nil {
		return subscription.Subscription{}, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		sub.RevokedAt = &t
	}
	return sub, nil
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
