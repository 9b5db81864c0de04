package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"payconnect/internal/domain"
)

// SQLiteStore is the durable implementation of Store. The conditional
// status update is a single UPDATE ... WHERE status IN (...), so it stays
// correct across multiple process instances sharing the database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath and
// runs the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS gateway_accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			payment_provider TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'test'
		);

		CREATE TABLE IF NOT EXISTS charges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			gateway_account_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			status TEXT NOT NULL,
			gateway_transaction_id TEXT,
			provider_session_id TEXT,
			return_url TEXT,
			reference TEXT,
			description TEXT,
			email TEXT,
			card_brand TEXT,
			last_four_digits TEXT,
			created_date DATETIME NOT NULL,
			FOREIGN KEY (gateway_account_id) REFERENCES gateway_accounts(id)
		);

		CREATE INDEX IF NOT EXISTS idx_charges_status ON charges(status);
		CREATE INDEX IF NOT EXISTS idx_charges_gateway_txn ON charges(gateway_transaction_id);

		CREATE TABLE IF NOT EXISTS charge_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			charge_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			recorded_at DATETIME NOT NULL,
			gateway_event_time DATETIME,
			FOREIGN KEY (charge_id) REFERENCES charges(id)
		);

		CREATE INDEX IF NOT EXISTS idx_charge_events_charge ON charge_events(charge_id);

		CREATE TABLE IF NOT EXISTS refunds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			charge_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			status TEXT NOT NULL,
			gateway_transaction_id TEXT,
			user_external_id TEXT,
			created_date DATETIME NOT NULL,
			FOREIGN KEY (charge_id) REFERENCES charges(id)
		);

		CREATE TABLE IF NOT EXISTS refund_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			refund_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			recorded_at DATETIME NOT NULL,
			gateway_event_time DATETIME,
			FOREIGN KEY (refund_id) REFERENCES refunds(id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// placeholders returns "?,?,..." with n members.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

const chargeColumns = `id, external_id, gateway_account_id, amount, status,
	COALESCE(gateway_transaction_id, ''), COALESCE(provider_session_id, ''),
	COALESCE(return_url, ''), COALESCE(reference, ''), COALESCE(description, ''),
	COALESCE(email, ''), COALESCE(card_brand, ''), COALESCE(last_four_digits, ''),
	created_date`

func scanCharge(row interface{ Scan(...any) error }) (*domain.Charge, error) {
	var c domain.Charge
	err := row.Scan(&c.ID, &c.ExternalID, &c.GatewayAccountID, &c.Amount, &c.Status,
		&c.GatewayTransactionID, &c.ProviderSessionID,
		&c.ReturnURL, &c.Reference, &c.Description,
		&c.Email, &c.CardBrand, &c.LastFourDigits,
		&c.CreatedDate)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCharge persists a new charge and assigns its internal id.
func (s *SQLiteStore) CreateCharge(ctx context.Context, charge *domain.Charge) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO charges (external_id, gateway_account_id, amount, status,
			gateway_transaction_id, provider_session_id, return_url, reference,
			description, email, card_brand, last_four_digits, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.ExternalID, charge.GatewayAccountID, charge.Amount, charge.Status,
		charge.GatewayTransactionID, charge.ProviderSessionID, charge.ReturnURL,
		charge.Reference, charge.Description, charge.Email, charge.CardBrand,
		charge.LastFourDigits, charge.CreatedDate)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	charge.ID = id
	return nil
}

func (s *SQLiteStore) chargeWhere(ctx context.Context, clause string, args ...any) (*domain.Charge, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chargeColumns+` FROM charges WHERE `+clause, args...)
	charge, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChargeNotFound
	}
	return charge, err
}

// ChargeByID retrieves a charge by internal id.
func (s *SQLiteStore) ChargeByID(ctx context.Context, id int64) (*domain.Charge, error) {
	return s.chargeWhere(ctx, `id = ?`, id)
}

// ChargeByExternalID retrieves a charge by its public external id.
func (s *SQLiteStore) ChargeByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	return s.chargeWhere(ctx, `external_id = ?`, externalID)
}

// ChargeByGatewayTransactionID retrieves a charge by the provider reference.
func (s *SQLiteStore) ChargeByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Charge, error) {
	return s.chargeWhere(ctx, `gateway_transaction_id = ? AND gateway_transaction_id != ''`, transactionID)
}

// ChargeByProviderSessionID retrieves a charge by the secondary PSP reference.
func (s *SQLiteStore) ChargeByProviderSessionID(ctx context.Context, sessionID string) (*domain.Charge, error) {
	return s.chargeWhere(ctx, `provider_session_id = ? AND provider_session_id != ''`, sessionID)
}

func (s *SQLiteStore) chargesWhere(ctx context.Context, clause string, args ...any) ([]*domain.Charge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chargeColumns+` FROM charges WHERE `+clause+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []*domain.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, charge)
	}
	return charges, rows.Err()
}

// ChargesByStatus returns charges whose status is in the given set.
func (s *SQLiteStore) ChargesByStatus(ctx context.Context, statuses ...domain.ChargeStatus) ([]*domain.Charge, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return s.chargesWhere(ctx, `status IN (`+placeholders(len(statuses))+`)`, args...)
}

// ChargesCreatedBefore returns charges created before cutoff whose status is
// in the given set.
func (s *SQLiteStore) ChargesCreatedBefore(ctx context.Context, cutoff time.Time, statuses ...domain.ChargeStatus) ([]*domain.Charge, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []any{cutoff}
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return s.chargesWhere(ctx, `created_date < ? AND status IN (`+placeholders(len(statuses))+`)`, args...)
}

// SetChargeGatewayReferences stores the provider references on a charge.
func (s *SQLiteStore) SetChargeGatewayReferences(ctx context.Context, chargeID int64, transactionID, sessionID string) error {
	return s.execOnCharge(ctx,
		`UPDATE charges SET gateway_transaction_id = ?, provider_session_id = ? WHERE id = ?`,
		transactionID, sessionID, chargeID)
}

// SetChargeCardDetails stores the card snapshot on a charge.
func (s *SQLiteStore) SetChargeCardDetails(ctx context.Context, chargeID int64, brand, lastFour string) error {
	return s.execOnCharge(ctx,
		`UPDATE charges SET card_brand = ?, last_four_digits = ? WHERE id = ?`,
		brand, lastFour, chargeID)
}

func (s *SQLiteStore) execOnCharge(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrChargeNotFound
	}
	return nil
}

// TransitionChargeStatus performs the conditional status update as a single
// UPDATE guarded by the expected-status set. Zero rows affected with an
// existing charge means another actor won the race.
func (s *SQLiteStore) TransitionChargeStatus(ctx context.Context, chargeID int64, expected []domain.ChargeStatus, next domain.ChargeStatus) (bool, error) {
	if len(expected) == 0 {
		return false, nil
	}
	args := []any{string(next), chargeID}
	for _, status := range expected {
		args = append(args, string(status))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE charges SET status = ? WHERE id = ? AND status IN (`+placeholders(len(expected))+`)`,
		args...)
	if err != nil {
		return false, fmt.Errorf("transition charge status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// Distinguish a lost race from a charge that does not exist.
	if _, err := s.ChargeByID(ctx, chargeID); err != nil {
		return false, err
	}
	return false, nil
}

// RecordChargeEvent appends to the charge event log.
func (s *SQLiteStore) RecordChargeEvent(ctx context.Context, chargeID int64, status domain.ChargeStatus, gatewayEventTime *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO charge_events (charge_id, status, recorded_at, gateway_event_time) VALUES (?, ?, ?, ?)`,
		chargeID, string(status), time.Now().UTC(), gatewayEventTime)
	if err != nil {
		return fmt.Errorf("record charge event: %w", err)
	}
	return nil
}

// ChargeEvents returns the event log for a charge in recording order.
func (s *SQLiteStore) ChargeEvents(ctx context.Context, chargeID int64) ([]domain.ChargeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, charge_id, status, recorded_at, gateway_event_time
		 FROM charge_events WHERE charge_id = ? ORDER BY id`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ChargeEvent
	for rows.Next() {
		var e domain.ChargeEvent
		var gatewayTime sql.NullTime
		if err := rows.Scan(&e.ID, &e.ChargeID, &e.Status, &e.RecordedAt, &gatewayTime); err != nil {
			return nil, err
		}
		if gatewayTime.Valid {
			t := gatewayTime.Time
			e.GatewayEventTime = &t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// HasChargeEvent reports whether the event log already contains an event
// with the given status for the charge.
func (s *SQLiteStore) HasChargeEvent(ctx context.Context, chargeID int64, status domain.ChargeStatus) (bool, error) {
	n, err := s.CountChargeEvents(ctx, chargeID, status)
	return n > 0, err
}

// CountChargeEvents counts events with the given status for the charge.
func (s *SQLiteStore) CountChargeEvents(ctx context.Context, chargeID int64, status domain.ChargeStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM charge_events WHERE charge_id = ? AND status = ?`,
		chargeID, string(status)).Scan(&n)
	return n, err
}

const refundColumns = `id, external_id, charge_id, amount, status,
	COALESCE(gateway_transaction_id, ''), COALESCE(user_external_id, ''), created_date`

func scanRefund(row interface{ Scan(...any) error }) (*domain.Refund, error) {
	var r domain.Refund
	err := row.Scan(&r.ID, &r.ExternalID, &r.ChargeID, &r.Amount, &r.Status,
		&r.GatewayTransactionID, &r.UserExternalID, &r.CreatedDate)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRefund persists a new refund and assigns its internal id.
func (s *SQLiteStore) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO refunds (external_id, charge_id, amount, status,
			gateway_transaction_id, user_external_id, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		refund.ExternalID, refund.ChargeID, refund.Amount, refund.Status,
		refund.GatewayTransactionID, refund.UserExternalID, refund.CreatedDate)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	refund.ID = id
	return nil
}

func (s *SQLiteStore) refundWhere(ctx context.Context, clause string, args ...any) (*domain.Refund, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refunds WHERE `+clause, args...)
	refund, err := scanRefund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRefundNotFound
	}
	return refund, err
}

// RefundByID retrieves a refund by internal id.
func (s *SQLiteStore) RefundByID(ctx context.Context, id int64) (*domain.Refund, error) {
	return s.refundWhere(ctx, `id = ?`, id)
}

// RefundByExternalID retrieves a refund by its public external id.
func (s *SQLiteStore) RefundByExternalID(ctx context.Context, externalID string) (*domain.Refund, error) {
	return s.refundWhere(ctx, `external_id = ?`, externalID)
}

// RefundByGatewayTransactionID retrieves a refund by the provider reference.
func (s *SQLiteStore) RefundByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Refund, error) {
	return s.refundWhere(ctx, `gateway_transaction_id = ? AND gateway_transaction_id != ''`, transactionID)
}

func (s *SQLiteStore) refundsWhere(ctx context.Context, clause string, args ...any) ([]*domain.Refund, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+refundColumns+` FROM refunds WHERE `+clause+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []*domain.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, refund)
	}
	return refunds, rows.Err()
}

// RefundsByChargeID returns all refunds for a charge.
func (s *SQLiteStore) RefundsByChargeID(ctx context.Context, chargeID int64) ([]*domain.Refund, error) {
	return s.refundsWhere(ctx, `charge_id = ?`, chargeID)
}

// RefundsByStatus returns refunds whose status is in the given set.
func (s *SQLiteStore) RefundsByStatus(ctx context.Context, statuses ...domain.RefundStatus) ([]*domain.Refund, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return s.refundsWhere(ctx, `status IN (`+placeholders(len(statuses))+`)`, args...)
}

// SetRefundGatewayTransactionID stores the provider reference on a refund.
func (s *SQLiteStore) SetRefundGatewayTransactionID(ctx context.Context, refundID int64, transactionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refunds SET gateway_transaction_id = ? WHERE id = ?`, transactionID, refundID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRefundNotFound
	}
	return nil
}

// TransitionRefundStatus is the refund counterpart of TransitionChargeStatus.
func (s *SQLiteStore) TransitionRefundStatus(ctx context.Context, refundID int64, expected []domain.RefundStatus, next domain.RefundStatus) (bool, error) {
	if len(expected) == 0 {
		return false, nil
	}
	args := []any{string(next), refundID}
	for _, status := range expected {
		args = append(args, string(status))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE refunds SET status = ? WHERE id = ? AND status IN (`+placeholders(len(expected))+`)`,
		args...)
	if err != nil {
		return false, fmt.Errorf("transition refund status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.RefundByID(ctx, refundID); err != nil {
		return false, err
	}
	return false, nil
}

// RecordRefundEvent appends to the refund event log.
func (s *SQLiteStore) RecordRefundEvent(ctx context.Context, refundID int64, status domain.RefundStatus, gatewayEventTime *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refund_events (refund_id, status, recorded_at, gateway_event_time) VALUES (?, ?, ?, ?)`,
		refundID, string(status), time.Now().UTC(), gatewayEventTime)
	if err != nil {
		return fmt.Errorf("record refund event: %w", err)
	}
	return nil
}

// RefundEvents returns the event log for a refund in recording order.
func (s *SQLiteStore) RefundEvents(ctx context.Context, refundID int64) ([]domain.RefundEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, refund_id, status, recorded_at, gateway_event_time
		 FROM refund_events WHERE refund_id = ? ORDER BY id`, refundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RefundEvent
	for rows.Next() {
		var e domain.RefundEvent
		var gatewayTime sql.NullTime
		if err := rows.Scan(&e.ID, &e.RefundID, &e.Status, &e.RecordedAt, &gatewayTime); err != nil {
			return nil, err
		}
		if gatewayTime.Valid {
			t := gatewayTime.Time
			e.GatewayEventTime = &t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// HasRefundEvent reports whether the event log already contains an event
// with the given status for the refund.
func (s *SQLiteStore) HasRefundEvent(ctx context.Context, refundID int64, status domain.RefundStatus) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refund_events WHERE refund_id = ? AND status = ?`,
		refundID, string(status)).Scan(&n)
	return n > 0, err
}

// CreateAccount stores a gateway account, assigning an id if unset.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *domain.GatewayAccount) error {
	if account.ID != 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO gateway_accounts (id, payment_provider, type) VALUES (?, ?, ?)`,
			account.ID, account.PaymentProvider, account.Type)
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO gateway_accounts (payment_provider, type) VALUES (?, ?)`,
		account.PaymentProvider, account.Type)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	account.ID = id
	return nil
}

// AccountByID retrieves a gateway account.
func (s *SQLiteStore) AccountByID(ctx context.Context, id int64) (*domain.GatewayAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, payment_provider, type FROM gateway_accounts WHERE id = ?`, id)
	var a domain.GatewayAccount
	err := row.Scan(&a.ID, &a.PaymentProvider, &a.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
