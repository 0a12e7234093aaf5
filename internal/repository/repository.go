// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	features, _ := json.Marshal(tx.Features)

	query := `
		INSERT INTO transactions (
			id, tenant_id, user_id, merchant_id, amount, currency, category,
			user_lat, user_lon, merchant_lat, merchant_lon,
			timestamp, created_at, features
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.UserID, tx.MerchantID,
		tx.Amount, tx.Currency, tx.Category,
		tx.UserLocation.Lat, tx.UserLocation.Lon,
		tx.MerchantLocation.Lat, tx.MerchantLocation.Lon,
		tx.Timestamp, tx.CreatedAt,
		string(features),
	)
	return err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, user_id, merchant_id, amount, currency, category,
			   user_lat, user_lon, merchant_lat, merchant_lon,
			   timestamp, created_at, features
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransactionsByUser retrieves a user's transactions since a cutoff,
// newest first, with tenant isolation.
func (r *SQLRepository) GetTransactionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, user_id, merchant_id, amount, currency, category,
			   user_lat, user_lon, merchant_lat, merchant_lon,
			   timestamp, created_at, features
		FROM transactions
		WHERE tenant_id = ? AND user_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var category sql.NullString
	var features string

	err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.UserID, &tx.MerchantID,
		&tx.Amount, &tx.Currency, &category,
		&tx.UserLocation.Lat, &tx.UserLocation.Lon,
		&tx.MerchantLocation.Lat, &tx.MerchantLocation.Lon,
		&tx.Timestamp, &tx.CreatedAt,
		&features,
	)
	if err != nil {
		return nil, err
	}

	tx.Category = category.String
	if features != "" && features != "null" {
		json.Unmarshal([]byte(features), &tx.Features)
	}
	return &tx, nil
}

// SaveVerdict stores a risk verdict with tenant isolation.
func (r *SQLRepository) SaveVerdict(ctx context.Context, tenantID string, verdict *domain.RiskVerdict) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	blended, _ := json.Marshal(verdict.Blended)
	geoCtx, _ := json.Marshal(verdict.Geo)
	anomalies, _ := json.Marshal(verdict.Anomalies)
	estimators, _ := json.Marshal([]domain.EstimatorResult{verdict.LocalModel, verdict.GlobalModel})
	flags, _ := json.Marshal(verdict.Flags)
	metadata, _ := json.Marshal(verdict.Metadata)

	query := `
		INSERT INTO verdicts (
			id, tenant_id, tx_id, user_id, level, probability, confidence,
			blended, geo, anomalies, estimators, flags, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		verdict.ID, tenantID, verdict.TxID, verdict.UserID,
		string(verdict.Level), verdict.Blended.Probability, verdict.Confidence,
		string(blended), string(geoCtx), string(anomalies), string(estimators),
		string(flags), verdict.Timestamp, string(metadata),
	)
	return err
}

// GetVerdict retrieves a verdict by ID with tenant isolation.
func (r *SQLRepository) GetVerdict(ctx context.Context, tenantID string, verdictID string) (*domain.RiskVerdict, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, user_id, level, confidence,
			   blended, geo, anomalies, estimators, flags, timestamp, metadata
		FROM verdicts
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, verdictID)
	verdict, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return verdict, nil
}

// ListVerdictsByUser retrieves a user's most recent verdicts with tenant
// isolation, newest first.
func (r *SQLRepository) ListVerdictsByUser(ctx context.Context, tenantID string, userID string, limit int) ([]*domain.RiskVerdict, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, tx_id, user_id, level, confidence,
			   blended, geo, anomalies, estimators, flags, timestamp, metadata
		FROM verdicts
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []*domain.RiskVerdict
	for rows.Next() {
		verdict, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, verdict)
	}

	return verdicts, rows.Err()
}

func scanVerdict(row rowScanner) (*domain.RiskVerdict, error) {
	var v domain.RiskVerdict
	var level string
	var blended, geoCtx, anomalies, estimators, flags, metadata string

	err := row.Scan(
		&v.ID, &v.TenantID, &v.TxID, &v.UserID, &level, &v.Confidence,
		&blended, &geoCtx, &anomalies, &estimators, &flags,
		&v.Timestamp, &metadata,
	)
	if err != nil {
		return nil, err
	}

	v.Level = domain.RiskLevel(level)
	json.Unmarshal([]byte(blended), &v.Blended)
	json.Unmarshal([]byte(geoCtx), &v.Geo)
	json.Unmarshal([]byte(anomalies), &v.Anomalies)
	json.Unmarshal([]byte(flags), &v.Flags)
	json.Unmarshal([]byte(metadata), &v.Metadata)

	var results []domain.EstimatorResult
	json.Unmarshal([]byte(estimators), &results)
	if len(results) > 0 {
		v.LocalModel = results[0]
	}
	if len(results) > 1 {
		v.GlobalModel = results[1]
	}

	return &v, nil
}

// SaveAlert stores a fraud alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.FraudAlert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	verdict, _ := json.Marshal(alert.Verdict)

	query := `
		INSERT INTO alerts (
			id, tenant_id, tx_id, user_id, status, verdict, notes,
			created_at, reviewed_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.TxID, alert.UserID,
		string(alert.Status), string(verdict), alert.Notes,
		alert.CreatedAt, alert.ReviewedAt, alert.ResolvedAt,
	)
	return err
}

// GetAlert retrieves an alert by ID with tenant isolation.
func (r *SQLRepository) GetAlert(ctx context.Context, tenantID string, alertID string) (*domain.FraudAlert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, user_id, status, verdict, notes,
			   created_at, reviewed_at, resolved_at
		FROM alerts
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, alertID)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// UpdateAlert persists a status transition with tenant isolation.
func (r *SQLRepository) UpdateAlert(ctx context.Context, tenantID string, alert *domain.FraudAlert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE alerts
		SET status = ?, notes = ?, reviewed_at = ?, resolved_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(alert.Status), alert.Notes, alert.ReviewedAt, alert.ResolvedAt,
		tenantID, alert.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAlertsByStatus retrieves alerts in a status with tenant isolation,
// newest first. An empty status lists all alerts.
func (r *SQLRepository) ListAlertsByStatus(ctx context.Context, tenantID string, status domain.AlertStatus, limit int) ([]*domain.FraudAlert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, tx_id, user_id, status, verdict, notes,
			   created_at, reviewed_at, resolved_at
		FROM alerts
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += `
		ORDER BY created_at DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.FraudAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*domain.FraudAlert, error) {
	var a domain.FraudAlert
	var status, verdict string
	var notes sql.NullString
	var reviewedAt, resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.TenantID, &a.TxID, &a.UserID, &status, &verdict, &notes,
		&a.CreatedAt, &reviewedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.AlertStatus(status)
	a.Notes = notes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		a.ReviewedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if err := json.Unmarshal([]byte(verdict), &a.Verdict); err != nil {
		return nil, fmt.Errorf("failed to parse alert verdict snapshot: %w", err)
	}

	return &a, nil
}

// SaveProfile upserts a user's rolling profile with tenant isolation.
func (r *SQLRepository) SaveProfile(ctx context.Context, tenantID string, profile *domain.UserProfile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	window, err := json.Marshal(profile.Window)
	if err != nil {
		return fmt.Errorf("failed to serialize profile window: %w", err)
	}

	query := `
		INSERT INTO user_profiles (
			user_id, tenant_id, window_json, max_window, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, tenant_id) DO UPDATE SET
			window_json = excluded.window_json,
			max_window = excluded.max_window,
			version = excluded.version,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		profile.UserID, tenantID, string(window),
		profile.MaxWindow, profile.Version, profile.UpdatedAt,
	)
	return err
}

// GetProfile retrieves a user's rolling profile with tenant isolation.
func (r *SQLRepository) GetProfile(ctx context.Context, tenantID string, userID string) (*domain.UserProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT user_id, window_json, max_window, version, updated_at
		FROM user_profiles
		WHERE tenant_id = ? AND user_id = ?
	`

	var p domain.UserProfile
	var window string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, userID).Scan(
		&p.UserID, &window, &p.MaxWindow, &p.Version, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(window), &p.Window); err != nil {
		return nil, fmt.Errorf("failed to parse profile window for %s: %w", userID, err)
	}

	return &p, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
