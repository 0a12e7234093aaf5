package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	GetTransactionsByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*Transaction, error)

	// Verdict operations
	SaveVerdict(ctx context.Context, tenantID string, verdict *RiskVerdict) error
	GetVerdict(ctx context.Context, tenantID string, verdictID string) (*RiskVerdict, error)
	ListVerdictsByUser(ctx context.Context, tenantID string, userID string, limit int) ([]*RiskVerdict, error)

	// Alert operations
	SaveAlert(ctx context.Context, tenantID string, alert *FraudAlert) error
	GetAlert(ctx context.Context, tenantID string, alertID string) (*FraudAlert, error)
	UpdateAlert(ctx context.Context, tenantID string, alert *FraudAlert) error
	ListAlertsByStatus(ctx context.Context, tenantID string, status AlertStatus, limit int) ([]*FraudAlert, error)

	// Profile operations. SaveProfile is an upsert keyed by user;
	// GetProfile returns a not-found error for an unknown user.
	SaveProfile(ctx context.Context, tenantID string, profile *UserProfile) error
	GetProfile(ctx context.Context, tenantID string, userID string) (*UserProfile, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
