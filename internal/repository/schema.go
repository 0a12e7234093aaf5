package repository

// Schema definitions for Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    merchant_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    category TEXT,
    user_lat REAL NOT NULL DEFAULT 0,
    user_lon REAL NOT NULL DEFAULT 0,
    merchant_lat REAL NOT NULL DEFAULT 0,
    merchant_lon REAL NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    features TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, timestamp);
`

const schemaVerdicts = `
CREATE TABLE IF NOT EXISTS verdicts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    level TEXT NOT NULL,
    probability REAL NOT NULL,
    confidence REAL NOT NULL,
    blended TEXT NOT NULL,
    geo TEXT NOT NULL,
    anomalies TEXT NOT NULL,
    estimators TEXT NOT NULL,
    flags TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_tenant ON verdicts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_tx ON verdicts(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_user ON verdicts(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_level ON verdicts(tenant_id, level);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL,
    verdict TEXT NOT NULL,
    notes TEXT,
    created_at TIMESTAMP NOT NULL,
    reviewed_at TIMESTAMP,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_tenant ON alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(tenant_id, user_id);
`

// schemaProfiles stores one versioned row per user. The rolling window
// is serialized as JSON; row size is bounded by the window cap.
const schemaProfiles = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    window_json TEXT NOT NULL,
    max_window INTEGER NOT NULL,
    version INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_profiles_tenant ON user_profiles(tenant_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaVerdicts,
		schemaAlerts,
		schemaProfiles,
	}
}
