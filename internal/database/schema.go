package database

// TableDefinitions holds the idempotent DDL for every core table, leaves
// first. Executed in order by InitializeDatabase.
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS deliveries (
		id BIGSERIAL PRIMARY KEY,
		campaign_id VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		template_id VARCHAR(128) NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		provider_message_id VARCHAR(128) UNIQUE,
		status VARCHAR(20) NOT NULL DEFAULT 'queued',
		attempt_no INTEGER NOT NULL DEFAULT 1,
		http_status INTEGER,
		error_kind VARCHAR(32),
		error_detail VARCHAR(512),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_campaign_id ON deliveries(campaign_id)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_provider_message_id ON deliveries(provider_message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_email ON deliveries(email)`,

	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		provider VARCHAR(32) NOT NULL,
		event_type VARCHAR(20) NOT NULL,
		provider_message_id VARCHAR(128) NOT NULL DEFAULT '',
		recipient VARCHAR(255) NOT NULL DEFAULT '',
		payload_json TEXT NOT NULL DEFAULT '',
		signature_valid BOOLEAN NOT NULL DEFAULT FALSE,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_provider_message_id ON events(provider_message_id)`,

	`CREATE TABLE IF NOT EXISTS suppressions (
		email VARCHAR(255) PRIMARY KEY,
		kind VARCHAR(20) NOT NULL,
		detail VARCHAR(512) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS daily_quota (
		day CHAR(10) PRIMARY KEY,
		used INTEGER NOT NULL DEFAULT 0 CHECK (used >= 0)
	)`,
}
