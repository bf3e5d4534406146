package database

// Timestamps are Unix seconds. A NULL price is an absent price. Price columns hold
// models.PriceScale decimal places. SQLite orders history by rowid; the server
// databases carry an identity column for it.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS price (
		jurisdiction TEXT NOT NULL,
		station INTEGER NOT NULL,
		fuel TEXT NOT NULL,
		price NUMERIC,
		checked_at INTEGER NOT NULL,
		changed_at INTEGER NOT NULL,
		PRIMARY KEY (jurisdiction, station, fuel)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		jurisdiction TEXT NOT NULL,
		station INTEGER NOT NULL,
		fuel TEXT NOT NULL,
		changed_at INTEGER NOT NULL,
		price NUMERIC
	)`,
	`CREATE INDEX IF NOT EXISTS price_history_key ON price_history (jurisdiction, station, fuel)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS price (
		jurisdiction TEXT NOT NULL,
		station BIGINT NOT NULL,
		fuel TEXT NOT NULL,
		price NUMERIC(10, 3),
		checked_at BIGINT NOT NULL,
		changed_at BIGINT NOT NULL,
		PRIMARY KEY (jurisdiction, station, fuel)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGINT GENERATED ALWAYS AS IDENTITY,
		jurisdiction TEXT NOT NULL,
		station BIGINT NOT NULL,
		fuel TEXT NOT NULL,
		changed_at BIGINT NOT NULL,
		price NUMERIC(10, 3)
	)`,
	`CREATE INDEX IF NOT EXISTS price_history_key ON price_history (jurisdiction, station, fuel)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so the index is declared inline.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS price (
		jurisdiction VARCHAR(8) NOT NULL,
		station BIGINT UNSIGNED NOT NULL,
		fuel VARCHAR(16) NOT NULL,
		price DECIMAL(10, 3) NULL,
		checked_at BIGINT NOT NULL,
		changed_at BIGINT NOT NULL,
		PRIMARY KEY (jurisdiction, station, fuel)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		jurisdiction VARCHAR(8) NOT NULL,
		station BIGINT UNSIGNED NOT NULL,
		fuel VARCHAR(16) NOT NULL,
		changed_at BIGINT NOT NULL,
		price DECIMAL(10, 3) NULL,
		PRIMARY KEY (id),
		INDEX price_history_key (jurisdiction, station, fuel)
	)`,
}
