package database

import (
	"context"
	"database/sql"
	"fmt"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"

	"github.com/lib/pq"
)

// PostgresMirror keeps PostgreSQL copies of the tracker tables.
type PostgresMirror struct {
	conn *sql.DB
}

func postgresConnString(cfg config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
}

func NewPostgresMirror(cfg config.PostgresConfig) (*PostgresMirror, error) {
	conn, err := sql.Open("postgres", postgresConnString(cfg))
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &PostgresMirror{conn: conn}, nil
}

func (m *PostgresMirror) Name() string {
	return "postgres"
}

func (m *PostgresMirror) Close() error {
	return m.conn.Close()
}

const listingColumns = `
		post_id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		brand VARCHAR(100),
		model VARCHAR(150),
		url TEXT,
		author_name TEXT,
		author_id VARCHAR(64),
		whatsapp VARCHAR(32),
		date_published TIMESTAMPTZ,
		description TEXT,
		price INTEGER,
		city VARCHAR(100),
		body_type VARCHAR(64),
		year_built INTEGER,
		color VARCHAR(64),
		drivetrain VARCHAR(64),
		engine_volume DECIMAL(6, 2),
		condition VARCHAR(64),
		fuel_type VARCHAR(64),
		customs_cleared VARCHAR(64),
		transmission VARCHAR(64),
		view_count INTEGER`

// InitSchema creates the mirror tables if they don't exist
func (m *PostgresMirror) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS active_listings (` + listingColumns + `
	);

	CREATE TABLE IF NOT EXISTS sold_listings (` + listingColumns + `,
		sold_date TIMESTAMPTZ NOT NULL,
		selling_time_hours DECIMAL(10, 2)
	);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		run_id VARCHAR(36) PRIMARY KEY,
		status VARCHAR(20) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		error TEXT,
		links_found INTEGER NOT NULL DEFAULT 0,
		new_links INTEGER NOT NULL DEFAULT 0,
		already_sold INTEGER NOT NULL DEFAULT 0,
		sold_by_absence INTEGER NOT NULL DEFAULT 0,
		sold_by_badge INTEGER NOT NULL DEFAULT 0,
		parsed INTEGER NOT NULL DEFAULT 0,
		not_a_car INTEGER NOT NULL DEFAULT 0,
		parse_failures INTEGER NOT NULL DEFAULT 0,
		fetch_failures INTEGER NOT NULL DEFAULT 0,
		normalization_defects INTEGER NOT NULL DEFAULT 0,
		batches_committed INTEGER NOT NULL DEFAULT 0,
		active_total INTEGER NOT NULL DEFAULT 0,
		sold_total INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_active_listings_brand ON active_listings(brand);
	CREATE INDEX IF NOT EXISTS idx_active_listings_price ON active_listings(price);
	CREATE INDEX IF NOT EXISTS idx_sold_listings_sold_date ON sold_listings(sold_date DESC);
	CREATE INDEX IF NOT EXISTS idx_crawl_runs_started_at ON crawl_runs(started_at DESC);
	`
	_, err := m.conn.Exec(query)
	return err
}

const upsertActive = `
	INSERT INTO active_listings (
		post_id, name, brand, model, url, author_name, author_id, whatsapp,
		date_published, description, price, city, body_type, year_built, color,
		drivetrain, engine_volume, condition, fuel_type, customs_cleared, transmission, view_count
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	ON CONFLICT (post_id) DO UPDATE SET
		name = EXCLUDED.name,
		brand = EXCLUDED.brand,
		model = EXCLUDED.model,
		url = EXCLUDED.url,
		author_name = EXCLUDED.author_name,
		author_id = EXCLUDED.author_id,
		whatsapp = EXCLUDED.whatsapp,
		date_published = EXCLUDED.date_published,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		city = EXCLUDED.city,
		body_type = EXCLUDED.body_type,
		year_built = EXCLUDED.year_built,
		color = EXCLUDED.color,
		drivetrain = EXCLUDED.drivetrain,
		engine_volume = EXCLUDED.engine_volume,
		condition = EXCLUDED.condition,
		fuel_type = EXCLUDED.fuel_type,
		customs_cleared = EXCLUDED.customs_cleared,
		transmission = EXCLUDED.transmission,
		view_count = EXCLUDED.view_count
	`

const insertSold = `
	INSERT INTO sold_listings (
		post_id, name, brand, model, url, author_name, author_id, whatsapp,
		date_published, description, price, city, body_type, year_built, color,
		drivetrain, engine_volume, condition, fuel_type, customs_cleared, transmission, view_count,
		sold_date, selling_time_hours
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	ON CONFLICT (post_id) DO NOTHING
	`

func listingArgs(l models.Listing) []any {
	return []any{
		l.PostID, l.Name, l.Brand, l.Model, l.URL, l.AuthorName, l.AuthorID, l.WhatsApp,
		l.DatePublished, l.Description, l.Price, l.City, l.BodyType, l.YearBuilt, l.Color,
		l.Drivetrain, l.EngineVolume, l.Condition, l.FuelType, l.CustomsCleared, l.Transmission, l.ViewCount,
	}
}

// Sync mirrors both tables in a single transaction.
func (m *PostgresMirror) Sync(ctx context.Context, t dataset.Tables) error {
	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	activeStmt, err := tx.PrepareContext(ctx, upsertActive)
	if err != nil {
		return err
	}
	defer activeStmt.Close()
	for _, l := range t.Active {
		if _, err := activeStmt.ExecContext(ctx, listingArgs(l)...); err != nil {
			return fmt.Errorf("upsert active %d: %w", l.PostID, err)
		}
	}

	soldIDs := make([]int64, 0, len(t.Sold))
	for _, s := range t.Sold {
		soldIDs = append(soldIDs, s.PostID)
	}
	if len(soldIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_listings WHERE post_id = ANY($1)`, pq.Array(soldIDs)); err != nil {
			return fmt.Errorf("delete sold from active: %w", err)
		}
	}

	soldStmt, err := tx.PrepareContext(ctx, insertSold)
	if err != nil {
		return err
	}
	defer soldStmt.Close()
	for _, s := range t.Sold {
		args := append(listingArgs(s.Listing), s.SoldDate, s.SellingTimeHours)
		if _, err := soldStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert sold %d: %w", s.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logging.Infof("[Postgres] mirrored %d active and %d sold listings", len(t.Active), len(t.Sold))
	return nil
}

// SaveRun inserts or updates a run summary.
func (m *PostgresMirror) SaveRun(ctx context.Context, r *models.RunSummary) error {
	query := `
	INSERT INTO crawl_runs (
		run_id, status, started_at, finished_at, error,
		links_found, new_links, already_sold, sold_by_absence, sold_by_badge,
		parsed, not_a_car, parse_failures, fetch_failures, normalization_defects,
		batches_committed, active_total, sold_total
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (run_id) DO UPDATE SET
		status = EXCLUDED.status,
		finished_at = EXCLUDED.finished_at,
		error = EXCLUDED.error,
		links_found = EXCLUDED.links_found,
		new_links = EXCLUDED.new_links,
		already_sold = EXCLUDED.already_sold,
		sold_by_absence = EXCLUDED.sold_by_absence,
		sold_by_badge = EXCLUDED.sold_by_badge,
		parsed = EXCLUDED.parsed,
		not_a_car = EXCLUDED.not_a_car,
		parse_failures = EXCLUDED.parse_failures,
		fetch_failures = EXCLUDED.fetch_failures,
		normalization_defects = EXCLUDED.normalization_defects,
		batches_committed = EXCLUDED.batches_committed,
		active_total = EXCLUDED.active_total,
		sold_total = EXCLUDED.sold_total
	`
	_, err := m.conn.ExecContext(ctx, query,
		r.RunID, string(r.Status), r.StartedAt, r.FinishedAt, r.Error,
		r.LinksFound, r.NewLinks, r.AlreadySold, r.SoldByAbsence, r.SoldByBadge,
		r.Parsed, r.NotACar, r.ParseFailures, r.FetchFailures, r.NormalizationDefects,
		r.BatchesCommitted, r.ActiveTotal, r.SoldTotal)
	return err
}

// RecentRuns returns the latest run summaries, newest first.
func (m *PostgresMirror) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	query := `
		SELECT run_id, status, started_at, finished_at, COALESCE(error, ''),
			   links_found, new_links, already_sold, sold_by_absence, sold_by_badge,
			   parsed, not_a_car, parse_failures, fetch_failures, normalization_defects,
			   batches_committed, active_total, sold_total
		FROM crawl_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := m.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		var status string
		err := rows.Scan(
			&r.RunID, &status, &r.StartedAt, &r.FinishedAt, &r.Error,
			&r.LinksFound, &r.NewLinks, &r.AlreadySold, &r.SoldByAbsence, &r.SoldByBadge,
			&r.Parsed, &r.NotACar, &r.ParseFailures, &r.FetchFailures, &r.NormalizationDefects,
			&r.BatchesCommitted, &r.ActiveTotal, &r.SoldTotal,
		)
		if err != nil {
			return nil, err
		}
		r.Status = models.RunStatus(status)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
