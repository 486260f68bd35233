package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/metria/report-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// offline runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id            TEXT PRIMARY KEY,
	agency_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	email         TEXT,
	phone         TEXT,
	active        INTEGER NOT NULL DEFAULT 1,
	integrations  TEXT NOT NULL DEFAULT '{}',
	report_config TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL REFERENCES clients(id),
	agency_id     TEXT NOT NULL,
	period        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'PENDING',
	ai_analysis   TEXT,
	pdf_url       TEXT,
	error_message TEXT,
	sent_at       DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (client_id, period)
);

CREATE TABLE IF NOT EXISTS metrics (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL REFERENCES clients(id),
	agency_id  TEXT NOT NULL,
	source     TEXT NOT NULL,
	period     TEXT NOT NULL,
	data       TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (client_id, source, period)
);

CREATE INDEX IF NOT EXISTS idx_clients_agency ON clients(agency_id, active);
CREATE INDEX IF NOT EXISTS idx_reports_client ON reports(client_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_metrics_client_period ON metrics(client_id, period);
`

const periodFormat = "2006-01-02"

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agency_id, name, COALESCE(email, ''), COALESCE(phone, ''), active, integrations, report_config, created_at, updated_at
		 FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (s *SQLiteStore) ListActiveClients(ctx context.Context, agencyID string) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agency_id, name, COALESCE(email, ''), COALESCE(phone, ''), active, integrations, report_config, created_at, updated_at
		 FROM clients WHERE agency_id = ? AND active = 1 ORDER BY name`, agencyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active clients")
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "sqlite: iterate clients")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*model.Client, error) {
	var c model.Client
	var integrations, reportConfig string
	err := row.Scan(&c.ID, &c.AgencyID, &c.Name, &c.Email, &c.Phone, &c.Active,
		&integrations, &reportConfig, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("store: client not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan client")
	}
	if err := json.Unmarshal([]byte(integrations), &c.Integrations); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode integrations")
	}
	if err := json.Unmarshal([]byte(reportConfig), &c.ReportConfig); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode report config")
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateClientIntegrations(ctx context.Context, clientID string, integrations model.ClientIntegrations) error {
	blob, err := json.Marshal(integrations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal integrations")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET integrations = ?, updated_at = ? WHERE id = ?`,
		string(blob), time.Now().UTC(), clientID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update client integrations %s", clientID)
	}
	return checkRowsAffected(res, "client", clientID)
}

func (s *SQLiteStore) UpsertReport(ctx context.Context, clientID, agencyID string, period time.Time) (*model.Report, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	p := model.MonthStart(period).Format(periodFormat)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, client_id, agency_id, period, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (client_id, period) DO UPDATE SET
			status = excluded.status,
			error_message = NULL,
			updated_at = excluded.updated_at`,
		id, clientID, agencyID, p, string(model.StatusPending), now, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert report")
	}
	return s.GetReportByPeriod(ctx, clientID, period)
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	return scanReport(row)
}

func (s *SQLiteStore) GetReportByPeriod(ctx context.Context, clientID string, period time.Time) (*model.Report, error) {
	p := model.MonthStart(period).Format(periodFormat)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE client_id = ? AND period = ?`, clientID, p)
	return scanReport(row)
}

const reportColumns = `id, client_id, agency_id, period, status,
	COALESCE(ai_analysis, ''), COALESCE(pdf_url, ''), COALESCE(error_message, ''),
	sent_at, created_at, updated_at`

func scanReport(row rowScanner) (*model.Report, error) {
	var r model.Report
	var period string
	var sentAt sql.NullTime
	err := row.Scan(&r.ID, &r.ClientID, &r.AgencyID, &period, &r.Status,
		&r.AIAnalysis, &r.PdfURL, &r.ErrorMessage, &sentAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("store: report not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}
	r.Period, err = time.ParseInLocation(periodFormat, period, time.UTC)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse report period")
	}
	if sentAt.Valid {
		t := sentAt.Time
		r.SentAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), nullable(errorMessage), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report status %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) SetReportAnalysis(ctx context.Context, id, analysis string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET ai_analysis = ?, updated_at = ? WHERE id = ?`,
		analysis, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report analysis %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) SetReportPdfURL(ctx context.Context, id, pdfURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET pdf_url = ?, updated_at = ? WHERE id = ?`,
		nullable(pdfURL), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report pdf url %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) FinishReport(ctx context.Context, id string, status model.ReportStatus, errorMessage string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error_message = ?, sent_at = ?, updated_at = ? WHERE id = ?`,
		string(status), nullable(errorMessage), sentAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish report %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) UpsertMetric(ctx context.Context, metric model.Metric) error {
	id := metric.ID
	if id == "" {
		id = uuid.New().String()
	}
	fetchedAt := metric.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	p := model.MonthStart(metric.Period).Format(periodFormat)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (id, client_id, agency_id, source, period, data, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (client_id, source, period) DO UPDATE SET
			data = excluded.data,
			fetched_at = excluded.fetched_at`,
		id, metric.ClientID, metric.AgencyID, string(metric.Source), p, string(metric.Data), fetchedAt)
	return eris.Wrap(err, "sqlite: upsert metric")
}

func (s *SQLiteStore) ListMetrics(ctx context.Context, clientID string, period time.Time) ([]model.Metric, error) {
	p := model.MonthStart(period).Format(periodFormat)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, agency_id, source, period, data, fetched_at
		 FROM metrics WHERE client_id = ? AND period = ? ORDER BY source`, clientID, p)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		var m model.Metric
		var periodStr, data string
		if err := rows.Scan(&m.ID, &m.ClientID, &m.AgencyID, &m.Source, &periodStr, &data, &m.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric")
		}
		m.Period, err = time.ParseInLocation(periodFormat, periodStr, time.UTC)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: parse metric period")
		}
		m.Data = json.RawMessage(data)
		metrics = append(metrics, m)
	}
	return metrics, eris.Wrap(rows.Err(), "sqlite: iterate metrics")
}

// SeedClient inserts or replaces a client row, used by local setups and tests.
func (s *SQLiteStore) SeedClient(ctx context.Context, c model.Client) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	integrations, err := json.Marshal(c.Integrations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal integrations")
	}
	reportConfig, err := json.Marshal(c.ReportConfig)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report config")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clients (id, agency_id, name, email, phone, active, integrations, report_config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			active = excluded.active,
			integrations = excluded.integrations,
			report_config = excluded.report_config,
			updated_at = excluded.updated_at`,
		c.ID, c.AgencyID, c.Name, c.Email, c.Phone, c.Active, string(integrations), string(reportConfig), now, now)
	return eris.Wrap(err, "sqlite: seed client")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func checkRowsAffected(res rowsAffecter, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", entity, id)
	}
	return nil
}
