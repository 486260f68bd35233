package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/metria/report-cli/internal/db"
	"github.com/metria/report-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_report":           `SELECT ` + pgReportColumns + ` FROM reports WHERE id = $1`,
	"get_report_by_period": `SELECT ` + pgReportColumns + ` FROM reports WHERE client_id = $1 AND period = $2`,
	"update_report_status": `UPDATE reports SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
	"list_metrics":         `SELECT id, client_id, agency_id, source, period, data, fetched_at FROM metrics WHERE client_id = $1 AND period = $2 ORDER BY source`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk metric backfills).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id            UUID PRIMARY KEY,
	agency_id     UUID NOT NULL,
	name          TEXT NOT NULL,
	email         TEXT,
	phone         TEXT,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	integrations  JSONB NOT NULL DEFAULT '{}',
	report_config JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id            UUID PRIMARY KEY,
	client_id     UUID NOT NULL REFERENCES clients(id),
	agency_id     UUID NOT NULL,
	period        DATE NOT NULL,
	status        TEXT NOT NULL DEFAULT 'PENDING',
	ai_analysis   TEXT,
	pdf_url       TEXT,
	error_message TEXT,
	sent_at       TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (client_id, period)
);

CREATE TABLE IF NOT EXISTS metrics (
	id         UUID PRIMARY KEY,
	client_id  UUID NOT NULL REFERENCES clients(id),
	agency_id  UUID NOT NULL,
	source     TEXT NOT NULL,
	period     DATE NOT NULL,
	data       JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (client_id, source, period)
);

CREATE INDEX IF NOT EXISTS idx_clients_agency ON clients(agency_id, active);
CREATE INDEX IF NOT EXISTS idx_reports_client ON reports(client_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_metrics_client_period ON metrics(client_id, period);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgClientColumns = `id, agency_id, name, COALESCE(email, ''), COALESCE(phone, ''), active, integrations, report_config, created_at, updated_at`

func (s *PostgresStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgClientColumns+` FROM clients WHERE id = $1`, id)
	return scanPgClient(row)
}

func (s *PostgresStore) ListActiveClients(ctx context.Context, agencyID string) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgClientColumns+` FROM clients WHERE agency_id = $1 AND active ORDER BY name`, agencyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active clients")
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanPgClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "postgres: iterate clients")
}

func scanPgClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	var integrations, reportConfig []byte
	err := row.Scan(&c.ID, &c.AgencyID, &c.Name, &c.Email, &c.Phone, &c.Active,
		&integrations, &reportConfig, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("store: client not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan client")
	}
	if err := json.Unmarshal(integrations, &c.Integrations); err != nil {
		return nil, eris.Wrap(err, "postgres: decode integrations")
	}
	if err := json.Unmarshal(reportConfig, &c.ReportConfig); err != nil {
		return nil, eris.Wrap(err, "postgres: decode report config")
	}
	return &c, nil
}

func (s *PostgresStore) UpdateClientIntegrations(ctx context.Context, clientID string, integrations model.ClientIntegrations) error {
	blob, err := json.Marshal(integrations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal integrations")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE clients SET integrations = $1, updated_at = now() WHERE id = $2`,
		blob, clientID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update client integrations %s", clientID)
	}
	return checkTag(tag, "client", clientID)
}

const pgReportColumns = `id, client_id, agency_id, period, status,
	COALESCE(ai_analysis, ''), COALESCE(pdf_url, ''), COALESCE(error_message, ''),
	sent_at, created_at, updated_at`

func (s *PostgresStore) UpsertReport(ctx context.Context, clientID, agencyID string, period time.Time) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO reports (id, client_id, agency_id, period, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (client_id, period) DO UPDATE SET
			status = EXCLUDED.status,
			error_message = NULL,
			updated_at = now()
		 RETURNING `+pgReportColumns,
		uuid.New().String(), clientID, agencyID, model.MonthStart(period), string(model.StatusPending))
	return scanPgReport(row)
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgReportColumns+` FROM reports WHERE id = $1`, id)
	return scanPgReport(row)
}

func (s *PostgresStore) GetReportByPeriod(ctx context.Context, clientID string, period time.Time) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgReportColumns+` FROM reports WHERE client_id = $1 AND period = $2`,
		clientID, model.MonthStart(period))
	return scanPgReport(row)
}

func scanPgReport(row pgx.Row) (*model.Report, error) {
	var r model.Report
	var sentAt *time.Time
	err := row.Scan(&r.ID, &r.ClientID, &r.AgencyID, &r.Period, &r.Status,
		&r.AIAnalysis, &r.PdfURL, &r.ErrorMessage, &sentAt, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("store: report not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan report")
	}
	r.Period = r.Period.UTC()
	r.SentAt = sentAt
	return &r, nil
}

func (s *PostgresStore) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		string(status), nullable(errorMessage), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update report status %s", id)
	}
	return checkTag(tag, "report", id)
}

func (s *PostgresStore) SetReportAnalysis(ctx context.Context, id, analysis string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET ai_analysis = $1, updated_at = now() WHERE id = $2`,
		analysis, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report analysis %s", id)
	}
	return checkTag(tag, "report", id)
}

func (s *PostgresStore) SetReportPdfURL(ctx context.Context, id, pdfURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET pdf_url = $1, updated_at = now() WHERE id = $2`,
		nullable(pdfURL), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report pdf url %s", id)
	}
	return checkTag(tag, "report", id)
}

func (s *PostgresStore) FinishReport(ctx context.Context, id string, status model.ReportStatus, errorMessage string, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, error_message = $2, sent_at = $3, updated_at = now() WHERE id = $4`,
		string(status), nullable(errorMessage), sentAt.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish report %s", id)
	}
	return checkTag(tag, "report", id)
}

func (s *PostgresStore) UpsertMetric(ctx context.Context, metric model.Metric) error {
	id := metric.ID
	if id == "" {
		id = uuid.New().String()
	}
	fetchedAt := metric.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO metrics (id, client_id, agency_id, source, period, data, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (client_id, source, period) DO UPDATE SET
			data = EXCLUDED.data,
			fetched_at = EXCLUDED.fetched_at`,
		id, metric.ClientID, metric.AgencyID, string(metric.Source),
		model.MonthStart(metric.Period), []byte(metric.Data), fetchedAt)
	return eris.Wrap(err, "postgres: upsert metric")
}

// BulkUpsertMetrics loads many metric rows at once via COPY into a temp
// table and a single merge, used by the import command to backfill history.
func (s *PostgresStore) BulkUpsertMetrics(ctx context.Context, metrics []model.Metric) (int64, error) {
	rows := make([][]any, 0, len(metrics))
	now := time.Now().UTC()
	for _, m := range metrics {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		fetchedAt := m.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = now
		}
		rows = append(rows, []any{
			id, m.ClientID, m.AgencyID, string(m.Source),
			model.MonthStart(m.Period), []byte(m.Data), fetchedAt,
		})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "metrics",
		Columns:      []string{"id", "client_id", "agency_id", "source", "period", "data", "fetched_at"},
		ConflictKeys: []string{"client_id", "source", "period"},
		UpdateCols:   []string{"data", "fetched_at"},
	}, rows)
}

func (s *PostgresStore) ListMetrics(ctx context.Context, clientID string, period time.Time) ([]model.Metric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, client_id, agency_id, source, period, data, fetched_at
		 FROM metrics WHERE client_id = $1 AND period = $2 ORDER BY source`,
		clientID, model.MonthStart(period))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		var m model.Metric
		var data []byte
		if err := rows.Scan(&m.ID, &m.ClientID, &m.AgencyID, &m.Source, &m.Period, &data, &m.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		m.Period = m.Period.UTC()
		m.Data = json.RawMessage(data)
		metrics = append(metrics, m)
	}
	return metrics, eris.Wrap(rows.Err(), "postgres: iterate metrics")
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: %s %s not found", entity, id)
	}
	return nil
}
