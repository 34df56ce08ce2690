package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/coeus-crm/leadgen-cli/internal/db"
	"github.com/coeus-crm/leadgen-cli/internal/model"
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
	"get_lead":               `SELECT id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at FROM leads WHERE id = $1`,
	"get_lead_by_dedupe_key": `SELECT id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at FROM leads WHERE dedupe_key = $1`,
	"list_channels":          `SELECT id, lead_id, type, value, is_primary, status, meta, created_at FROM channels WHERE lead_id = $1 ORDER BY created_at`,
	"list_contacts":          `SELECT id, lead_id, name, role, email, verified, status FROM contacts WHERE lead_id = $1 ORDER BY email`,
	"get_verification":       `SELECT email, result, provider, raw, verified_at FROM email_verifications WHERE email = $1`,
	"update_run_status":      `UPDATE scrape_runs SET status = $1, updated_at = $2 WHERE id = $3`,
}

// upsertLeadSQL keys on the dedupe key. A lead already closed, or parked on a
// CLOSED_* routing status, keeps those fields across re-ingestion; everything
// else takes the incoming values.
const upsertLeadSQL = `INSERT INTO leads (id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
 ON CONFLICT (dedupe_key) DO UPDATE SET
   clean = EXCLUDED.clean,
   score = EXCLUDED.score,
   route = EXCLUDED.route,
   status = CASE WHEN leads.status = 'closed' THEN leads.status ELSE EXCLUDED.status END,
   pipeline_stage = EXCLUDED.pipeline_stage,
   routing_status = CASE WHEN leads.routing_status LIKE 'CLOSED_%' THEN leads.routing_status ELSE EXCLUDED.routing_status END,
   meta = EXCLUDED.meta,
   updated_at = EXCLUDED.updated_at
 RETURNING id, status, routing_status, created_at`

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
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	dedupe_key     TEXT NOT NULL UNIQUE,
	clean          JSONB NOT NULL,
	score          JSONB NOT NULL,
	route          JSONB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'new',
	pipeline_stage TEXT NOT NULL DEFAULT 'new',
	routing_status TEXT NOT NULL DEFAULT 'ENRICH',
	meta           JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_routing_status ON leads(routing_status);
CREATE INDEX IF NOT EXISTS idx_leads_pipeline_stage ON leads(pipeline_stage);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads((score->>'tier'));
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads((clean->>'city'));

CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	is_primary BOOLEAN NOT NULL DEFAULT false,
	status     TEXT NOT NULL DEFAULT 'active',
	meta       JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (lead_id, type, value)
);

CREATE INDEX IF NOT EXISTS idx_channels_lead_id ON channels(lead_id);

CREATE TABLE IF NOT EXISTS contacts (
	id       TEXT PRIMARY KEY,
	lead_id  TEXT NOT NULL REFERENCES leads(id),
	name     TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL,
	verified BOOLEAN NOT NULL DEFAULT false,
	status   TEXT NOT NULL DEFAULT 'active',
	UNIQUE (lead_id, email)
);

CREATE INDEX IF NOT EXISTS idx_contacts_lead_id ON contacts(lead_id);

CREATE TABLE IF NOT EXISTS email_verifications (
	email       TEXT PRIMARY KEY,
	result      TEXT NOT NULL,
	provider    TEXT NOT NULL DEFAULT '',
	raw         JSONB,
	verified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	geo        TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'SCRAPING',
	config     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_status ON scrape_runs(status);

CREATE TABLE IF NOT EXISTS scrape_run_leads (
	run_id  TEXT NOT NULL REFERENCES scrape_runs(id),
	lead_id TEXT NOT NULL REFERENCES leads(id),
	PRIMARY KEY (run_id, lead_id)
);

CREATE TABLE IF NOT EXISTS outreach_events (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL,
	type        TEXT NOT NULL,
	provider    TEXT NOT NULL DEFAULT '',
	external_id TEXT NOT NULL UNIQUE,
	meta        JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_outreach_events_lead_id ON outreach_events(lead_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead.DedupeKey == "" {
		return nil, eris.New("postgres: lead has no dedupe key")
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	cleanJSON, scoreJSON, routeJSON, metaJSON, err := marshalLead(lead)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, upsertLeadSQL,
		lead.ID, lead.DedupeKey, cleanJSON, scoreJSON, routeJSON,
		string(lead.Status), string(lead.PipelineStage), string(lead.RoutingStatus),
		metaJSON, lead.CreatedAt, lead.UpdatedAt,
	).Scan(&lead.ID, &lead.Status, &lead.RoutingStatus, &lead.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert lead %s", lead.DedupeKey)
	}
	return lead, nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()

	cleanJSON, scoreJSON, routeJSON, metaJSON, err := marshalLead(lead)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET clean = $1, score = $2, route = $3, status = $4, pipeline_stage = $5, routing_status = $6, meta = $7, updated_at = $8 WHERE id = $9`,
		cleanJSON, scoreJSON, routeJSON,
		string(lead.Status), string(lead.PipelineStage), string(lead.RoutingStatus),
		metaJSON, lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", lead.ID)
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at FROM leads WHERE id = $1`,
		id,
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) GetLeadByDedupeKey(ctx context.Context, key string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at FROM leads WHERE dedupe_key = $1`,
		key,
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead by dedupe key %s", key)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Tier != "" {
		query += fmt.Sprintf(` AND score->>'tier' = $%d`, argIdx)
		args = append(args, string(filter.Tier))
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND lower(clean->>'city') = lower($%d)`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if filter.Stage != "" {
		query += fmt.Sprintf(` AND pipeline_stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	if filter.RoutingStatus != "" {
		query += fmt.Sprintf(` AND routing_status = $%d`, argIdx)
		args = append(args, string(filter.RoutingStatus))
		argIdx++
	}
	if filter.RunID != "" {
		query += fmt.Sprintf(` AND id IN (SELECT lead_id FROM scrape_run_leads WHERE run_id = $%d)`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpsertChannel(ctx context.Context, ch model.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := marshalMeta(ch.Meta)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal channel meta")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO channels (id, lead_id, type, value, is_primary, status, meta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (lead_id, type, value) DO UPDATE SET
		   is_primary = EXCLUDED.is_primary, status = EXCLUDED.status, meta = EXCLUDED.meta`,
		ch.ID, ch.LeadID, string(ch.Type), ch.Value, ch.IsPrimary, ch.Status, metaJSON, ch.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert channel %s/%s", ch.LeadID, ch.Value)
}

func (s *PostgresStore) ListChannels(ctx context.Context, leadID string) ([]model.Channel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, type, value, is_primary, status, meta, created_at FROM channels WHERE lead_id = $1 ORDER BY created_at`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list channels %s", leadID)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		var ch model.Channel
		var metaJSON []byte
		if err := rows.Scan(&ch.ID, &ch.LeadID, &ch.Type, &ch.Value, &ch.IsPrimary, &ch.Status, &metaJSON, &ch.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan channel")
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ch.Meta); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal channel meta")
			}
		}
		channels = append(channels, ch)
	}
	return channels, eris.Wrap(rows.Err(), "postgres: list channels iterate")
}

func (s *PostgresStore) UpsertContact(ctx context.Context, c model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, lead_id, name, role, email, verified, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (lead_id, email) DO UPDATE SET
		   name = EXCLUDED.name, role = EXCLUDED.role, verified = EXCLUDED.verified, status = EXCLUDED.status`,
		c.ID, c.LeadID, c.Name, c.Role, c.Email, c.Verified, c.Status,
	)
	return eris.Wrapf(err, "postgres: upsert contact %s/%s", c.LeadID, c.Email)
}

func (s *PostgresStore) ListContacts(ctx context.Context, leadID string) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, name, role, email, verified, status FROM contacts WHERE lead_id = $1 ORDER BY email`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list contacts %s", leadID)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Name, &c.Role, &c.Email, &c.Verified, &c.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

func (s *PostgresStore) GetEmailVerification(ctx context.Context, email string) (*model.EmailVerification, error) {
	var v model.EmailVerification
	err := s.pool.QueryRow(ctx,
		`SELECT email, result, provider, raw, verified_at FROM email_verifications WHERE email = $1`,
		email,
	).Scan(&v.Email, &v.Result, &v.Provider, &v.Raw, &v.VerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get verification %s", email)
	}
	return &v, nil
}

// SetEmailVerification is write-once: a cached verdict is never overwritten.
func (s *PostgresStore) SetEmailVerification(ctx context.Context, v model.EmailVerification) error {
	if v.VerifiedAt.IsZero() {
		v.VerifiedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_verifications (email, result, provider, raw, verified_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING`,
		v.Email, string(v.Result), v.Provider, v.Raw, v.VerifiedAt,
	)
	return eris.Wrapf(err, "postgres: set verification %s", v.Email)
}

func (s *PostgresStore) CreateScrapeRun(ctx context.Context, query, geo string, config map[string]any) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	configJSON, err := marshalMeta(config)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run config")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, query, geo, status, config, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, query, geo, string(model.RunStatusScraping), configJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scrape run")
	}

	return &model.ScrapeRun{
		ID:        id,
		Query:     query,
		Geo:       geo,
		Status:    model.RunStatusScraping,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateScrapeRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update scrape run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scrape run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetScrapeRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	var configJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, query, geo, status, config, created_at, updated_at FROM scrape_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Query, &r.Geo, &r.Status, &configJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get scrape run %s", runID)
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &r.Config); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run config")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListScrapeRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, query, geo, status, config, created_at, updated_at FROM scrape_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scrape runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		var configJSON []byte
		if err := rows.Scan(&r.ID, &r.Query, &r.Geo, &r.Status, &configJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scrape run")
		}
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &r.Config); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run config")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list scrape runs iterate")
}

// LinkLeadsToRun bulk-attaches leads to a run; repeated links are no-ops.
func (s *PostgresStore) LinkLeadsToRun(ctx context.Context, runID string, leadIDs []string) error {
	if len(leadIDs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(leadIDs))
	for _, leadID := range leadIDs {
		rows = append(rows, []any{runID, leadID})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "scrape_run_leads",
		Columns:      []string{"run_id", "lead_id"},
		ConflictKeys: []string{"run_id", "lead_id"},
	}, rows)
	return eris.Wrapf(err, "postgres: link leads to run %s", runID)
}

func (s *PostgresStore) InsertOutreachEvent(ctx context.Context, ev model.OutreachEvent) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	metaJSON, err := marshalMeta(ev.Meta)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal event meta")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO outreach_events (id, lead_id, type, provider, external_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (external_id) DO NOTHING`,
		ev.ID, ev.LeadID, string(ev.Type), ev.Provider, ev.ExternalID, metaJSON, ev.OccurredAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert outreach event %s", ev.ExternalID)
	}
	return tag.RowsAffected() > 0, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var lead model.Lead
	var cleanJSON, scoreJSON, routeJSON, metaJSON []byte

	err := row.Scan(&lead.ID, &lead.DedupeKey, &cleanJSON, &scoreJSON, &routeJSON,
		&lead.Status, &lead.PipelineStage, &lead.RoutingStatus, &metaJSON,
		&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cleanJSON, &lead.Clean); err != nil {
		return nil, eris.Wrap(err, "unmarshal clean")
	}
	if err := json.Unmarshal(scoreJSON, &lead.Score); err != nil {
		return nil, eris.Wrap(err, "unmarshal score")
	}
	if err := json.Unmarshal(routeJSON, &lead.Route); err != nil {
		return nil, eris.Wrap(err, "unmarshal route")
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &lead.Meta); err != nil {
			return nil, eris.Wrap(err, "unmarshal meta")
		}
	}
	return &lead, nil
}

func marshalLead(lead *model.Lead) (clean, score, route, meta []byte, err error) {
	if clean, err = json.Marshal(lead.Clean); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal clean")
	}
	if score, err = json.Marshal(lead.Score); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal score")
	}
	if route, err = json.Marshal(lead.Route); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal route")
	}
	if meta, err = marshalMeta(lead.Meta); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal meta")
	}
	return clean, score, route, meta, nil
}

func marshalMeta(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
