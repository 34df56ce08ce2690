package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	dedupe_key     TEXT NOT NULL UNIQUE,
	clean          TEXT NOT NULL,
	score          TEXT NOT NULL,
	route          TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'new',
	pipeline_stage TEXT NOT NULL DEFAULT 'new',
	routing_status TEXT NOT NULL DEFAULT 'ENRICH',
	meta           TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_routing_status ON leads(routing_status);
CREATE INDEX IF NOT EXISTS idx_leads_pipeline_stage ON leads(pipeline_stage);

CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	is_primary INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'active',
	meta       TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (lead_id, type, value)
);

CREATE INDEX IF NOT EXISTS idx_channels_lead_id ON channels(lead_id);

CREATE TABLE IF NOT EXISTS contacts (
	id       TEXT PRIMARY KEY,
	lead_id  TEXT NOT NULL REFERENCES leads(id),
	name     TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL,
	verified INTEGER NOT NULL DEFAULT 0,
	status   TEXT NOT NULL DEFAULT 'active',
	UNIQUE (lead_id, email)
);

CREATE INDEX IF NOT EXISTS idx_contacts_lead_id ON contacts(lead_id);

CREATE TABLE IF NOT EXISTS email_verifications (
	email       TEXT PRIMARY KEY,
	result      TEXT NOT NULL,
	provider    TEXT NOT NULL DEFAULT '',
	raw         TEXT,
	verified_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	geo        TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'SCRAPING',
	config     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	meta        TEXT,
	occurred_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_outreach_events_lead_id ON outreach_events(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead.DedupeKey == "" {
		return nil, eris.New("sqlite: lead has no dedupe key")
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dedupe_key) DO UPDATE SET
		   clean = excluded.clean,
		   score = excluded.score,
		   route = excluded.route,
		   status = CASE WHEN leads.status = 'closed' THEN leads.status ELSE excluded.status END,
		   pipeline_stage = excluded.pipeline_stage,
		   routing_status = CASE WHEN leads.routing_status LIKE 'CLOSED_%' THEN leads.routing_status ELSE excluded.routing_status END,
		   meta = excluded.meta,
		   updated_at = excluded.updated_at`,
		lead.ID, lead.DedupeKey, string(cleanJSON), string(scoreJSON), string(routeJSON),
		string(lead.Status), string(lead.PipelineStage), string(lead.RoutingStatus),
		nullableJSON(metaJSON), lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert lead %s", lead.DedupeKey)
	}
	// Re-read to pick up the persisted identity and any guarded fields.
	return s.GetLeadByDedupeKey(ctx, lead.DedupeKey)
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()

	cleanJSON, scoreJSON, routeJSON, metaJSON, err := marshalLead(lead)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET clean = ?, score = ?, route = ?, status = ?, pipeline_stage = ?, routing_status = ?, meta = ?, updated_at = ? WHERE id = ?`,
		string(cleanJSON), string(scoreJSON), string(routeJSON),
		string(lead.Status), string(lead.PipelineStage), string(lead.RoutingStatus),
		nullableJSON(metaJSON), lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

const sqliteLeadColumns = `id, dedupe_key, clean, score, route, status, pipeline_stage, routing_status, meta, created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id,
	)
	lead, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) GetLeadByDedupeKey(ctx context.Context, key string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE dedupe_key = ?`, key,
	)
	lead, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead by dedupe key %s", key)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		query += ` AND json_extract(score, '$.tier') = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.City != "" {
		query += ` AND lower(json_extract(clean, '$.city')) = lower(?)`
		args = append(args, filter.City)
	}
	if filter.Stage != "" {
		query += ` AND pipeline_stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.RoutingStatus != "" {
		query += ` AND routing_status = ?`
		args = append(args, string(filter.RoutingStatus))
	}
	if filter.RunID != "" {
		query += ` AND id IN (SELECT lead_id FROM scrape_run_leads WHERE run_id = ?)`
		args = append(args, filter.RunID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpsertChannel(ctx context.Context, ch model.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := marshalMeta(ch.Meta)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal channel meta")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO channels (id, lead_id, type, value, is_primary, status, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id, type, value) DO UPDATE SET
		   is_primary = excluded.is_primary, status = excluded.status, meta = excluded.meta`,
		ch.ID, ch.LeadID, string(ch.Type), ch.Value, ch.IsPrimary, ch.Status, nullableJSON(metaJSON), ch.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert channel %s/%s", ch.LeadID, ch.Value)
}

func (s *SQLiteStore) ListChannels(ctx context.Context, leadID string) ([]model.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, type, value, is_primary, status, meta, created_at FROM channels WHERE lead_id = ? ORDER BY created_at`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list channels %s", leadID)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		var ch model.Channel
		var metaJSON sql.NullString
		if err := rows.Scan(&ch.ID, &ch.LeadID, &ch.Type, &ch.Value, &ch.IsPrimary, &ch.Status, &metaJSON, &ch.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan channel")
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &ch.Meta); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal channel meta")
			}
		}
		channels = append(channels, ch)
	}
	return channels, eris.Wrap(rows.Err(), "sqlite: list channels iterate")
}

func (s *SQLiteStore) UpsertContact(ctx context.Context, c model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, lead_id, name, role, email, verified, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id, email) DO UPDATE SET
		   name = excluded.name, role = excluded.role, verified = excluded.verified, status = excluded.status`,
		c.ID, c.LeadID, c.Name, c.Role, c.Email, c.Verified, c.Status,
	)
	return eris.Wrapf(err, "sqlite: upsert contact %s/%s", c.LeadID, c.Email)
}

func (s *SQLiteStore) ListContacts(ctx context.Context, leadID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, name, role, email, verified, status FROM contacts WHERE lead_id = ? ORDER BY email`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list contacts %s", leadID)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Name, &c.Role, &c.Email, &c.Verified, &c.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

func (s *SQLiteStore) GetEmailVerification(ctx context.Context, email string) (*model.EmailVerification, error) {
	var v model.EmailVerification
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT email, result, provider, raw, verified_at FROM email_verifications WHERE email = ?`,
		email,
	).Scan(&v.Email, &v.Result, &v.Provider, &raw, &v.VerifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get verification %s", email)
	}
	if raw.Valid {
		v.Raw = []byte(raw.String)
	}
	return &v, nil
}

// SetEmailVerification is write-once: a cached verdict is never overwritten.
func (s *SQLiteStore) SetEmailVerification(ctx context.Context, v model.EmailVerification) error {
	if v.VerifiedAt.IsZero() {
		v.VerifiedAt = time.Now().UTC()
	}
	var raw any
	if len(v.Raw) > 0 {
		raw = string(v.Raw)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO email_verifications (email, result, provider, raw, verified_at) VALUES (?, ?, ?, ?, ?)`,
		v.Email, string(v.Result), v.Provider, raw, v.VerifiedAt,
	)
	return eris.Wrapf(err, "sqlite: set verification %s", v.Email)
}

func (s *SQLiteStore) CreateScrapeRun(ctx context.Context, query, geo string, config map[string]any) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	configJSON, err := marshalMeta(config)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, query, geo, status, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, query, geo, string(model.RunStatusScraping), nullableJSON(configJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert scrape run")
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

func (s *SQLiteStore) UpdateScrapeRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update scrape run status %s", runID)
	}
	return checkRowsAffected(res, "scrape run", runID)
}

func (s *SQLiteStore) GetScrapeRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	var configJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, geo, status, config, created_at, updated_at FROM scrape_runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.Query, &r.Geo, &r.Status, &configJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scrape run %s", runID)
	}
	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &r.Config); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run config")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListScrapeRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, query, geo, status, config, created_at, updated_at FROM scrape_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scrape runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		var configJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Query, &r.Geo, &r.Status, &configJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scrape run")
		}
		if configJSON.Valid && configJSON.String != "" {
			if err := json.Unmarshal([]byte(configJSON.String), &r.Config); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run config")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list scrape runs iterate")
}

func (s *SQLiteStore) LinkLeadsToRun(ctx context.Context, runID string, leadIDs []string) error {
	for _, leadID := range leadIDs {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO scrape_run_leads (run_id, lead_id) VALUES (?, ?)`,
			runID, leadID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: link lead %s to run %s", leadID, runID)
		}
	}
	return nil
}

func (s *SQLiteStore) InsertOutreachEvent(ctx context.Context, ev model.OutreachEvent) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	metaJSON, err := marshalMeta(ev.Meta)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal event meta")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO outreach_events (id, lead_id, type, provider, external_id, meta, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.LeadID, string(ev.Type), ev.Provider, ev.ExternalID, nullableJSON(metaJSON), ev.OccurredAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert outreach event %s", ev.ExternalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// nullableJSON maps an empty marshaled payload to NULL instead of "".
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var lead model.Lead
	var cleanJSON, scoreJSON, routeJSON string
	var metaJSON sql.NullString

	err := row.Scan(&lead.ID, &lead.DedupeKey, &cleanJSON, &scoreJSON, &routeJSON,
		&lead.Status, &lead.PipelineStage, &lead.RoutingStatus, &metaJSON,
		&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(cleanJSON), &lead.Clean); err != nil {
		return nil, eris.Wrap(err, "unmarshal clean")
	}
	if err := json.Unmarshal([]byte(scoreJSON), &lead.Score); err != nil {
		return nil, eris.Wrap(err, "unmarshal score")
	}
	if err := json.Unmarshal([]byte(routeJSON), &lead.Route); err != nil {
		return nil, eris.Wrap(err, "unmarshal route")
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &lead.Meta); err != nil {
			return nil, eris.Wrap(err, "unmarshal meta")
		}
	}
	return &lead, nil
}
