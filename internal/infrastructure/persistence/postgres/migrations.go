package postgres

// Embedded schema migrations. Versions are append only: never edit an
// applied migration, add a new one.

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_incidents",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_incident_status_logs",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_escalation_rules",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_actors_and_guardians",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS incidents (
	id              UUID PRIMARY KEY,
	student_id      TEXT NOT NULL,
	reporter_id     TEXT NOT NULL,
	assigned_to     TEXT,
	severity        TEXT NOT NULL DEFAULT 'low',
	status          TEXT NOT NULL DEFAULT 'pending',
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	action_taken    TEXT NOT NULL DEFAULT '',
	occurred_at     TIMESTAMP WITH TIME ZONE NOT NULL,
	closed_by       TEXT,
	closed_at       TIMESTAMP WITH TIME ZONE,
	version         INTEGER NOT NULL DEFAULT 1,
	created_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

	CONSTRAINT chk_incidents_severity CHECK (severity IN ('low', 'medium', 'high', 'critical')),
	CONSTRAINT chk_incidents_status CHECK (status IN ('pending', 'under_review', 'escalated', 'resolved', 'dismissed'))
);

CREATE INDEX IF NOT EXISTS idx_incidents_student ON incidents(student_id);
CREATE INDEX IF NOT EXISTS idx_incidents_assignee ON incidents(assigned_to) WHERE assigned_to IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS incidents;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS incident_status_logs (
	id           UUID PRIMARY KEY,
	incident_id  UUID NOT NULL REFERENCES incidents(id),
	old_status   TEXT,
	new_status   TEXT NOT NULL,
	changed_by   TEXT NOT NULL,
	comment      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_status_logs_incident ON incident_status_logs(incident_id, created_at);

-- The trail is append only; no role gets UPDATE or DELETE here.
CREATE OR REPLACE FUNCTION reject_status_log_mutation() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'incident_status_logs is append only';
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER trg_status_logs_immutable
	BEFORE UPDATE OR DELETE ON incident_status_logs
	FOR EACH ROW EXECUTE FUNCTION reject_status_log_mutation();
`

const migration002Down = `
DROP TRIGGER IF EXISTS trg_status_logs_immutable ON incident_status_logs;
DROP FUNCTION IF EXISTS reject_status_log_mutation();
DROP TABLE IF EXISTS incident_status_logs;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS escalation_rules (
	id          UUID PRIMARY KEY,
	severity    TEXT NOT NULL,
	role        TEXT NOT NULL,
	is_custom   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

	CONSTRAINT chk_rules_severity CHECK (severity IN ('low', 'medium', 'high', 'critical')),
	CONSTRAINT uq_rules_severity_custom UNIQUE (severity, is_custom)
);
`

const migration003Down = `
DROP TABLE IF EXISTS escalation_rules;
`

const migration004Up = `
CREATE TABLE IF NOT EXISTS actors (
	id          TEXT PRIMARY KEY,
	school_id   TEXT NOT NULL DEFAULT '',
	full_name   TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	roles       TEXT[] NOT NULL DEFAULT '{}',
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_actors_roles ON actors USING GIN (roles);

CREATE TABLE IF NOT EXISTS guardians (
	id             TEXT PRIMARY KEY,
	student_id     TEXT NOT NULL,
	full_name      TEXT NOT NULL,
	email          TEXT NOT NULL DEFAULT '',
	portal_access  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_guardians_student ON guardians(student_id) WHERE portal_access;
`

const migration004Down = `
DROP TABLE IF EXISTS guardians;
DROP TABLE IF EXISTS actors;
`
