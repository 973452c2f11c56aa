package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Migration 1 creates the roster read model the engine aggregates from
// (subjects, classrooms, students, enrollments, evaluations, scores).
// Migration 2 creates the bulletin write model with generation-versioned
// breakdown lines. Migration 3 creates the audit trail.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE subjects (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE classrooms (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	school_year TEXT NOT NULL,
	homeroom_teacher_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (name, school_year)
);

CREATE TABLE classroom_subjects (
	classroom_id UUID NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	coefficient NUMERIC(5,2) NOT NULL DEFAULT 1 CHECK (coefficient >= 0),
	PRIMARY KEY (classroom_id, subject_id)
);

CREATE TABLE students (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	display_name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE enrollments (
	student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	classroom_id UUID NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	school_year TEXT NOT NULL,
	PRIMARY KEY (student_id, school_year)
);

CREATE INDEX idx_enrollments_classroom ON enrollments (classroom_id, school_year);

CREATE TABLE evaluations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	classroom_id UUID NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	school_year TEXT NOT NULL,
	term SMALLINT NOT NULL CHECK (term BETWEEN 1 AND 3),
	title TEXT NOT NULL DEFAULT '',
	scale NUMERIC(6,2) NOT NULL CHECK (scale > 0),
	weight NUMERIC(5,2) NOT NULL DEFAULT 1 CHECK (weight >= 0),
	held_on DATE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_evaluations_classroom_term ON evaluations (classroom_id, school_year, term);

CREATE TABLE scores (
	evaluation_id UUID NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
	student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	raw_score NUMERIC(6,2) CHECK (raw_score IS NULL OR raw_score >= 0),
	absent BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (evaluation_id, student_id),
	CHECK (NOT (absent AND raw_score IS NOT NULL))
);

CREATE INDEX idx_scores_student ON scores (student_id);
`

const migration001Down = `
DROP TABLE IF EXISTS scores;
DROP TABLE IF EXISTS evaluations;
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS classroom_subjects;
DROP TABLE IF EXISTS classrooms;
DROP TABLE IF EXISTS subjects;
`

const migration002Up = `
CREATE TABLE bulletins (
	id UUID PRIMARY KEY,
	student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	classroom_id UUID NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	school_year TEXT NOT NULL,
	term SMALLINT NOT NULL CHECK (term BETWEEN 1 AND 3),
	status TEXT NOT NULL DEFAULT 'DRAFT',
	generation BIGINT NOT NULL DEFAULT 0,
	overall_average NUMERIC(5,2),
	rank INTEGER CHECK (rank IS NULL OR rank >= 1),
	classroom_size INTEGER,
	classroom_average NUMERIC(5,2),
	mention TEXT NOT NULL DEFAULT 'UNDETERMINED',
	decision TEXT NOT NULL DEFAULT 'UNDETERMINED',
	general_comment TEXT NOT NULL DEFAULT '',
	homeroom_comment TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL,
	validated_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	validated_at TIMESTAMPTZ,
	published_at TIMESTAMPTZ,
	UNIQUE (student_id, school_year, term)
);

CREATE INDEX idx_bulletins_classroom_term ON bulletins (classroom_id, school_year, term);

CREATE TABLE bulletin_subject_lines (
	bulletin_id UUID NOT NULL REFERENCES bulletins(id) ON DELETE CASCADE,
	generation BIGINT NOT NULL,
	subject_id UUID NOT NULL REFERENCES subjects(id),
	average NUMERIC(5,2),
	coefficient NUMERIC(5,2) NOT NULL,
	appreciation TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (bulletin_id, generation, subject_id)
);
`

const migration002Down = `
DROP TABLE IF EXISTS bulletin_subject_lines;
DROP TABLE IF EXISTS bulletins;
`

const migration003Up = `
CREATE TABLE audit_events (
	id BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	actor_user_id TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL DEFAULT '{}',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX idx_audit_events_aggregate ON audit_events (aggregate_id, occurred_at);
CREATE INDEX idx_audit_events_type ON audit_events (event_type, occurred_at);
`

const migration003Down = `
DROP TABLE IF EXISTS audit_events;
`
