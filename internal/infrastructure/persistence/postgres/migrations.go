package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CORE SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Courses and their daily lessons
CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    duration_days INTEGER NOT NULL,
    price_cents INTEGER NOT NULL DEFAULT 0,
    is_trial BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_duration CHECK (duration_days > 0),
    CONSTRAINT valid_price CHECK (price_cents >= 0)
);

-- Only one trial course may exist
CREATE UNIQUE INDEX IF NOT EXISTS idx_courses_single_trial ON courses(is_trial) WHERE is_trial;

CREATE TABLE IF NOT EXISTS lessons (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    day_number INTEGER NOT NULL,
    title VARCHAR(200) NOT NULL,
    video_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_day_number CHECK (day_number BETWEEN 1 AND 90),
    CONSTRAINT unique_course_day UNIQUE (course_id, day_number)
);

CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    position INTEGER NOT NULL DEFAULT 0,
    question_text TEXT NOT NULL,
    options TEXT[] NOT NULL,
    correct_answer INTEGER NOT NULL,

    CONSTRAINT valid_correct_answer CHECK (correct_answer >= 0 AND correct_answer < cardinality(options))
);

CREATE INDEX IF NOT EXISTS idx_questions_lesson ON questions(lesson_id, position);

-- Learner profiles. id is the auth provider's user id.
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(320) NOT NULL,
    full_name VARCHAR(200) NOT NULL,
    age INTEGER NOT NULL,
    location VARCHAR(200) NOT NULL,
    chosen_hobby VARCHAR(30) NOT NULL,
    motivation TEXT NOT NULL,
    trial_start_date DATE NOT NULL,
    trial_completed BOOLEAN NOT NULL DEFAULT FALSE,
    certificate_earned BOOLEAN NOT NULL DEFAULT FALSE,
    current_course_id UUID REFERENCES courses(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_age CHECK (age BETWEEN 13 AND 100),
    CONSTRAINT valid_hobby CHECK (chosen_hobby IN (
        'Photography', 'Cooking', 'Gardening', 'Writing', 'Painting', 'Music',
        'Fitness', 'Technology', 'Crafts', 'Travel', 'Other'
    )),
    CONSTRAINT certificate_after_trial CHECK (NOT certificate_earned OR trial_completed),
    CONSTRAINT course_after_certificate CHECK (current_course_id IS NULL OR certificate_earned)
);

CREATE INDEX IF NOT EXISTS idx_users_in_trial ON users(trial_start_date) WHERE NOT trial_completed;

-- Quiz results (append-only)
CREATE TABLE IF NOT EXISTS user_progress (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id),
    lesson_id UUID NOT NULL REFERENCES lessons(id),
    quiz_score INTEGER NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_quiz_score CHECK (quiz_score BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress(user_id, completed_at);

-- Daily attendance, one row per learner per calendar day
CREATE TABLE IF NOT EXISTS user_attendance (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    logged_in BOOLEAN NOT NULL DEFAULT TRUE,
    lesson_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, date)
);

CREATE INDEX IF NOT EXISTS idx_user_attendance_completed ON user_attendance(user_id, date DESC) WHERE lesson_completed;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: TRIAL COURSE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
INSERT INTO courses (id, title, description, duration_days, price_cents, is_trial)
VALUES (
    '00000000-0000-4000-8000-000000000090',
    '90-Day Trial Course',
    'One short lesson and quiz every day for 90 days.',
    90, 0, TRUE
)
ON CONFLICT DO NOTHING;
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{Version: 1, Name: "create_core_schema", SQL: migration001Up},
	{Version: 2, Name: "seed_trial_course", SQL: migration002Up},
}

// migrationLockID serializes migrators of the API and the worker.
const migrationLockID = 727_090

// Migrator applies the embedded migrations that are not recorded in
// schema_migrations yet.
type Migrator struct {
	conn *Connection
}

// NewMigrator creates a migrator on conn.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn}
}

// Migrate applies pending migrations in version order and reports how many ran.
// Each migration commits on its own, so a failure leaves earlier ones applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	const ensure = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := m.conn.Exec(ctx, ensure); err != nil {
		return 0, fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	applied := 0
	for _, mig := range migrations {
		ran := false
		err := m.conn.InTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return err
			}

			var done bool
			err := tx.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", mig.Version,
			).Scan(&done)
			if err != nil || done {
				return err
			}

			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			_, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			ran = err == nil
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("postgres: migration %03d_%s: %w", mig.Version, mig.Name, err)
		}
		if ran {
			applied++
		}
	}

	return applied, nil
}
