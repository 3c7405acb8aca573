package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:exam.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/exam?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_type TEXT NOT NULL,
  title TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reading_passages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listening_audios (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  audio_url TEXT NOT NULL,
  photo_url TEXT
);

CREATE TABLE IF NOT EXISTS speaking_tasks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  task_number INTEGER NOT NULL,
  passage TEXT,
  prompt TEXT NOT NULL,
  audio_url TEXT
);

CREATE TABLE IF NOT EXISTS writing_tasks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  task_number INTEGER NOT NULL,
  passage TEXT NOT NULL,
  prompt TEXT NOT NULL,
  audio_url TEXT
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_type TEXT NOT NULL,
  qtype TEXT NOT NULL,
  prompt TEXT NOT NULL,
  reading_passage_id INTEGER REFERENCES reading_passages(id) ON DELETE CASCADE,
  listening_audio_id INTEGER REFERENCES listening_audios(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS options (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_text TEXT NOT NULL,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS table_question_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  row_label TEXT NOT NULL,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS table_question_columns (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  column_label TEXT NOT NULL,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS correct_answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_id INTEGER REFERENCES options(id) ON DELETE CASCADE,
  table_row_id INTEGER REFERENCES table_question_rows(id) ON DELETE CASCADE,
  table_column_id INTEGER REFERENCES table_question_columns(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_id INTEGER REFERENCES options(id) ON DELETE CASCADE,
  table_row_id INTEGER REFERENCES table_question_rows(id) ON DELETE CASCADE,
  table_column_id INTEGER REFERENCES table_question_columns(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS speaking_responses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  task_id INTEGER NOT NULL REFERENCES speaking_tasks(id) ON DELETE CASCADE,
  audio_key TEXT NOT NULL,
  submitted_at INTEGER NOT NULL,
  UNIQUE(user_id, task_id)
);

CREATE TABLE IF NOT EXISTS writing_responses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  task_id INTEGER NOT NULL REFERENCES writing_tasks(id) ON DELETE CASCADE,
  essay_text TEXT NOT NULL,
  submitted_at INTEGER NOT NULL,
  UNIQUE(user_id, task_id)
);

CREATE TABLE IF NOT EXISTS scores (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  response_id INTEGER NOT NULL,
  response_type TEXT NOT NULL,
  score REAL NOT NULL,
  feedback TEXT NOT NULL,
  scored_by INTEGER NOT NULL REFERENCES users(id),
  scored_at INTEGER NOT NULL,
  UNIQUE(response_id, response_type)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
  id BIGSERIAL PRIMARY KEY,
  section_type TEXT NOT NULL,
  title TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS reading_passages (
  id BIGSERIAL PRIMARY KEY,
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listening_audios (
  id BIGSERIAL PRIMARY KEY,
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  audio_url TEXT NOT NULL,
  photo_url TEXT
);

CREATE TABLE IF NOT EXISTS speaking_tasks (
  id BIGSERIAL PRIMARY KEY,
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  task_number INTEGER NOT NULL,
  passage TEXT,
  prompt TEXT NOT NULL,
  audio_url TEXT
);

CREATE TABLE IF NOT EXISTS writing_tasks (
  id BIGSERIAL PRIMARY KEY,
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  task_number INTEGER NOT NULL,
  passage TEXT NOT NULL,
  prompt TEXT NOT NULL,
  audio_url TEXT
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  section_type TEXT NOT NULL,
  qtype TEXT NOT NULL,
  prompt TEXT NOT NULL,
  reading_passage_id BIGINT REFERENCES reading_passages(id) ON DELETE CASCADE,
  listening_audio_id BIGINT REFERENCES listening_audios(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS options (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_text TEXT NOT NULL,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS table_question_rows (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  row_label TEXT NOT NULL,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS table_question_columns (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  column_label TEXT NOT NULL,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS correct_answers (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_id BIGINT REFERENCES options(id) ON DELETE CASCADE,
  table_row_id BIGINT REFERENCES table_question_rows(id) ON DELETE CASCADE,
  table_column_id BIGINT REFERENCES table_question_columns(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_answers (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_id BIGINT REFERENCES options(id) ON DELETE CASCADE,
  table_row_id BIGINT REFERENCES table_question_rows(id) ON DELETE CASCADE,
  table_column_id BIGINT REFERENCES table_question_columns(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS speaking_responses (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  task_id BIGINT NOT NULL REFERENCES speaking_tasks(id) ON DELETE CASCADE,
  audio_key TEXT NOT NULL,
  submitted_at BIGINT NOT NULL,
  UNIQUE(user_id, task_id)
);

CREATE TABLE IF NOT EXISTS writing_responses (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  task_id BIGINT NOT NULL REFERENCES writing_tasks(id) ON DELETE CASCADE,
  essay_text TEXT NOT NULL,
  submitted_at BIGINT NOT NULL,
  UNIQUE(user_id, task_id)
);

CREATE TABLE IF NOT EXISTS scores (
  id BIGSERIAL PRIMARY KEY,
  response_id BIGINT NOT NULL,
  response_type TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  feedback TEXT NOT NULL,
  scored_by BIGINT NOT NULL REFERENCES users(id),
  scored_at BIGINT NOT NULL,
  UNIQUE(response_id, response_type)
);
`
