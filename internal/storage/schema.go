package storage

const schema = `
-- One row per study session. Hash lists are JSON arrays.
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    book_id TEXT NOT NULL,
    scheduled TEXT NOT NULL,
    need_to_review TEXT NOT NULL,
    total_flashcards INTEGER NOT NULL,
    shown INTEGER NOT NULL DEFAULT 0,
    next_scheduled INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    started_at INTEGER NOT NULL, -- unix nanoseconds
    ended_at INTEGER
);

-- The SM-2 memory record of each studied flashcard.
CREATE TABLE IF NOT EXISTS sm2 (
    book_id TEXT NOT NULL,
    hash TEXT NOT NULL,
    easiness_factor REAL NOT NULL,
    repetition_number INTEGER NOT NULL,
    interval_days INTEGER NOT NULL,
    last_review INTEGER, -- unix nanoseconds, NULL before the first review
    last_grade INTEGER NOT NULL,

    PRIMARY KEY (book_id, hash)
);
`
