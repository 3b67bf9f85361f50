package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sibylchat/sibyl/internal/logging"
)

// Interaction is one stored query/response pair.
type Interaction struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Topics    string    `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistent long-term memory, backed by SQLite.
// Interactions survive reconnects and restarts; retrieval is keyword
// match ranked by recency.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     TEXT NOT NULL,
	query       TEXT NOT NULL,
	response    TEXT NOT NULL,
	topics      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id, created_at);
`

// OpenStore opens (creating if needed) the memory database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	// modernc.org/sqlite is not safe for concurrent writers on one
	// connection pool without serialization.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing memory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add persists a completed interaction.
func (s *Store) Add(ctx context.Context, userID, query, response string) error {
	topics := strings.Join(ExtractTopics(query), ",")
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, query, response, topics, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, query, response, topics, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("storing interaction: %w", err)
	}
	return nil
}

// Search returns up to limit past interactions for the user whose query
// or response mention words from the given query, newest first.
func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 3
	}

	words := significantWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	var clauses []string
	args := []any{userID}
	for _, w := range words {
		clauses = append(clauses, "(query LIKE ? OR response LIKE ?)")
		pattern := "%" + w + "%"
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	q := fmt.Sprintf(
		`SELECT id, user_id, query, response, topics, created_at
		 FROM interactions
		 WHERE user_id = ? AND (%s)
		 ORDER BY created_at DESC
		 LIMIT ?`,
		strings.Join(clauses, " OR "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching memory: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// RecentHistory returns the user's most recent interactions as
// chat turns, oldest first, suitable for model context.
func (s *Store) RecentHistory(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query, response, topics, created_at
		 FROM interactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	interactions, err := scanInteractions(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order and expand to turns.
	turns := make([]Turn, 0, len(interactions)*2)
	for i := len(interactions) - 1; i >= 0; i-- {
		turns = append(turns,
			Turn{Role: "user", Content: interactions[i].Query},
			Turn{Role: "assistant", Content: interactions[i].Response},
		)
	}
	return turns, nil
}

// Purge removes all stored interactions for a user.
func (s *Store) Purge(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("purging memory: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Memory().Debug("purged interactions", "user_id", userID, "count", n)
	}
	return nil
}

func scanInteractions(rows *sql.Rows) ([]Interaction, error) {
	var out []Interaction
	for rows.Next() {
		var it Interaction
		var createdAt int64
		if err := rows.Scan(&it.ID, &it.UserID, &it.Query, &it.Response, &it.Topics, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		it.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading interactions: %w", err)
	}
	return out, nil
}

// stopwords excluded from keyword search.
var searchStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"what": true, "how": true, "why": true, "of": true, "for": true, "to": true,
	"in": true, "on": true, "and": true, "or": true, "do": true, "does": true,
	"about": true, "tell": true, "me": true, "my": true, "you": true,
}

// significantWords returns the lowercase content words of a query.
func significantWords(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?\"'()[]{}:;")
		if len(w) < 3 || searchStopwords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == 5 {
			break
		}
	}
	return out
}
