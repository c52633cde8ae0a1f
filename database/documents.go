package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrNoDocument is returned when a document path does not exist.
var ErrNoDocument = errors.New("document not found")

// Document is one stored JSON value and its id within a collection.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Snapshot is the full content of a collection at one point in time.
type Snapshot struct {
	Documents []Document
	Err       error
}

type watcher struct {
	signal chan struct{}
}

// DocumentStore keeps JSON documents in collections and pushes full
// snapshots to subscribers after every committed write.
type DocumentStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

func NewDocumentStore(db *sql.DB, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{
		db:       db,
		logger:   logger,
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Documents lists a collection in insertion order.
func (s *DocumentStore) Documents(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, Document{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// Document reads a single document.
func (s *DocumentStore) Document(ctx context.Context, collection, id string) (Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNoDocument)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to query document: %w", err)
	}
	return Document{ID: id, Data: json.RawMessage(data)}, nil
}

// AddDocument stores value under a fresh id and returns the id.
func (s *DocumentStore) AddDocument(ctx context.Context, collection string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)", collection, id, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	s.changed(collection)
	return id, nil
}

// UpdateDocument overwrites the given top-level fields of a JSON object
// document and leaves the rest alone.
func (s *DocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.MutateDocument(ctx, collection, id, func(data json.RawMessage) (json.RawMessage, error) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("document is not an object: %w", err)
		}
		if obj == nil {
			obj = make(map[string]json.RawMessage)
		}
		for k, v := range fields {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal field %s: %w", k, err)
			}
			obj[k] = raw
		}
		return json.Marshal(obj)
	})
}

// MutateDocument replaces a document with fn's result inside one transaction.
func (s *DocumentStore) MutateDocument(ctx context.Context, collection, id string, fn func(json.RawMessage) (json.RawMessage, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNoDocument)
	}
	if err != nil {
		return fmt.Errorf("failed to query document: %w", err)
	}

	next, err := fn(json.RawMessage(data))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP
		WHERE collection = ? AND id = ?`, string(next), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.changed(collection)
	return nil
}

// Subscribe streams snapshots of collection, starting with its current
// content. Snapshots arrive in commit order; a slow reader skips straight to
// the newest one. The channel closes once ctx is done.
func (s *DocumentStore) Subscribe(ctx context.Context, collection string) <-chan Snapshot {
	out := make(chan Snapshot)
	w := &watcher{signal: make(chan struct{}, 1)}
	w.signal <- struct{}{}

	s.mu.Lock()
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[*watcher]struct{})
	}
	s.watchers[collection][w] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer s.unwatch(collection, w)

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.signal:
			}

			docs, err := s.Documents(ctx, collection)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.logger.Error("snapshot read failed", slog.String("collection", collection), slog.String("error", err.Error()))
			}

			select {
			case out <- Snapshot{Documents: docs, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *DocumentStore) unwatch(collection string, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[collection], w)
	if len(s.watchers[collection]) == 0 {
		delete(s.watchers, collection)
	}
}

// Subscribers reports the live subscription count for collection.
func (s *DocumentStore) Subscribers(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[collection])
}

func (s *DocumentStore) changed(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers[collection] {
		select {
		case w.signal <- struct{}{}:
		default:
			// already pending
		}
	}
}
