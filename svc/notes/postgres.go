package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notekit/pkg/notes"
	"github.com/dmitrymomot/notekit/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements notes.Store on top of pgx.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store backed by db. Panics if db is nil.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("notes: DB is required")
	}
	return &PostgresStore{db: db}
}

func storeErr(op string, err error) error {
	return errors.Join(notes.ErrStoreFailure, fmt.Errorf("%s: %w", op, err))
}

func (s *PostgresStore) CreateNote(ctx context.Context, userID uuid.UUID, draft notes.Draft) (*notes.Note, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n notes.Note
	err = tx.QueryRow(ctx, `
		INSERT INTO notes (id, user_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, title, content, created_at, updated_at`,
		uuid.New(), userID, draft.Title, draft.Content,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, storeErr("insert note", err)
	}

	if err := linkTags(ctx, tx, n.ID, draft.TagIDs); err != nil {
		return nil, err
	}
	if n.Tags, err = noteTags(ctx, tx, n.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit note", err)
	}
	return &n, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, userID, noteID uuid.UUID, draft notes.Draft) (*notes.Note, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n notes.Note
	err = tx.QueryRow(ctx, `
		UPDATE notes SET title = $3, content = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, content, created_at, updated_at`,
		noteID, userID, draft.Title, draft.Content,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notes.ErrNoteNotFound
		}
		return nil, storeErr("update note", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM notes_tags WHERE note_id = $1`, noteID); err != nil {
		return nil, storeErr("unlink tags", err)
	}
	if err := linkTags(ctx, tx, noteID, draft.TagIDs); err != nil {
		return nil, err
	}
	if n.Tags, err = noteTags(ctx, tx, noteID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit note", err)
	}
	return &n, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		return storeErr("delete note", err)
	}
	if tag.RowsAffected() == 0 {
		return notes.ErrNoteNotFound
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, userID, noteID uuid.UUID) (*notes.Note, error) {
	var n notes.Note
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, content, created_at, updated_at
		FROM notes WHERE id = $1 AND user_id = $2`,
		noteID, userID,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notes.ErrNoteNotFound
		}
		return nil, storeErr("get note", err)
	}

	if n.Tags, err = noteTags(ctx, s.db, noteID); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotes returns the user's notes, most recently updated first.
func (s *PostgresStore) ListNotes(ctx context.Context, userID uuid.UUID) ([]notes.Note, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, title, content, created_at, updated_at
		FROM notes WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, storeErr("list notes", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notes.Note, error) {
		var n notes.Note
		err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
		n.Tags = []notes.Tag{}
		return n, err
	})
	if err != nil {
		return nil, storeErr("list notes", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, len(list))
	index := make(map[uuid.UUID]int, len(list))
	for i, n := range list {
		ids[i] = n.ID.String()
		index[n.ID] = i
	}

	rows, err = s.db.Query(ctx, `
		SELECT nt.note_id, t.id, t.name, t.color, t.created_at
		FROM notes_tags nt JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = ANY($1::uuid[])
		ORDER BY t.name`, ids)
	if err != nil {
		return nil, storeErr("list note tags", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			noteID uuid.UUID
			t      notes.Tag
		)
		if err := rows.Scan(&noteID, &t.ID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, storeErr("scan note tag", err)
		}
		if i, ok := index[noteID]; ok {
			list[i].Tags = append(list[i].Tags, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list note tags", err)
	}
	return list, nil
}

func (s *PostgresStore) CountNotes(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, storeErr("count notes", err)
	}
	return n, nil
}

func (s *PostgresStore) ListTags(ctx context.Context) ([]notes.Tag, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, color, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, storeErr("list tags", err)
	}
	tags, err := pgx.CollectRows(rows, scanTag)
	if err != nil {
		return nil, storeErr("list tags", err)
	}
	return tags, nil
}

func (s *PostgresStore) CreateTag(ctx context.Context, name, color string) (*notes.Tag, error) {
	name, color, err := notes.NormalizeTag(name, color)
	if err != nil {
		return nil, err
	}

	var t notes.Tag
	err = s.db.QueryRow(ctx, `
		INSERT INTO tags (id, name, color) VALUES ($1, $2, $3)
		RETURNING id, name, color, created_at`,
		uuid.New(), name, color,
	).Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, notes.ErrDuplicateTag
		}
		return nil, storeErr("create tag", err)
	}
	return &t, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func linkTags(ctx context.Context, tx pgx.Tx, noteID uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range tagIDs {
		batch.Queue(`INSERT INTO notes_tags (note_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, noteID, id)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return notes.ErrTagNotFound
		}
		return storeErr("link tags", err)
	}
	return nil
}

func noteTags(ctx context.Context, q querier, noteID uuid.UUID) ([]notes.Tag, error) {
	rows, err := q.Query(ctx, `
		SELECT t.id, t.name, t.color, t.created_at
		FROM notes_tags nt JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = $1
		ORDER BY t.name`, noteID)
	if err != nil {
		return nil, storeErr("list note tags", err)
	}
	tags, err := pgx.CollectRows(rows, scanTag)
	if err != nil {
		return nil, storeErr("list note tags", err)
	}
	return tags, nil
}

func scanTag(row pgx.CollectableRow) (notes.Tag, error) {
	var t notes.Tag
	err := row.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt)
	return t, err
}
