package notes

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notekit/pkg/notes"
)

// MemoryStore is an in-process notes.Store.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[uuid.UUID]memNote
	tags  map[uuid.UUID]notes.Tag
	now   func() time.Time
}

type memNote struct {
	note   notes.Note
	tagIDs []uuid.UUID
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes: make(map[uuid.UUID]memNote),
		tags:  make(map[uuid.UUID]notes.Tag),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateNote(ctx context.Context, userID uuid.UUID, draft notes.Draft) (*notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTags(draft.TagIDs); err != nil {
		return nil, err
	}

	now := s.now()
	n := memNote{
		note: notes.Note{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     draft.Title,
			Content:   draft.Content,
			CreatedAt: now,
			UpdatedAt: now,
		},
		tagIDs: slices.Clone(draft.TagIDs),
	}
	s.notes[n.note.ID] = n
	return s.render(n), nil
}

func (s *MemoryStore) UpdateNote(ctx context.Context, userID, noteID uuid.UUID, draft notes.Draft) (*notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok || n.note.UserID != userID {
		return nil, notes.ErrNoteNotFound
	}
	if err := s.checkTags(draft.TagIDs); err != nil {
		return nil, err
	}

	n.note.Title = draft.Title
	n.note.Content = draft.Content
	n.note.UpdatedAt = s.now()
	n.tagIDs = slices.Clone(draft.TagIDs)
	s.notes[noteID] = n
	return s.render(n), nil
}

func (s *MemoryStore) DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok || n.note.UserID != userID {
		return notes.ErrNoteNotFound
	}
	delete(s.notes, noteID)
	return nil
}

func (s *MemoryStore) GetNote(ctx context.Context, userID, noteID uuid.UUID) (*notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[noteID]
	if !ok || n.note.UserID != userID {
		return nil, notes.ErrNoteNotFound
	}
	return s.render(n), nil
}

// ListNotes returns the user's notes, most recently updated first.
func (s *MemoryStore) ListNotes(ctx context.Context, userID uuid.UUID) ([]notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]notes.Note, 0)
	for _, n := range s.notes {
		if n.note.UserID == userID {
			out = append(out, *s.render(n))
		}
	}
	slices.SortFunc(out, func(a, b notes.Note) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CountNotes(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, note := range s.notes {
		if note.note.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListTags(ctx context.Context) ([]notes.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]notes.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b notes.Tag) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *MemoryStore) CreateTag(ctx context.Context, name, color string) (*notes.Tag, error) {
	name, color, err := notes.NormalizeTag(name, color)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tags {
		if strings.EqualFold(t.Name, name) {
			return nil, notes.ErrDuplicateTag
		}
	}

	t := notes.Tag{ID: uuid.New(), Name: name, Color: color, CreatedAt: s.now()}
	s.tags[t.ID] = t
	return &t, nil
}

// Must be called with lock held.
func (s *MemoryStore) checkTags(ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := s.tags[id]; !ok {
			return notes.ErrTagNotFound
		}
	}
	return nil
}

// Must be called with lock held.
func (s *MemoryStore) render(n memNote) *notes.Note {
	note := n.note
	note.Tags = make([]notes.Tag, 0, len(n.tagIDs))
	for _, id := range n.tagIDs {
		if t, ok := s.tags[id]; ok {
			note.Tags = append(note.Tags, t)
		}
	}
	return &note
}
