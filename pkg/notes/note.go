package notes

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultTitle is used for notes saved without a title.
	DefaultTitle = "Untitled"
	// MaxTitleLength is the longest title accepted, in runes.
	MaxTitleLength = 200
	// DefaultTagColor is assigned to tags created without a color.
	DefaultTagColor = "#6b7280"
)

// Note is a user-owned markdown document.
type Note struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag labels notes. Tags are shared by all users.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft is the editable part of a note.
type Draft struct {
	Title   string      `json:"title"`
	Content string      `json:"content"`
	TagIDs  []uuid.UUID `json:"tag_ids"`
}

// Normalize trims the title, applies DefaultTitle and checks its length.
func (d Draft) Normalize() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return Draft{}, ErrTitleTooLong
	}
	return d, nil
}

// Store persists notes and tags. Implementations scope every note
// operation to userID and return ErrNoteNotFound for notes the user
// does not own.
type Store interface {
	CreateNote(ctx context.Context, userID uuid.UUID, draft Draft) (*Note, error)
	UpdateNote(ctx context.Context, userID, noteID uuid.UUID, draft Draft) (*Note, error)
	DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error
	GetNote(ctx context.Context, userID, noteID uuid.UUID) (*Note, error)
	ListNotes(ctx context.Context, userID uuid.UUID) ([]Note, error)
	CountNotes(ctx context.Context, userID uuid.UUID) (int64, error)

	ListTags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, name, color string) (*Tag, error)
}

// NormalizeTag validates a tag name and fills in the default color.
func NormalizeTag(name, color string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 50 {
		return "", "", ErrInvalidTag
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultTagColor
	}
	return name, color, nil
}
