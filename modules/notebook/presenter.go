package notebook

import (
	"context"

	"github.com/dmitrymomot/notekit/pkg/notes"
)

const (
	ActionEditor  = "editor"
	ActionUpgrade = "upgrade"
)

// Outcome tells the client what to show after a creation request.
type Outcome struct {
	Action         string       `json:"action"`
	NotesRemaining *int64       `json:"notes_remaining,omitempty"`
	Draft          *notes.Draft `json:"draft,omitempty"`
}

// outcomePresenter records the gate's decision for a single request.
type outcomePresenter struct {
	outcome *Outcome
}

func (p *outcomePresenter) OpenEditor(_ context.Context, draft notes.Draft) {
	p.outcome = &Outcome{Action: ActionEditor, Draft: &draft}
}

func (p *outcomePresenter) PromptUpgrade(_ context.Context, notesRemaining *int64) {
	p.outcome = &Outcome{Action: ActionUpgrade, NotesRemaining: notesRemaining}
}
