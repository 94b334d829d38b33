package subscription

// Evaluate maps a subscription and the user's current note count to a
// note-creation decision. It performs no I/O.
//
// A missing subscription, or one whose plan did not resolve, is blocked:
// a user with no entitlement on record cannot create notes. An unlimited
// plan always allows creation. A capped plan allows creation only while
// at least one slot remains; NotesRemaining may go negative when the user
// is already over the cap.
func Evaluate(sub *Subscription, noteCount int64) Limits {
	plan, ok := sub.ResolvedPlan()
	if !ok {
		return Limits{CanCreateNote: false, IsProMember: false}
	}

	if plan.Unlimited() {
		return Limits{CanCreateNote: true, IsProMember: true}
	}

	remaining := *plan.MaxNotes - noteCount
	return Limits{
		CanCreateNote:  remaining > 0,
		NotesRemaining: &remaining,
		IsProMember:    false,
	}
}
