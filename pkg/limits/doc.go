// Package limits keeps the note-creation decision fresh for each session.
//
// A Provider caches the subscription.Limits for the user bound to one
// session. Binding a new identity drops the old decision and fetches a new
// one; Refetch recomputes it after the user creates or deletes notes or
// pays for an upgrade. Fetches are tagged with a generation number so a
// slow response for a previous identity, or one overtaken by a newer
// fetch, never overwrites fresher state.
//
// A Hub holds one Provider per session in a bounded LRU and refreshes all
// sessions of a user when told that user's limits changed. Invalidators
// carry those events: MemoryInvalidator within a process, RedisInvalidator
// across instances.
//
// Basic usage:
//
//	hub := limits.NewHub(subscriptionService,
//	    limits.WithHubLogger(log),
//	)
//	go hub.Listen(ctx, invalidator)
//
//	p, err := hub.Session(ctx, sessionID, userID)
//	if err != nil {
//	    // fetch failed; p.Current() is nil and creation stays blocked
//	}
//	if l := p.Current(); l != nil && l.CanCreateNote {
//	    // open the editor
//	}
package limits
