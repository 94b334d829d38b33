// Package notebook exposes notes, tags, subscription limits and plan upgrades
// over HTTP.
//
// Every request inside the authenticated group is bound to the
// limits.Provider of its client session (X-Session-ID). Note creation goes
// through notes.Gate, so a blocked request answers 402 with the same upgrade
// payload POST /notes/new returns:
//
//	{"error":{"code":"payment_required","message":"...","data":{"action":"upgrade","notes_remaining":0}}}
//
// A successful POST /upgrade refetches the caller's session before
// responding; other sessions of the user are refreshed by the invalidator
// wired into subscription.Service.
package notebook
