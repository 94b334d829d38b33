// Package notes defines user notes and tags and the creation gate that
// enforces the subscription note limit.
//
// The Gate reads the session's cached decision synchronously: when it
// allows creation the editor opens, otherwise the upgrade prompt is shown.
// Create re-checks the same decision before writing, so a client that
// skips the prompt still cannot exceed the cap, and refetches the limits
// afterwards instead of decrementing them locally.
package notes
