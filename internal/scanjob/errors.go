// Package scanjob runs scan jobs through their lifecycle:
// queued -> collecting -> parsing -> upserting -> completed|failed, with
// cooperative cancel and pause honored during collecting only.
package scanjob

import "errors"

// Cooperative stop sentinels. Collection-phase code propagates these
// unwrapped so the runner can tell a requested stop from a real failure.
var (
	// ErrCancelRequested aborts the job permanently.
	ErrCancelRequested = errors.New("cancel requested")
	// ErrPauseRequested suspends the job for a later resume.
	ErrPauseRequested = errors.New("pause requested")
)
