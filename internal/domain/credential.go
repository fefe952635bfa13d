// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// Credential is a deduplicated leaked credential. The (URL, Username,
// Password) triple is globally unique; repeated observations bump LastSeen
// and SeenCount instead of inserting a new row.
type Credential struct {
	ID        int64     `db:"id"         json:"id"`
	URL       string    `db:"url"        json:"url"`
	Username  string    `db:"username"   json:"username"`
	Password  string    `db:"password"   json:"password"`
	Domain    string    `db:"domain"     json:"domain"`
	IsAdmin   bool      `db:"is_admin"   json:"is_admin"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time `db:"last_seen"  json:"last_seen"`
	SeenCount int       `db:"seen_count" json:"seen_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// JobCredential associates a credential with the scan job that observed it.
// IsNew records whether the credential was first created by that job.
// Rows are written once per (job, credential) pair and never mutated.
type JobCredential struct {
	JobID        string `db:"job_id"        json:"job_id"`
	CredentialID int64  `db:"credential_id" json:"credential_id"`
	IsNew        bool   `db:"is_new"        json:"is_new"`
}

// ParsedCredential is the in-memory output of the line parser. Only the
// URL/Username/Password fields are persisted; the rest is telemetry.
type ParsedCredential struct {
	URL       string `json:"url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Original  string `json:"original"`
	PatternID int    `json:"pattern_id"`
	LineNum   int    `json:"line_num"`
}

// Complete reports whether all three persisted fields are non-empty.
func (p *ParsedCredential) Complete() bool {
	return p.URL != "" && p.Username != "" && p.Password != ""
}

// Key returns the batch-level dedup key for the parsed triple.
func (p *ParsedCredential) Key() string {
	return p.URL + ":" + p.Username + ":" + p.Password
}
