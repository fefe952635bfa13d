// Package dedup turns parsed credentials into deduplicated database rows.
package dedup

import (
	"context"
	"strings"

	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/domains"
	"github.com/north-cloud/leakscan/internal/logger"
)

// adminKeywords flag privileged accounts. Matching is substring over the
// lowercased "username password" pair.
var adminKeywords = []string{
	"admin",
	"administrator",
	"root",
	"superuser",
	"sysadmin",
	"webadmin",
	"dbadmin",
	"sudo",
}

// CredentialStore is the subset of the credential repository the service
// needs.
type CredentialStore interface {
	Upsert(ctx context.Context, cred *domain.Credential) (inserted bool, err error)
	LinkToJob(ctx context.Context, jobID string, credentialID int64, isNew bool) error
}

// Result summarizes one bulk upsert.
type Result struct {
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Service persists parsed credentials with dedup semantics.
type Service struct {
	store  CredentialStore
	logger logger.Interface
}

// NewService creates a new dedup service.
func NewService(store CredentialStore, log logger.Interface) *Service {
	return &Service{store: store, logger: log.WithComponent("dedup")}
}

// IsAdmin reports whether the username/password pair looks like a privileged
// account.
func IsAdmin(username, password string) bool {
	haystack := strings.ToLower(username + " " + password)
	for _, kw := range adminKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// Upsert stores one parsed credential. The domain is derived from the parsed
// fields and the admin flag from the credential pair. Returns whether a new
// row was created.
func (s *Service) Upsert(ctx context.Context, jobID string, parsed *domain.ParsedCredential) (bool, error) {
	cred := &domain.Credential{
		URL:      parsed.URL,
		Username: parsed.Username,
		Password: parsed.Password,
		Domain:   domains.BestFrom("", parsed.URL, parsed.Username),
		IsAdmin:  IsAdmin(parsed.Username, parsed.Password),
	}

	inserted, err := s.store.Upsert(ctx, cred)
	if err != nil {
		return false, err
	}

	if jobID != "" {
		if linkErr := s.store.LinkToJob(ctx, jobID, cred.ID, inserted); linkErr != nil {
			return inserted, linkErr
		}
	}

	return inserted, nil
}

// BulkUpsert stores a batch of parsed credentials. Incomplete triples are
// skipped and individual failures do not abort the batch, so one poisoned
// line cannot lose a whole scan.
func (s *Service) BulkUpsert(ctx context.Context, jobID string, parsed []domain.ParsedCredential) (Result, error) {
	var res Result

	for i := range parsed {
		p := &parsed[i]
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if !p.Complete() {
			res.Skipped++
			continue
		}

		inserted, err := s.Upsert(ctx, jobID, p)
		if err != nil {
			res.Failed++
			s.logger.Warn("failed to upsert credential",
				"url", p.URL,
				"pattern_id", p.PatternID,
				"error", err,
			)
			continue
		}

		if inserted {
			res.New++
		} else {
			res.Duplicates++
		}
	}

	return res, nil
}
