package api

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
)

// exportBatchLimit caps how many rows a CSV export reads at once.
const exportBatchLimit = 100000

var credentialCSVHeader = []string{
	"URL", "Username", "Password", "Domain", "Is_Admin", "First_Seen", "Last_Seen", "Seen_Count",
}

// CredentialStore is the slice of the credential repository the handlers use.
type CredentialStore interface {
	List(ctx context.Context, filter database.CredentialFilter) ([]*domain.Credential, error)
	Count(ctx context.Context, filter database.CredentialFilter) (int, error)
	GetByID(ctx context.Context, id int64) (*domain.Credential, error)
	Delete(ctx context.Context, id int64) error
	ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*domain.Credential, error)
}

// CredentialsHandler handles credential listing, export, and deletion.
type CredentialsHandler struct {
	creds  CredentialStore
	logger logger.Interface
}

// NewCredentialsHandler creates a new credentials handler.
func NewCredentialsHandler(creds CredentialStore, log logger.Interface) *CredentialsHandler {
	return &CredentialsHandler{
		creds:  creds,
		logger: log.WithComponent("api"),
	}
}

// ListCredentials handles GET /api/v1/credentials
func (h *CredentialsHandler) ListCredentials(c *gin.Context) {
	filter := credentialFilter(c)
	filter.Limit, filter.Offset = paging(c)

	creds, err := h.creds.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve credentials"})
		return
	}

	total, err := h.creds.Count(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get total count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credentials": creds,
		"total":       total,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// GetCredential handles GET /api/v1/credentials/:id
func (h *CredentialsHandler) GetCredential(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credential ID"})
		return
	}

	cred, err := h.creds.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrCredentialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve credential"})
		return
	}

	c.JSON(http.StatusOK, cred)
}

// DeleteCredential handles DELETE /api/v1/credentials/:id
func (h *CredentialsHandler) DeleteCredential(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credential ID"})
		return
	}

	if err := h.creds.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrCredentialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Credential deleted successfully",
		"credential_id": id,
	})
}

// ExportCredentials handles GET /api/v1/credentials/export
func (h *CredentialsHandler) ExportCredentials(c *gin.Context) {
	filter := credentialFilter(c)
	filter.Limit = exportBatchLimit

	creds, err := h.creds.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve credentials"})
		return
	}

	writeCredentialsCSV(c, "credentials.csv", creds)
}

// credentialFilter reads the listing filter from query parameters.
func credentialFilter(c *gin.Context) database.CredentialFilter {
	return database.CredentialFilter{
		Domain:    c.Query("domain"),
		Query:     c.Query("search"),
		AdminOnly: c.Query("is_admin") == "true",
	}
}

// writeCredentialsCSV streams stored credentials as semicolon-delimited CSV,
// matching the parser export convention.
func writeCredentialsCSV(c *gin.Context, filename string, creds []*domain.Credential) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(c.Writer)
	cw.Comma = ';'

	if err := cw.Write(credentialCSVHeader); err != nil {
		return
	}
	for _, cred := range creds {
		record := []string{
			cred.URL,
			cred.Username,
			cred.Password,
			cred.Domain,
			strconv.FormatBool(cred.IsAdmin),
			cred.FirstSeen.Format("2006-01-02 15:04:05"),
			cred.LastSeen.Format("2006-01-02 15:04:05"),
			strconv.Itoa(cred.SeenCount),
		}
		if err := cw.Write(record); err != nil {
			return
		}
	}
	cw.Flush()
}
