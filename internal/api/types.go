package api

// SingleScanRequest asks for a scan of one domain or email query.
type SingleScanRequest struct {
	Name       string `json:"name"`
	Query      string `json:"query"       binding:"required"`
	TimeFilter string `json:"time_filter"`
}

// MultiScanRequest asks for a fan-out scan over several domains.
type MultiScanRequest struct {
	Name       string   `json:"name"`
	Domains    []string `json:"domains"     binding:"required,min=1"`
	TimeFilter string   `json:"time_filter"`
}

// JobCreateResponse acknowledges a queued scan job.
type JobCreateResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
