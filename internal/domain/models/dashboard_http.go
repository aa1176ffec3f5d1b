package models

// DashboardRequest is the query of GET /api/dashboard.
type DashboardRequest struct {
	Refresh bool `query:"refresh" default:"false"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Busy        bool   `json:"busy"`
	Subscribers int    `json:"subscribers"`
}
