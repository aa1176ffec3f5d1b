package http

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error   string            `json:"error" example:"No prediction available"`
	Details []ValidationError `json:"details,omitempty"`
}

// MessageBody acknowledges a request that has no result yet.
type MessageBody struct {
	Message string `json:"message" example:"Prediction started"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"refresh"`
	Message string                 `json:"message,omitempty" example:"refresh is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
