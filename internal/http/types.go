package http

// SubmitRequest is the payload for POST /download. The UI posts a
// form; API clients may send JSON.
type SubmitRequest struct {
	URL string `json:"url" form:"url"`
}

// SubmitResponse acknowledges a submission. On success DownloadID is
// the id to poll at /status/:id.
type SubmitResponse struct {
	Success    bool   `json:"success"`
	DownloadID string `json:"download_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is the envelope for non-submission errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ExpiredResponse is returned when a poll references an id the service
// does not know, typically after a restart.
type ExpiredResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}
