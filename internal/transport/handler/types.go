package handler

type ConvertResponse struct {
	Success        bool   `json:"success"`
	DownloadURL    string `json:"downloadUrl"`
	ConvertedFiles int    `json:"convertedFiles"`
	Format         string `json:"format"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
