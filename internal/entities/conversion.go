package entities

import "time"

// ConversionRecord is the gateway-side bookkeeping entry for one accepted
// item. Records live in process memory only; a restart loses them all.
type ConversionRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	ReceivedAt   time.Time `json:"received_at"`
}

// ConversionOutcome is the settled result of one external conversion call.
// Outcomes are never stored, only aggregated into the response.
type ConversionOutcome struct {
	FileID       string `json:"fileId"`
	Success      bool   `json:"success"`
	OriginalURL  string `json:"originalUrl,omitempty"`
	ConvertedURL string `json:"convertedUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

// FileUpload carries one binary item of a conversion batch.
type FileUpload struct {
	Name string
	Data []byte
}

// ConvertResult is what the gateway hands back when a whole batch succeeds.
type ConvertResult struct {
	DownloadURL string
	Converted   int
}
