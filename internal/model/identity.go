package model

import "time"

// Identity is the stable key a caller is tracked under: a wallet
// address, a user id, or a generated session id. It is created on the
// first observed request and only removed by explicit retention cleanup.
type Identity struct {
	Address        string    `json:"address"`
	UploadCount    int64     `json:"upload_count"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Dashboard is a read-only aggregate over one identity's ledger state.
// It must reflect a consistent snapshot: an upload row is never visible
// without its corresponding counter increment.
type Dashboard struct {
	Identity       string   `json:"identity"`
	TotalUploads   int64    `json:"total_uploads"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	RecentUploads  []Upload `json:"recent_uploads"`
	TokenCount     int64    `json:"token_count"`
}
