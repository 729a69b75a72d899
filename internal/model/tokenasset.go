package model

import "time"

// TokenAsset links a primary asset upload (the logo) with the metadata
// document upload derived from it. Both referenced transaction ids must
// exist in the ledger before the pair is committed.
type TokenAsset struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	LogoTxID     string    `json:"logo_tx_id"`
	MetadataTxID string    `json:"metadata_tx_id"`
	MetadataDoc  string    `json:"metadata_doc"`
	CreatedAt    time.Time `json:"created_at"`
}
