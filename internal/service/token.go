package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"arkstore/internal/ledger"
	"arkstore/internal/model"
)

// TokenParams describes one token-asset creation job.
type TokenParams struct {
	Name        string
	Symbol      string
	Description string
	// LogoPath is the primary asset on local disk.
	LogoPath string
	// RemoveLogo marks LogoPath as a per-request temporary artifact.
	RemoveLogo bool
}

// TokenAssetResult reports both artifacts of a completed pipeline run.
type TokenAssetResult struct {
	LogoTxID     string `json:"logo_tx_id"`
	LogoURL      string `json:"logo_url"`
	MetadataTxID string `json:"metadata_tx_id"`
	MetadataURL  string `json:"metadata_url"`
}

// TokenService is the use-case interface the HTTP layer depends on.
type TokenService interface {
	CreateTokenAssets(ctx context.Context, params TokenParams, identity, sourceAddr string) (*TokenAssetResult, error)
}

// tokenMetadata is the rendered metadata document uploaded alongside the
// logo. ImageType carries the logo's detected content type; a fixed default
// here would corrupt downstream consumers of the document.
type tokenMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image"`
	ImageType   string `json:"image_type"`
	CreatedAt   string `json:"created_at"`
}

// TokenPipeline sequences two orchestrated uploads (logo, then the metadata
// document referencing it) and commits a linking token-asset record.
type TokenPipeline struct {
	uploads UploadService
	ledger  ledger.Ledger
	tempDir string
}

// NewTokenPipeline constructs a TokenPipeline writing its intermediate
// metadata documents under tempDir.
func NewTokenPipeline(uploads UploadService, led ledger.Ledger, tempDir string) *TokenPipeline {
	return &TokenPipeline{uploads: uploads, ledger: led, tempDir: tempDir}
}

var _ TokenService = (*TokenPipeline)(nil)

// CreateTokenAssets uploads the logo, renders and uploads the metadata
// document, and records the pair. If the metadata upload fails after the
// logo succeeded, the logo's upload record stays valid and orphaned and the
// caller observes a PartialUploadError; retrying the pipeline uploads a
// fresh logo rather than reusing the orphan.
func (p *TokenPipeline) CreateTokenAssets(ctx context.Context, params TokenParams, identity, sourceAddr string) (*TokenAssetResult, error) {
	logo, err := p.uploads.Upload(ctx, Request{
		Path:       params.LogoPath,
		Identity:   identity,
		SourceAddr: sourceAddr,
		CustomTags: []model.Tag{{Name: "Asset-Role", Value: "token-logo"}},
		RemoveFile: params.RemoveLogo,
	})
	if err != nil {
		return nil, fmt.Errorf("logo upload: %w", err)
	}

	doc := tokenMetadata{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Description: params.Description,
		Image:       logo.URL,
		ImageType:   logo.ContentType,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	rendered, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render metadata: %w", err)
	}

	// Unique name per request; the orchestrator owns deletion from here.
	tmpPath := filepath.Join(p.tempDir, "token-metadata-"+uuid.NewString()+".json")
	if err := os.WriteFile(tmpPath, rendered, 0o644); err != nil {
		return nil, fmt.Errorf("write metadata document: %w", err)
	}

	meta, err := p.uploads.Upload(ctx, Request{
		Path:       tmpPath,
		FileName:   params.Symbol + "-metadata.json",
		Identity:   identity,
		SourceAddr: sourceAddr,
		CustomTags: []model.Tag{{Name: "Asset-Role", Value: "token-metadata"}},
		RemoveFile: true,
	})
	if err != nil {
		return nil, &PartialUploadError{LogoTxID: logo.TxID, Err: err}
	}

	asset := &model.TokenAsset{
		ID:           uuid.NewString(),
		Identity:     identity,
		Name:         params.Name,
		Symbol:       params.Symbol,
		LogoTxID:     logo.TxID,
		MetadataTxID: meta.TxID,
		MetadataDoc:  string(rendered),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.ledger.RecordTokenAsset(ctx, asset); err != nil {
		return nil, &LedgerError{TxID: meta.TxID, Err: err}
	}

	return &TokenAssetResult{
		LogoTxID:     logo.TxID,
		LogoURL:      logo.URL,
		MetadataTxID: meta.TxID,
		MetadataURL:  meta.URL,
	}, nil
}
