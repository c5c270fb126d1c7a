package repository

import (
	"context"
	"errors"

	"github.com/user/lead-scraper/internal/entity"
)

var (
	// ErrDuplicateLead is returned when the lead's permalink is already known.
	ErrDuplicateLead = errors.New("lead already exists")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ConnectionRepository reads and writes platform connection records.
type ConnectionRepository interface {
	ListConnections(ctx context.Context, creds entity.Credentials) ([]entity.Connection, error)
	UpsertConnection(ctx context.Context, creds entity.Credentials, conn entity.Connection) error
}

// ScrapeLogRepository manages the run-log lifecycle.
type ScrapeLogRepository interface {
	// CreateScrapeLog stores a new run-log entry and returns its ID.
	CreateScrapeLog(ctx context.Context, creds entity.Credentials, log entity.ScrapeLog) (string, error)
	UpdateScrapeLog(ctx context.Context, creds entity.Credentials, id string, log entity.ScrapeLog) error
}

// LeadRepository submits lead candidates.
type LeadRepository interface {
	CreateLead(ctx context.Context, creds entity.Credentials, lead entity.Lead) error
}

// HealthReporter reports connection health after a scrape.
type HealthReporter interface {
	ReportSuccess(ctx context.Context, creds entity.Credentials, report entity.HealthReport) error
	ReportError(ctx context.Context, creds entity.Credentials, report entity.HealthReport) error
}

// KeywordRepository lists configured search keywords.
type KeywordRepository interface {
	ListKeywords(ctx context.Context, creds entity.Credentials) ([]entity.Keyword, error)
}

// CollaboratorAPI is the full persistence contract consumed by the engine.
type CollaboratorAPI interface {
	ConnectionRepository
	ScrapeLogRepository
	LeadRepository
	HealthReporter
	KeywordRepository
}
