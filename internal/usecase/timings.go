package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/user/lead-scraper/pkg/config"
	"github.com/user/lead-scraper/pkg/retry"
)

var (
	// ErrNavigation is returned when a page cannot be loaded at all.
	ErrNavigation = errors.New("navigation failed")
	// ErrInterfaceNotReady is returned when the web client never shows its
	// search affordance.
	ErrInterfaceNotReady = errors.New("client interface not ready")
	// ErrLoginTimeout is returned when nobody finishes signing in.
	ErrLoginTimeout = errors.New("timed out waiting for sign-in")
	// ErrClientNotReached is returned when a workspace tab never lands on the
	// web client URL.
	ErrClientNotReached = errors.New("web client url not reached")
	// ErrNoWorkspaces is returned when no workspace has been captured yet.
	ErrNoWorkspaces = errors.New("no workspaces captured")
	// ErrNoKeywords is returned when no active keyword is configured.
	ErrNoKeywords = errors.New("no active keywords")
)

// Timings holds every wait used by the browser flows. Tests zero them.
type Timings struct {
	Navigation     time.Duration
	Login          time.Duration
	NewPage        time.Duration
	ClientURL      time.Duration
	PollInterval   time.Duration
	Element        time.Duration
	Short          time.Duration
	PostClick      time.Duration
	WorkspacePause time.Duration
}

// DefaultTimings mirrors the configuration defaults.
func DefaultTimings() Timings {
	return Timings{
		Navigation:     60 * time.Second,
		Login:          time.Hour,
		NewPage:        10 * time.Second,
		ClientURL:      30 * time.Second,
		PollInterval:   500 * time.Millisecond,
		Element:        15 * time.Second,
		Short:          3 * time.Second,
		PostClick:      time.Second,
		WorkspacePause: 2 * time.Second,
	}
}

// TimingsFromConfig overrides the defaults with configured values.
func TimingsFromConfig(cfg *config.Config) Timings {
	t := DefaultTimings()
	t.Navigation = cfg.NavigationTimeout()
	t.Login = cfg.LoginTimeout()
	t.NewPage = cfg.NewPageTimeout()
	t.ClientURL = cfg.ClientURLTimeout()
	t.PostClick = cfg.PostClickSettle()
	t.WorkspacePause = cfg.WorkspacePause()
	return t
}

func pause(ctx context.Context, d time.Duration) error {
	return retry.Sleep(ctx, d)
}
