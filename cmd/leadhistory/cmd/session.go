package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wesm/leadhistory/internal/config"
	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/remote"
	"github.com/wesm/leadhistory/internal/scrollstore"
)

// session bundles what a command needs to work with one lead.
type session struct {
	client *remote.Client
	ctrl   *history.Controller
	store  *scrollstore.SQLite // nil with the memory store
}

// openClient returns a CRM client for the configured server.
func openClient(log *slog.Logger) (*remote.Client, error) {
	if err := cfg.RequireRemote(); err != nil {
		return nil, err
	}
	return remote.New(remote.Config{
		URL:           cfg.Remote.URL,
		APIKey:        cfg.Remote.APIKey,
		AllowInsecure: cfg.Remote.AllowInsecure,
		Timeout:       cfg.Remote.Timeout,
		RateLimitQPS:  cfg.Remote.RateLimitQPS,
		Logger:        log,
	})
}

// openScrollStore returns the configured scroll store. The SQLite store is
// pruned of entries older than scroll.max_age on open.
func openScrollStore(ctx context.Context, log *slog.Logger) (history.ScrollStore, *scrollstore.SQLite, error) {
	if cfg.Scroll.Store != config.ScrollStoreSQLite {
		return history.NewMemoryScrollStore(), nil, nil
	}
	s, err := scrollstore.Open(cfg.ScrollDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open scroll store: %w", err)
	}
	if cfg.Scroll.MaxAge > 0 {
		n, err := s.Prune(ctx, cfg.Scroll.MaxAge)
		if err != nil {
			log.Warn("prune scroll positions", "error", err)
		} else if n > 0 {
			log.Debug("pruned scroll positions", "count", n)
		}
	}
	return s, s, nil
}

// openSession wires a controller for leadID to the remote client and the
// scroll store.
func openSession(ctx context.Context, leadID string, log *slog.Logger) (*session, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, history.ErrInvalidLeadID
	}
	client, err := openClient(log)
	if err != nil {
		return nil, err
	}
	scroll, db, err := openScrollStore(ctx, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	ctrl, err := history.New(client, leadID, history.Options{
		ScrollStore:       scroll,
		ScrollDebounce:    cfg.UI.ScrollDebounce,
		KeepScrollOnClose: cfg.Scroll.KeepOnExit,
		Logger:            log,
	})
	if err != nil {
		if db != nil {
			db.Close()
		}
		client.Close()
		return nil, err
	}
	return &session{client: client, ctrl: ctrl, store: db}, nil
}

// Close releases the controller, the scroll store and the client.
func (s *session) Close() error {
	err := s.ctrl.Close()
	if s.store != nil {
		if cerr := s.store.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}
