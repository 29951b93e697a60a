// Package storage persists the tracker's state as whole JSON documents
// under a single data directory. Every write replaces the target file
// atomically (write to a temp sibling, then rename); concurrent listing
// loops share the documents, so one store mutex serializes writers.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/auction"
	"github.com/SloeberX/auction-tracker/internal/logging"
)

const (
	listingsFile = "listings.json"
	historyFile  = "history.json"
	alertsFile   = "alerts.json"
	settingsFile = "settings.json"
	backupsDir   = "backups"
)

// NotifySettings is the runtime-reloadable notification configuration.
// It lives next to the tracked data so it survives restarts and can be
// edited over the API without touching the process config.
type NotifySettings struct {
	Enabled           bool   `json:"enabled"`
	WebhookURL        string `json:"webhookUrl"`
	PingOnNewBid      bool   `json:"pingOnNewBid"`
	PingAt30m         bool   `json:"pingAt30m"`
	UpdateIntervalSec int    `json:"updateIntervalSec"`
}

// Store is the file-backed document store.
type Store struct {
	dir    string
	logger zerolog.Logger
	mu     sync.Mutex
}

// Open prepares the data directory and seeds missing documents.
func Open(dataDir string, logger zerolog.Logger) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("storage: data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, backupsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	s := &Store{dir: dataDir, logger: logging.Component(logger, "storage")}

	seeds := []struct {
		name string
		v    any
	}{
		{listingsFile, []auction.Listing{}},
		{historyFile, map[string][]auction.Bid{}},
		{alertsFile, map[string]auction.AlertState{}},
		{settingsFile, NotifySettings{UpdateIntervalSec: 60}},
	}
	for _, seed := range seeds {
		path := filepath.Join(dataDir, seed.name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := s.writeDoc(seed.name, seed.v); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// LoadListings reads the listing metadata document. Bid histories live in
// their own document and are stitched back by the caller.
func (s *Store) LoadListings() ([]auction.Listing, error) {
	var listings []auction.Listing
	if err := s.readDoc(listingsFile, &listings); err != nil {
		s.logger.Warn().Err(err).Msg("listings document unreadable, starting empty")
		return []auction.Listing{}, nil
	}
	return listings, nil
}

// SaveListings replaces the listing metadata document.
func (s *Store) SaveListings(listings []auction.Listing) error {
	stripped := make([]auction.Listing, len(listings))
	copy(stripped, listings)
	for i := range stripped {
		stripped[i].Bids = nil
	}
	return s.writeDoc(listingsFile, stripped)
}

// LoadHistory reads the canonical bid histories keyed by listing id.
// Entries without a usable amount are dropped on the way in.
func (s *Store) LoadHistory() (map[string][]auction.Bid, error) {
	var hist map[string][]auction.Bid
	if err := s.readDoc(historyFile, &hist); err != nil {
		s.logger.Warn().Err(err).Msg("history document unreadable, starting empty")
		return map[string][]auction.Bid{}, nil
	}
	for id, bids := range hist {
		clean := bids[:0]
		for _, b := range bids {
			if auction.ValidAmount(b.Amount) {
				clean = append(clean, b)
			}
		}
		hist[id] = clean
	}
	return hist, nil
}

// SaveHistory replaces the bid history document.
func (s *Store) SaveHistory(hist map[string][]auction.Bid) error {
	return s.writeDoc(historyFile, hist)
}

// LoadAlertStates reads the notification machine's per-listing state.
func (s *Store) LoadAlertStates() (map[string]auction.AlertState, error) {
	var states map[string]auction.AlertState
	if err := s.readDoc(alertsFile, &states); err != nil {
		s.logger.Warn().Err(err).Msg("alert state document unreadable, starting empty")
		return map[string]auction.AlertState{}, nil
	}
	return states, nil
}

// SaveAlertStates replaces the alert state document.
func (s *Store) SaveAlertStates(states map[string]auction.AlertState) error {
	return s.writeDoc(alertsFile, states)
}

// LoadNotifySettings reads the notification settings document.
func (s *Store) LoadNotifySettings() (NotifySettings, error) {
	var ns NotifySettings
	if err := s.readDoc(settingsFile, &ns); err != nil {
		s.logger.Warn().Err(err).Msg("settings document unreadable, using defaults")
		return NotifySettings{UpdateIntervalSec: 60}, nil
	}
	if ns.UpdateIntervalSec <= 0 {
		ns.UpdateIntervalSec = 60
	}
	return ns, nil
}

// SaveNotifySettings replaces the notification settings document.
func (s *Store) SaveNotifySettings(ns NotifySettings) error {
	return s.writeDoc(settingsFile, ns)
}

func (s *Store) readDoc(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeDoc(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
