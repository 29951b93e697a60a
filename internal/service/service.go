// Package service owns the tracker registry: one record per listing
// holding the listing, its alert state, and its poll loop. The loop is
// the only writer of its record; the registry mutex guards the map and
// the assembly of cross-listing persistence documents.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SloeberX/auction-tracker/internal/alerting"
	"github.com/SloeberX/auction-tracker/internal/auction"
	"github.com/SloeberX/auction-tracker/internal/config"
	"github.com/SloeberX/auction-tracker/internal/logging"
	"github.com/SloeberX/auction-tracker/internal/reconcile"
	"github.com/SloeberX/auction-tracker/internal/scheduler"
	"github.com/SloeberX/auction-tracker/internal/scrape"
	"github.com/SloeberX/auction-tracker/internal/storage"
)

// ErrNotFound indicates the listing id is not registered.
var ErrNotFound = errors.New("service: listing not found")

// Store is the slice of the document store the tracker needs.
type Store interface {
	LoadListings() ([]auction.Listing, error)
	SaveListings([]auction.Listing) error
	LoadHistory() (map[string][]auction.Bid, error)
	SaveHistory(map[string][]auction.Bid) error
	LoadAlertStates() (map[string]auction.AlertState, error)
	SaveAlertStates(map[string]auction.AlertState) error
	LoadNotifySettings() (storage.NotifySettings, error)
	SaveNotifySettings(storage.NotifySettings) error
}

// Publisher receives per-listing snapshots after every poll and removal
// events. Implementations must not block the poll loop for long.
type Publisher interface {
	PublishSnapshot(snap auction.Snapshot)
	PublishRemoval(id string)
}

type entry struct {
	listing *auction.Listing
	alert   *auction.AlertState
	loop    *scheduler.Loop
	dirty   bool // history write pending; stays set when a save fails
}

// Tracker orchestrates fetching, reconciliation, persistence, push, and
// alerting for every registered listing.
type Tracker struct {
	cfg       *config.Config
	engine    *reconcile.Engine
	fetcher   scrape.Fetcher
	store     Store
	machine   *alerting.Machine
	publisher Publisher
	pollOpts  scheduler.Options
	logger    zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	baseCtx context.Context

	notifyMu    sync.Mutex
	notifier    alerting.Notifier
	notifierURL string
}

// New constructs the tracker.
func New(cfg *config.Config, fetcher scrape.Fetcher, store Store, publisher Publisher, logger zerolog.Logger) *Tracker {
	engine := reconcile.New(reconcile.Options{
		PreciseWindow: cfg.Reconcile.MatchWindowPrecise,
		CoarseWindow:  cfg.Reconcile.MatchWindowCoarse,
	})

	pollOpts := scheduler.Options{
		DefaultInterval: cfg.Poll.DefaultInterval,
		FastInterval:    cfg.Poll.FastInterval,
		FastWindow:      cfg.Poll.FastWindow,
	}.WithDefaults()

	return &Tracker{
		cfg:       cfg,
		engine:    engine,
		fetcher:   fetcher,
		store:     store,
		machine:   alerting.NewMachine(logger),
		publisher: publisher,
		pollOpts:  pollOpts,
		logger:    logging.Component(logger, "tracker"),
		entries:   make(map[string]*entry),
	}
}

// Start restores persisted state and launches one poll loop per listing.
func (t *Tracker) Start(ctx context.Context) error {
	listings, err := t.store.LoadListings()
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	history, err := t.store.LoadHistory()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	alerts, err := t.store.LoadAlertStates()
	if err != nil {
		return fmt.Errorf("load alert states: %w", err)
	}

	t.mu.Lock()
	t.baseCtx = ctx
	for i := range listings {
		l := listings[i]
		// Collapse on load keeps the canonical invariant across restarts
		// and older on-disk revisions.
		l.Bids = t.engine.Collapse(history[l.ID])
		st := alerts[l.ID]
		t.startLocked(&l, &st)
	}
	t.mu.Unlock()

	t.logger.Info().Int("listings", len(listings)).Msg("tracker started")
	return nil
}

// startLocked registers the entry and spins up its loop. Caller holds mu.
func (t *Tracker) startLocked(l *auction.Listing, st *auction.AlertState) {
	e := &entry{listing: l, alert: st}
	t.entries[l.ID] = e
	e.loop = scheduler.Start(t.baseCtx, l.ID, t.logger, func(ctx context.Context) time.Duration {
		return t.poll(ctx, l.ID)
	})
}

// Add registers a new lot and begins polling it immediately.
func (t *Tracker) Add(url, displayName string) (auction.Snapshot, error) {
	if url == "" {
		return auction.Snapshot{}, errors.New("service: url is required")
	}

	l := &auction.Listing{
		ID:          newListingID(),
		URL:         url,
		DisplayName: displayName,
		Title:       url,
		Currency:    "EUR",
		LastUpdated: time.Now().UTC(),
		Bids:        []auction.Bid{},
	}
	if displayName != "" {
		l.Title = displayName
	}

	t.mu.Lock()
	if t.baseCtx == nil {
		t.mu.Unlock()
		return auction.Snapshot{}, errors.New("service: tracker not started")
	}
	t.startLocked(l, &auction.AlertState{})
	snap := l.Snapshot(0)
	err := t.persistListingsLocked()
	t.mu.Unlock()

	if err != nil {
		t.logger.Error().Err(err).Str("listing", l.ID).Msg("failed to persist new listing")
	}
	t.logger.Info().Str("listing", l.ID).Str("url", url).Msg("listing added")
	return snap, nil
}

// Remove cancels the listing's loop and drops all of its state. An
// in-flight poll finishes but its publish is discarded.
func (t *Tracker) Remove(id string) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	delete(t.entries, id)
	err := t.persistAllLocked()
	t.mu.Unlock()

	e.loop.Stop()
	if err != nil {
		t.logger.Error().Err(err).Str("listing", id).Msg("failed to persist removal")
	}
	if t.publisher != nil {
		t.publisher.PublishRemoval(id)
	}
	t.logger.Info().Str("listing", id).Msg("listing removed")
	return nil
}

// Rename updates the listing's display name.
func (t *Tracker) Rename(id, displayName string) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	e.listing.DisplayName = displayName
	snap := e.listing.Snapshot(0)
	err := t.persistListingsLocked()
	t.mu.Unlock()

	if err != nil {
		t.logger.Error().Err(err).Str("listing", id).Msg("failed to persist rename")
	}
	if t.publisher != nil {
		t.publisher.PublishSnapshot(snap)
	}
	return nil
}

// Snapshots returns the consumer view of every tracked listing.
func (t *Tracker) Snapshots() []auction.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]auction.Snapshot, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.listing.Snapshot(0))
	}
	return out
}

// NotifySettings reads the runtime notification settings.
func (t *Tracker) NotifySettings() (storage.NotifySettings, error) {
	return t.store.LoadNotifySettings()
}

// UpdateNotifySettings persists new notification settings; they take
// effect on the next poll of every listing.
func (t *Tracker) UpdateNotifySettings(ns storage.NotifySettings) error {
	if ns.UpdateIntervalSec < 15 {
		ns.UpdateIntervalSec = 15
	}
	return t.store.SaveNotifySettings(ns)
}

// SendTestAlert pushes a fabricated pinging message through the current
// webhook so operators can verify the sink.
func (t *Tracker) SendTestAlert(ctx context.Context) error {
	ns, err := t.store.LoadNotifySettings()
	if err != nil {
		return err
	}
	if ns.WebhookURL == "" {
		return errors.New("service: no webhook configured")
	}

	price := decimal.NewFromFloat(12.34)
	ends := time.Now().Add(time.Hour).UTC()
	alert := alerting.Alert{
		Title:       "Test embed",
		DisplayName: "Auction Tracker",
		URL:         "https://example.com/",
		Currency:    "EUR",
		Price:       &price,
		EndsAt:      &ends,
		Now:         time.Now().UTC(),
	}
	_, err = t.notifierFor(ns.WebhookURL).Send(ctx, alert, true)
	return err
}

// Stop cancels every loop and waits for the goroutines to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	loops := make([]*scheduler.Loop, 0, len(t.entries))
	for _, e := range t.entries {
		loops = append(loops, e.loop)
	}
	t.mu.Unlock()

	for _, l := range loops {
		l.Stop()
	}
	for _, l := range loops {
		<-l.Done()
	}
}

// poll runs one full pipeline for id and returns the next delay.
func (t *Tracker) poll(ctx context.Context, id string) time.Duration {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return t.pollOpts.DefaultInterval
	}
	url := e.listing.URL
	t.mu.Unlock()

	result, fetchErr := t.fetch(ctx, url)
	now := time.Now().UTC()

	t.mu.Lock()
	if _, ok := t.entries[id]; !ok {
		// Removed while the fetch was in flight; discard the result.
		t.mu.Unlock()
		return t.pollOpts.DefaultInterval
	}

	l := e.listing
	if fetchErr != nil {
		l.Error = fetchErr.Error()
		l.LastUpdated = now
	} else {
		t.applyResult(e, result, now)
	}

	delay := t.pollOpts.NextDelay(l.EndsAt, now)
	l.CurrentInterval = delay

	dirty := e.dirty
	var histories map[string][]auction.Bid
	var listings []auction.Listing
	if dirty {
		histories = t.historyDocLocked()
		listings = t.listingsDocLocked()
	}
	snap := l.Snapshot(0)
	t.mu.Unlock()

	if fetchErr != nil {
		t.logger.Warn().Err(fetchErr).Str("listing", id).Msg("scrape failed, keeping stale data")
	}

	if dirty {
		if err := t.persistHistory(histories, listings); err != nil {
			t.logger.Error().Err(err).Str("listing", id).Msg("failed to persist history, will retry")
		} else {
			t.mu.Lock()
			if cur, ok := t.entries[id]; ok {
				cur.dirty = false
			}
			t.mu.Unlock()
		}
	}

	t.publish(id, snap)

	if fetchErr == nil {
		t.notify(ctx, id, now)
	}

	return delay
}

// fetch shields the loop from a panicking collaborator; a panic counts
// as "no data this cycle".
func (t *Tracker) fetch(ctx context.Context, url string) (result *scrape.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("scrape panic: %v", r)
		}
	}()
	return t.fetcher.Fetch(ctx, url)
}

// applyResult folds a successful scrape into the listing. Caller holds mu.
func (t *Tracker) applyResult(e *entry, res *scrape.Result, now time.Time) {
	l := e.listing
	l.Error = ""

	prev := l.CurrentPrice
	bids, dirty := t.engine.Reconcile(l.Bids, res.Bids)
	bids, synthesized := reconcile.SynthesizeObserved(bids, prev, res.CurrentPrice, now)
	l.Bids = bids
	if dirty || synthesized {
		e.dirty = true
	}

	if res.Title != "" {
		l.Title = res.Title
	}
	if res.Image != "" {
		l.Image = res.Image
	}
	if res.Currency != "" {
		l.Currency = res.Currency
	}
	if res.CurrentPrice != nil {
		price := *res.CurrentPrice
		l.CurrentPrice = &price
	}
	if res.EndsAt != nil {
		ends := *res.EndsAt
		l.EndsAt = &ends
	}
	if reconcile.PriceChanged(prev, res.CurrentPrice) {
		ts := now
		l.LastChangeAt = &ts
	}
	l.LastUpdated = now
}

// publish pushes the snapshot unless the listing was removed meanwhile.
func (t *Tracker) publish(id string, snap auction.Snapshot) {
	if t.publisher == nil {
		return
	}
	t.mu.Lock()
	_, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return
	}
	t.publisher.PublishSnapshot(snap)
}

// notify runs the throttle machine for one successful poll.
func (t *Tracker) notify(ctx context.Context, id string, now time.Time) {
	ns, err := t.store.LoadNotifySettings()
	if err != nil || !ns.Enabled || ns.WebhookURL == "" {
		return
	}

	set := alerting.Settings{
		Enabled:             ns.Enabled,
		PingOnNewBid:        ns.PingOnNewBid,
		PingAt30m:           ns.PingAt30m,
		UpdateInterval:      time.Duration(ns.UpdateIntervalSec) * time.Second,
		ClosingPingCooldown: t.cfg.Notify.ClosingPingCooldown,
	}

	t.mu.Lock()
	e, ok := t.entries[id]
	var lot auction.Listing
	if ok {
		lot = *e.listing
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	// The loop is the sole writer of its alert state, so the machine may
	// mutate it outside the registry lock; the listing is passed as a copy
	// because Rename can touch it concurrently.
	changed := t.machine.HandlePoll(ctx, t.notifierFor(ns.WebhookURL), e.alert, &lot, set, now)
	if !changed {
		return
	}

	t.mu.Lock()
	states := t.alertDocLocked()
	t.mu.Unlock()
	if err := t.store.SaveAlertStates(states); err != nil {
		t.logger.Error().Err(err).Str("listing", id).Msg("failed to persist alert state")
	}
}

// notifierFor reuses the webhook client until the URL changes.
func (t *Tracker) notifierFor(url string) alerting.Notifier {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if t.notifier == nil || t.notifierURL != url {
		t.notifier = alerting.NewWebhookNotifier(url, t.cfg.Notify.RequestTimeout, t.logger)
		t.notifierURL = url
	}
	return t.notifier
}

func (t *Tracker) persistHistory(histories map[string][]auction.Bid, listings []auction.Listing) error {
	if err := t.store.SaveHistory(histories); err != nil {
		return err
	}
	return t.store.SaveListings(listings)
}

func (t *Tracker) persistListingsLocked() error {
	return t.store.SaveListings(t.listingsDocLocked())
}

func (t *Tracker) persistAllLocked() error {
	if err := t.store.SaveListings(t.listingsDocLocked()); err != nil {
		return err
	}
	if err := t.store.SaveHistory(t.historyDocLocked()); err != nil {
		return err
	}
	return t.store.SaveAlertStates(t.alertDocLocked())
}

func (t *Tracker) listingsDocLocked() []auction.Listing {
	out := make([]auction.Listing, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e.listing)
	}
	return out
}

func (t *Tracker) historyDocLocked() map[string][]auction.Bid {
	out := make(map[string][]auction.Bid, len(t.entries))
	for id, e := range t.entries {
		bids := make([]auction.Bid, len(e.listing.Bids))
		copy(bids, e.listing.Bids)
		out[id] = bids
	}
	return out
}

func (t *Tracker) alertDocLocked() map[string]auction.AlertState {
	out := make(map[string]auction.AlertState, len(t.entries))
	for id, e := range t.entries {
		out[id] = *e.alert
	}
	return out
}

func newListingID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("lot-%d", time.Now().UnixNano())
	}
	return "lot-" + hex.EncodeToString(buf)
}
