package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/config"
	"github.com/SloeberX/auction-tracker/internal/scrape"
	"github.com/SloeberX/auction-tracker/internal/service"
	"github.com/SloeberX/auction-tracker/internal/storage"
)

type offlineFetcher struct{}

func (offlineFetcher) Fetch(ctx context.Context, url string) (*scrape.Result, error) {
	return nil, errors.New("offline")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.Open(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cfg := &config.Config{
		Poll: config.PollConfig{
			DefaultInterval: time.Hour,
			FastInterval:    time.Hour,
			FastWindow:      30 * time.Minute,
		},
		Reconcile: config.ReconcileConfig{
			MatchWindowPrecise: 10 * time.Minute,
			MatchWindowCoarse:  14 * 24 * time.Hour,
		},
		Notify: config.NotifyConfig{RequestTimeout: time.Second},
	}

	hub := NewHub(zerolog.Nop())
	tracker := service.New(cfg, offlineFetcher{}, store, hub, zerolog.Nop())
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("start tracker: %v", err)
	}
	t.Cleanup(tracker.Stop)

	s := New(":0", tracker, hub, zerolog.Nop())
	srv := httptest.NewServer(s.http.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestAPIAddListRemove(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/add", map[string]string{
		"url":   "https://example.test/lot/1",
		"title": "Poster",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add returned %d", resp.StatusCode)
	}
	var added struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	if !added.OK || added.ID == "" {
		t.Fatalf("unexpected add response: %+v", added)
	}

	listResp, err := http.Get(srv.URL + "/api/listings")
	if err != nil {
		t.Fatalf("GET listings: %v", err)
	}
	defer listResp.Body.Close()
	if cc := listResp.Header.Get("Cache-Control"); cc == "" {
		t.Fatal("listings response must disable caching")
	}
	var listing struct {
		Listings []struct {
			ID string `json:"id"`
		} `json:"listings"`
		Settings storage.NotifySettings `json:"settings"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listings: %v", err)
	}
	if len(listing.Listings) != 1 || listing.Listings[0].ID != added.ID {
		t.Fatalf("unexpected listings payload: %+v", listing)
	}

	rmResp := postJSON(t, srv.URL+"/api/remove", map[string]string{"id": added.ID})
	rmResp.Body.Close()
	if rmResp.StatusCode != http.StatusOK {
		t.Fatalf("remove returned %d", rmResp.StatusCode)
	}

	rmAgain := postJSON(t, srv.URL+"/api/remove", map[string]string{"id": added.ID})
	rmAgain.Body.Close()
	if rmAgain.StatusCode != http.StatusNotFound {
		t.Fatalf("second remove should be 404, got %d", rmAgain.StatusCode)
	}
}

func TestAPIAddRequiresURL(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/add", map[string]string{"title": "no url"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing url should be 400, got %d", resp.StatusCode)
	}
}

func TestAPIRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/add", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("broken json should be 400, got %d", resp.StatusCode)
	}
}

func TestAPINotifySettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/notify/settings", storage.NotifySettings{
		Enabled:           true,
		WebhookURL:        "https://example.test/webhook",
		PingOnNewBid:      true,
		UpdateIntervalSec: 5,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set settings returned %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/api/notify/settings")
	if err != nil {
		t.Fatalf("GET settings: %v", err)
	}
	defer getResp.Body.Close()
	var ns storage.NotifySettings
	if err := json.NewDecoder(getResp.Body).Decode(&ns); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !ns.Enabled || !ns.PingOnNewBid {
		t.Fatalf("settings not persisted: %+v", ns)
	}
	if ns.UpdateIntervalSec != 15 {
		t.Fatalf("interval should clamp to 15, got %d", ns.UpdateIntervalSec)
	}
}

func TestAPITestAlertWithoutWebhook(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/notify/test", map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("test alert without webhook should be 400, got %d", resp.StatusCode)
	}
}
