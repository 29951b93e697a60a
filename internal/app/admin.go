package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Admin commands talk to the running daemon over its own API so the
// daemon stays the single owner of the data documents.

// AddListing registers a new lot with the running tracker.
func (a *App) AddListing(ctx context.Context, url, title string) (string, error) {
	var resp struct {
		OK    bool   `json:"ok"`
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	err := a.postAPI(ctx, "/api/add", map[string]string{"url": url, "title": title}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("add rejected: %s", resp.Error)
	}
	return resp.ID, nil
}

// RemoveListing unregisters a lot from the running tracker.
func (a *App) RemoveListing(ctx context.Context, id string) error {
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := a.postAPI(ctx, "/api/remove", map[string]string{"id": id}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("remove rejected: %s", resp.Error)
	}
	return nil
}

func (a *App) postAPI(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *App) apiBase() string {
	addr := a.Config.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
