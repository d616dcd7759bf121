package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lox/triadsync/internal/auth"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/protocol"
	"github.com/lox/triadsync/internal/server"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// FetchTimings asks the server which match timings its rooms use, so every
// participant arms the same deadlines.
func FetchTimings(ctx context.Context, serverURL string) (match.Timings, error) {
	var t protocol.Timings
	if err := getJSON(ctx, server.HTTPBase(serverURL)+"/timings", &t); err != nil {
		return match.Timings{}, err
	}
	return t.Match(), nil
}

// FetchRooms returns the server's read-only lobby listing.
func FetchRooms(ctx context.Context, serverURL string) ([]match.Summary, error) {
	var list protocol.RoomList
	if err := getJSON(ctx, server.HTTPBase(serverURL)+"/rooms", &list); err != nil {
		return nil, err
	}
	return list.Rooms, nil
}

// DeleteRoom asks the server to remove roomID, authenticating with the
// server's admin secret. A missing room is match.ErrRoomGone and a refused
// secret is ErrUnauthorized.
func DeleteRoom(ctx context.Context, serverURL, roomID, adminSecret string) error {
	endpoint := server.HTTPBase(serverURL) + "/rooms/" + url.PathEscape(roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(auth.AdminSecretHeader, adminSecret)
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("room %s: %w", roomID, match.ErrRoomGone)
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusMethodNotAllowed:
		return fmt.Errorf("DELETE %s: server has no admin secret configured", endpoint)
	default:
		return fmt.Errorf("DELETE %s: unexpected status %s", endpoint, resp.Status)
	}
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
