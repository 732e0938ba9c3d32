package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// FetchState reads the authoritative snapshot over REST. Clients use it as a baseline
// before the socket delivers its own DRAFT_STATUS.
func FetchState(ctx context.Context, httpClient *http.Client, baseURL, leagueID string) (events.DraftStatusPayload, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := fmt.Sprintf("%s/api/rooms/%s/state", strings.TrimRight(baseURL, "/"), url.PathEscape(leagueID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return events.DraftStatusPayload{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return events.DraftStatusPayload{}, fmt.Errorf("fetch room state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return events.DraftStatusPayload{}, fmt.Errorf("fetch room state: unexpected status %d", resp.StatusCode)
	}

	var status events.DraftStatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return events.DraftStatusPayload{}, fmt.Errorf("decode room state: %w", err)
	}
	return status, nil
}
