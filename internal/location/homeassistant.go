package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// State is a Home Assistant entity state.
type State struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// HomeAssistant resolves entity ids through the Home Assistant REST API.
type HomeAssistant struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHomeAssistant creates a resolver for the instance at baseURL using a long-lived access token.
func NewHomeAssistant(baseURL, token string, hc *http.Client) *HomeAssistant {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &HomeAssistant{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
	}
}

// State fetches the current state of one entity.
func (h *HomeAssistant) State(ctx context.Context, entityID string) (*State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ha api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, entityID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ha api %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// Resolve implements Resolver using the entity's latitude and longitude attributes.
func (h *HomeAssistant) Resolve(ctx context.Context, entityID string) (Coordinates, error) {
	st, err := h.State(ctx, entityID)
	if err != nil {
		return Coordinates{}, err
	}
	lat, okLat := toFloat(st.Attributes["latitude"])
	lon, okLon := toFloat(st.Attributes["longitude"])
	if !okLat || !okLon {
		return Coordinates{}, fmt.Errorf("%w: %s", ErrNoCoordinates, entityID)
	}
	return Coordinates{Latitude: lat, Longitude: lon}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
