// Package meps fetches the member roster and resolves speaker names to
// member records.
package meps

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

	"github.com/rs/zerolog"
)

const (
	rosterPageLimit = 500
	rosterUserAgent = "plenary-pipeline/1.0 (+https://hemicycle.dev/plenary)"
)

// RosterMember is one member as the external API reports it.
type RosterMember struct {
	ID         int64
	Label      string
	GivenName  string
	FamilyName string
	Country    string
}

// Client pages the member roster API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger.With().Str("component", "meps").Logger(),
	}
}

// CurrentMembers fetches the full current roster.
func (c *Client) CurrentMembers(ctx context.Context) ([]RosterMember, error) {
	return c.fetchAll(ctx, c.baseURL+"/meps/show-current", nil)
}

// TermMembers fetches every member of one parliamentary term.
func (c *Client) TermMembers(ctx context.Context, term int) ([]RosterMember, error) {
	return c.fetchAll(ctx, c.baseURL+"/meps", url.Values{
		"parliamentary-term": {strconv.Itoa(term)},
	})
}

// fetchAll walks limit/offset pages until a short page arrives.
func (c *Client) fetchAll(ctx context.Context, endpoint string, extra url.Values) ([]RosterMember, error) {
	var members []RosterMember
	for offset := 0; ; offset += rosterPageLimit {
		page, err := c.fetchPage(ctx, endpoint, extra, offset)
		if err != nil {
			return nil, err
		}
		members = append(members, page...)
		if len(page) < rosterPageLimit {
			break
		}
	}
	c.logger.Debug().Int("members", len(members)).Str("endpoint", endpoint).Msg("roster fetched")
	return members, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, extra url.Values, offset int) ([]RosterMember, error) {
	params := url.Values{
		"format":   {"application/ld+json"},
		"language": {"EN"},
		"limit":    {strconv.Itoa(rosterPageLimit)},
		"offset":   {strconv.Itoa(offset)},
	}
	for k, vs := range extra {
		params[k] = vs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build roster request: %w", err)
	}
	req.Header.Set("User-Agent", rosterUserAgent)
	req.Header.Set("Accept", "application/ld+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roster request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read roster response: %w", err)
	}

	var page rosterPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode roster response: %w", err)
	}

	members := make([]RosterMember, 0, len(page.Data))
	for _, rec := range page.Data {
		m, ok := rec.toMember()
		if !ok {
			c.logger.Warn().Str("identifier", rec.Identifier).Msg("roster record without usable id")
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

type rosterPage struct {
	Data []rosterRecord `json:"data"`
}

type rosterRecord struct {
	ID         string     `json:"id"`
	Identifier string     `json:"identifier"`
	Label      flexString `json:"label"`
	GivenName  flexString `json:"givenName"`
	FamilyName flexString `json:"familyName"`
	Country    flexString `json:"api:country-of-representation"`
}

func (r rosterRecord) toMember() (RosterMember, bool) {
	id, ok := parseMemberID(r.Identifier, r.ID)
	if !ok {
		return RosterMember{}, false
	}
	label := strings.TrimSpace(string(r.Label))
	if label == "" {
		label = strings.TrimSpace(string(r.GivenName) + " " + string(r.FamilyName))
	}
	if label == "" {
		return RosterMember{}, false
	}
	return RosterMember{
		ID:         id,
		Label:      label,
		GivenName:  strings.TrimSpace(string(r.GivenName)),
		FamilyName: strings.TrimSpace(string(r.FamilyName)),
		Country:    strings.TrimSpace(string(r.Country)),
	}, true
}

// parseMemberID prefers the explicit identifier and falls back to the last
// numeric path segment of the JSON-LD id URI.
func parseMemberID(identifier, idURI string) (int64, bool) {
	if id, err := strconv.ParseInt(strings.TrimSpace(identifier), 10, 64); err == nil && id > 0 {
		return id, true
	}
	trimmed := strings.TrimRight(strings.TrimSpace(idURI), "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil && id > 0 {
		return id, true
	}
	return 0, false
}

// flexString decodes a JSON-LD value that may be a plain string, a language
// map with a "value" key, or an array of either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		if v, ok := obj["value"].(string); ok {
			*f = flexString(v)
			return nil
		}
		if v, ok := obj["@value"].(string); ok {
			*f = flexString(v)
			return nil
		}
		*f = ""
		return nil
	}

	var arr []flexString
	if err := json.Unmarshal(data, &arr); err == nil {
		for _, item := range arr {
			if item != "" {
				*f = item
				return nil
			}
		}
		*f = ""
		return nil
	}

	*f = ""
	return nil
}
