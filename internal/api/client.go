// Package api is the HTTP client for the social-graph service: the
// notification feed, action status polling, and profile lookups.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/FocalizeApp/focalize-daemon/internal/feed"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// Client calls the social-graph API with a bearer session token. It
// implements feed.Source, pending.StatusSource, profile.Source, and
// profile.AliasSource.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client. An empty token means the user has
// not logged in; feed fetches will report ErrUnauthenticated.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// FetchPage implements feed.Source.
func (c *Client) FetchPage(ctx context.Context, cursor string, filtered bool) (types.FetchedPage, error) {
	if c.token == "" {
		return types.FetchedPage{}, feed.ErrUnauthenticated
	}
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	params.Set("filtered", strconv.FormatBool(filtered))

	var page types.FetchedPage
	if err := c.getJSON(ctx, "/v1/notifications", params, &page); err != nil {
		return types.FetchedPage{}, err
	}
	return page, nil
}

// ActionStatus implements pending.StatusSource.
func (c *Client) ActionStatus(ctx context.Context, id string) (types.ActionStatus, error) {
	var status types.ActionStatus
	path := "/v1/actions/" + url.PathEscape(id)
	if err := c.getJSON(ctx, path, nil, &status); err != nil {
		return types.ActionStatus{}, err
	}
	return status, nil
}

// ProfilesByOwner implements profile.Source.
func (c *Client) ProfilesByOwner(ctx context.Context, addresses []string) (map[string]types.ProfileRef, error) {
	params := url.Values{}
	params.Set("owners", strings.Join(addresses, ","))

	profiles := map[string]types.ProfileRef{}
	if err := c.getJSON(ctx, "/v1/profiles", params, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Aliases implements profile.AliasSource.
func (c *Client) Aliases(ctx context.Context, addresses []string) (map[string]string, error) {
	params := url.Values{}
	params.Set("addresses", strings.Join(addresses, ","))

	aliases := map[string]string{}
	if err := c.getJSON(ctx, "/v1/aliases", params, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return feed.ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
