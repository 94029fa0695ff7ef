// Package osu is the rate-limited client for the osu! API v2.
package osu

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

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
)

// PlayKind selects which of a user's score lists to fetch.
type PlayKind string

const (
	Best   PlayKind = "best"
	Firsts PlayKind = "firsts"
	Recent PlayKind = "recent"
)

const playsLimit = 100

type Client struct {
	http    *http.Client
	baseURL string
	mode    string
	limiter *rate.Limiter
}

// New returns a client authenticated with the client-credentials grant.
// Calls are spaced at least cooldown apart.
func New(clientID, clientSecret, tokenURL, baseURL, mode string, cooldown time.Duration) *Client {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"public"},
	}
	return NewWithHTTPClient(cc.Client(context.Background()), baseURL, mode, cooldown)
}

func NewWithHTTPClient(hc *http.Client, baseURL, mode string, cooldown time.Duration) *Client {
	limit := rate.Inf
	if cooldown > 0 {
		limit = rate.Every(cooldown)
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		mode:    mode,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) FetchUser(ctx context.Context, idOrName, mode string) (models.Profile, error) {
	if mode == "" {
		mode = c.mode
	}
	q := url.Values{}
	if _, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		q.Set("key", "id")
	} else {
		q.Set("key", "username")
	}
	var u apiUser
	path := "/users/" + url.PathEscape(idOrName) + "/" + url.PathEscape(mode)
	if err := c.get(ctx, path, q, &u); err != nil {
		return models.Profile{}, fmt.Errorf("fetch user %s: %w", idOrName, err)
	}
	return u.profile(), nil
}

func (c *Client) FetchScore(ctx context.Context, id int64) (models.Score, error) {
	var s apiScore
	if err := c.get(ctx, "/scores/"+strconv.FormatInt(id, 10), nil, &s); err != nil {
		return models.Score{}, fmt.Errorf("fetch score %d: %w", id, err)
	}
	return s.score()
}

func (c *Client) FetchUserPlays(ctx context.Context, userID int64, kind PlayKind) ([]models.Score, error) {
	q := url.Values{}
	q.Set("mode", c.mode)
	q.Set("limit", strconv.Itoa(playsLimit))
	if kind == Recent {
		q.Set("include_fails", "0")
	}
	var raw []apiScore
	path := fmt.Sprintf("/users/%d/scores/%s", userID, kind)
	if err := c.get(ctx, path, q, &raw); err != nil {
		return nil, fmt.Errorf("fetch %s plays of %d: %w", kind, userID, err)
	}
	out := make([]models.Score, 0, len(raw))
	for _, s := range raw {
		sc, err := s.score()
		if err != nil {
			return nil, fmt.Errorf("fetch %s plays of %d: %w", kind, userID, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("%s not found", path)
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("osu api %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
