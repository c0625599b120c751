// Package remote is the REST data source. It exposes the same method set as
// the Postgres services so the view-model cannot tell them apart.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/social"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/trip"
	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/waypoint"
)

// ErrStatus wraps every non-2xx response.
var ErrStatus = errors.New("unexpected status")

// TokenSource supplies the bearer token for each request. *auth.Sessions
// satisfies it.
type TokenSource interface {
	AccessToken() string
}

type Client struct {
	baseURL string
	timeout time.Duration
	tokens  TokenSource
}

func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, tokens: tokens}
}

type response struct {
	code int
	body []byte
	err  error
}

func (c *Client) do(ctx context.Context, agent *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return err
	}
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
	}
	if c.timeout > 0 {
		agent.Timeout(c.timeout)
	}

	done := make(chan response, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- response{code: code, body: body, err: errors.Join(errs...)}
	}()

	var res response
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return res.err
	}
	if res.code < 200 || res.code > 299 {
		return fmt.Errorf("%w: %d %s", ErrStatus, res.code, strings.TrimSpace(string(res.body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(res.body, out)
}

// QueryWaypoints fetches one page from GET /waypoints.
func (c *Client) QueryWaypoints(ctx context.Context, q waypoint.Query) ([]waypoint.Raw, error) {
	agent := fiber.Get(c.baseURL + "/waypoints")
	agent.QueryString(pageQuery(q).Encode())

	var body struct {
		Data []waypoint.Raw `json:"data"`
	}
	if err := c.do(ctx, agent, &body); err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	return body.Data, nil
}

func pageQuery(q waypoint.Query) url.Values {
	v := url.Values{}
	if b := q.Bounds; b != nil {
		v.Set("north", formatFloat(b.North))
		v.Set("south", formatFloat(b.South))
		v.Set("east", formatFloat(b.East))
		v.Set("west", formatFloat(b.West))
	}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (c *Client) GetTrip(ctx context.Context, id string) (trip.Trip, error) {
	var t trip.Trip
	if err := c.do(ctx, fiber.Get(c.baseURL+"/trips/"+url.PathEscape(id)), &t); err != nil {
		return trip.Trip{}, fmt.Errorf("get trip %s: %w", id, err)
	}
	return t, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (social.Post, error) {
	var p social.Post
	if err := c.do(ctx, fiber.Get(c.baseURL+"/posts/"+url.PathEscape(id)), &p); err != nil {
		return social.Post{}, fmt.Errorf("get post %s: %w", id, err)
	}
	return p, nil
}

// ToggleBookmark flips the caller's bookmark. The user is taken from the
// bearer token, so userID is only used for error context.
func (c *Client) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	var body struct {
		Bookmarked bool `json:"bookmarked"`
	}
	if err := c.do(ctx, fiber.Post(c.baseURL+"/posts/"+url.PathEscape(postID)+"/bookmark"), &body); err != nil {
		return false, fmt.Errorf("toggle bookmark %s for %s: %w", postID, userID, err)
	}
	return body.Bookmarked, nil
}

func (c *Client) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	var body struct {
		Following bool `json:"following"`
	}
	if err := c.do(ctx, fiber.Post(c.baseURL+"/users/"+url.PathEscape(followingID)+"/follow"), &body); err != nil {
		return false, fmt.Errorf("toggle follow %s for %s: %w", followingID, followerID, err)
	}
	return body.Following, nil
}
