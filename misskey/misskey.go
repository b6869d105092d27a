// Package misskey is a minimal client for the Misskey HTTP API, covering the
// handful of endpoints the streak bot needs. Every endpoint is a JSON POST
// with the API token carried in the request body as "i".
package misskey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	followerPageSize = 100
	noteFetchLimit   = 100
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(instance, token string) *Client {
	base := strings.TrimRight(instance, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Host     string `json:"host"`
}

// Mention is the canonical fediverse handle: @user for local accounts,
// @user@host for remote ones.
func (u *User) Mention() string {
	if u.Host != "" {
		return "@" + u.Username + "@" + u.Host
	}

	return "@" + u.Username
}

// Follower is one entry of a users/followers page. ID is the following-row
// id used as the paging cursor; FollowerID is the account that follows.
type Follower struct {
	ID         string `json:"id"`
	FollowerID string `json:"followerId"`
}

type Note struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIError is a structured rejection from the Misskey API, as opposed to a
// transport failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("misskey: %s: %s", e.Code, e.Message)
}

// IsAPIError reports whether err is a rejection from the API itself, such as
// ALREADY_FOLLOWING, rather than a network or decoding failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func (c *Client) post(ctx context.Context, path string, params map[string]interface{}, out interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["i"] = c.token

	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var rejection struct {
			Error *APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&rejection); err == nil && rejection.Error != nil {
			return rejection.Error
		}

		return fmt.Errorf("misskey: %s returned %s", path, resp.Status)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Self returns the account the token belongs to.
func (c *Client) Self(ctx context.Context) (*User, error) {
	var user User
	if err := c.post(ctx, "/api/i", nil, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (c *Client) ShowUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.post(ctx, "/api/users/show", map[string]interface{}{"userId": userID}, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (c *Client) followerPage(ctx context.Context, userID, untilID string) ([]Follower, error) {
	params := map[string]interface{}{
		"userId": userID,
		"limit":  followerPageSize,
	}
	if untilID != "" {
		params["untilId"] = untilID
	}

	var page []Follower
	if err := c.post(ctx, "/api/users/followers", params, &page); err != nil {
		return nil, err
	}

	return page, nil
}

// AllFollowers pages through users/followers until the listing is exhausted.
func (c *Client) AllFollowers(ctx context.Context, userID string) ([]Follower, error) {
	var followers []Follower
	untilID := ""

	for {
		page, err := c.followerPage(ctx, userID, untilID)
		if err != nil {
			return nil, err
		}

		followers = append(followers, page...)
		if len(page) < followerPageSize {
			return followers, nil
		}
		untilID = page[len(page)-1].ID
	}
}

// NotesSince lists a user's notes authored at or after since, replies and
// renotes included, capped at 100.
func (c *Client) NotesSince(ctx context.Context, userID string, since time.Time) ([]Note, error) {
	params := map[string]interface{}{
		"userId":           userID,
		"includeReplies":   true,
		"includeMyRenotes": true,
		"limit":            noteFetchLimit,
		"sinceDate":        since.UnixMilli(),
	}

	var notes []Note
	if err := c.post(ctx, "/api/users/notes", params, &notes); err != nil {
		return nil, err
	}

	return notes, nil
}

// Follow creates a follow towards userID. Following an account twice comes
// back as an *APIError.
func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.post(ctx, "/api/following/create", map[string]interface{}{"userId": userID}, nil)
}

// SendPrivateNote posts a note visible only to userID.
func (c *Client) SendPrivateNote(ctx context.Context, text, userID string) error {
	params := map[string]interface{}{
		"text":           text,
		"visibility":     "specified",
		"visibleUserIds": []string{userID},
	}

	return c.post(ctx, "/api/notes/create", params, nil)
}
