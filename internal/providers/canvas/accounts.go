package canvas

import (
	"context"
	"net/http"
	"net/url"
)

// UserParams creates a user with a login pseudonym.
type UserParams struct {
	User      UserFields      `json:"user"`
	Pseudonym PseudonymFields `json:"pseudonym"`
}

type UserFields struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

type PseudonymFields struct {
	UniqueID  string `json:"unique_id"`
	Password  string `json:"password,omitempty"`
	SISUserID string `json:"sis_user_id,omitempty"`
}

// SubAccounts lists every sub-account below the default account.
func (c *Client) SubAccounts(ctx context.Context) (*List, error) {
	id, err := c.accountOrDefault(ctx, 0)
	if err != nil {
		return nil, err
	}
	return c.getList(ctx, idPath("/accounts/%d/sub_accounts", id), url.Values{"recursive": {"true"}})
}

func (c *Client) CreateSubAccount(ctx context.Context, name string) (Resource, error) {
	id, err := c.accountOrDefault(ctx, 0)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"account": map[string]string{"name": name}}
	return c.send(ctx, http.MethodPost, idPath("/accounts/%d/sub_accounts", id), nil, payload)
}

// ListUsers lists the users of the default account.
func (c *Client) ListUsers(ctx context.Context) (*List, error) {
	id, err := c.accountOrDefault(ctx, 0)
	if err != nil {
		return nil, err
	}
	return c.getList(ctx, idPath("/accounts/%d/users", id), nil)
}

// CreateUser creates a user in accountID, or in the default account when 0.
func (c *Client) CreateUser(ctx context.Context, accountID int64, u UserParams) (Resource, error) {
	id, err := c.accountOrDefault(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPost, idPath("/accounts/%d/users", id), nil, u)
}

// UpdateUser sends {"user": fields}.
func (c *Client) UpdateUser(ctx context.Context, userID int64, fields map[string]any) (Resource, error) {
	return c.send(ctx, http.MethodPut, idPath("/users/%d", userID), nil, map[string]any{"user": fields})
}
