package canvas

import (
	"context"
	"net/http"
)

// ExternalToolParams registers an LTI tool from a configuration URL.
type ExternalToolParams struct {
	Name         string `json:"name"`
	Domain       string `json:"domain,omitempty"`
	ConfigType   string `json:"config_type,omitempty"`
	PrivacyLevel string `json:"privacy_level"`
	ConfigURL    string `json:"config_url,omitempty"`
	ConsumerKey  string `json:"consumer_key"`
	SharedSecret string `json:"shared_secret"`
}

func (c *Client) AccountExternalTools(ctx context.Context, accountID int64) (*List, error) {
	return c.getList(ctx, idPath("/accounts/%d/external_tools", accountID), nil)
}

func (c *Client) CourseExternalTools(ctx context.Context, courseID int64) (*List, error) {
	return c.getList(ctx, idPath("/courses/%d/external_tools", courseID), nil)
}

func (c *Client) CreateAccountExternalTool(ctx context.Context, accountID int64, p ExternalToolParams) (Resource, error) {
	return c.send(ctx, http.MethodPost, idPath("/accounts/%d/external_tools", accountID), nil, p)
}

func (c *Client) CreateCourseExternalTool(ctx context.Context, courseID int64, p ExternalToolParams) (Resource, error) {
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/external_tools", courseID), nil, p)
}
