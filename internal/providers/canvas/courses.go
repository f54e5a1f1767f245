package canvas

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CourseParams is the "course" object accepted by the create course endpoint.
type CourseParams struct {
	Name              string `json:"name,omitempty"`
	CourseCode        string `json:"course_code,omitempty"`
	SISCourseID       string `json:"sis_course_id,omitempty"`
	StartAt           string `json:"start_at,omitempty"`
	EndAt             string `json:"end_at,omitempty"`
	PublicDescription string `json:"public_description,omitempty"`
	DefaultView       string `json:"default_view,omitempty"`
	IsPublic          *bool  `json:"is_public,omitempty"`
	TimeZone          string `json:"time_zone,omitempty"`
}

// MigrationParams starts a content migration into a course.
type MigrationParams struct {
	MigrationType    string            `json:"migration_type"`
	Settings         MigrationSettings `json:"settings"`
	DateShiftOptions *DateShiftOptions `json:"date_shift_options,omitempty"`
}

type MigrationSettings struct {
	FileURL string `json:"file_url,omitempty"`
}

type DateShiftOptions struct {
	ShiftDates   bool   `json:"shift_dates"`
	NewStartDate string `json:"new_start_date,omitempty"`
}

const CommonCartridgeImporter = "common_cartridge_importer"

// IsAccountAdmin reports whether the token can list accounts. The first
// account returned becomes the default account for account scoped calls.
func (c *Client) IsAccountAdmin(ctx context.Context) (bool, error) {
	if c.adminChecked {
		return c.admin, nil
	}

	var accounts []Resource
	_, err := c.do(ctx, http.MethodGet, "/accounts", url.Values{"per_page": {"1"}}, nil, &accounts)
	if err != nil && !IsUnauthorized(err) {
		return false, fmt.Errorf("canvas: list accounts: %w", err)
	}

	c.adminChecked = true
	c.admin = len(accounts) > 0
	if c.admin {
		c.accountID = accounts[0].ID()
	}
	return c.admin, nil
}

// AccountID returns the default (root) account, or 0 for non admins.
func (c *Client) AccountID(ctx context.Context) (int64, error) {
	if _, err := c.IsAccountAdmin(ctx); err != nil {
		return 0, err
	}
	return c.accountID, nil
}

func (c *Client) accountOrDefault(ctx context.Context, accountID int64) (int64, error) {
	if accountID > 0 {
		return accountID, nil
	}
	id, err := c.AccountID(ctx)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrNoAccount
	}
	return id, nil
}

// GetProfileBySISID looks a user up through their SIS id.
func (c *Client) GetProfileBySISID(ctx context.Context, sisID string) (Resource, error) {
	return c.getResource(ctx, "/users/sis_user_id:"+url.PathEscape(sisID)+"/profile", nil)
}

// GetCoursesForAccount lists an account's courses, optionally narrowed by a search term.
func (c *Client) GetCoursesForAccount(ctx context.Context, accountID int64, searchTerm string) (*List, error) {
	id, err := c.accountOrDefault(ctx, accountID)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if searchTerm != "" {
		q.Set("search_term", searchTerm)
	}
	return c.getList(ctx, idPath("/accounts/%d/courses", id), q)
}

// GetCourses lists the token owner's courses including their enrollments.
func (c *Client) GetCourses(ctx context.Context) (*List, error) {
	return c.getList(ctx, "/courses", url.Values{})
}

func (c *Client) CreateCourse(ctx context.Context, accountID int64, course CourseParams) (Resource, error) {
	id, err := c.accountOrDefault(ctx, accountID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"course": course}
	return c.send(ctx, http.MethodPost, idPath("/accounts/%d/courses", id), nil, payload)
}

func (c *Client) MigrateContent(ctx context.Context, courseID int64, m MigrationParams) (Resource, error) {
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/content_migrations", courseID), nil, m)
}

// UpdateCourse sends top level course update params such as {"offer": true}.
func (c *Client) UpdateCourse(ctx context.Context, courseID int64, params map[string]any) (Resource, error) {
	return c.send(ctx, http.MethodPut, idPath("/courses/%d", courseID), nil, params)
}

func (c *Client) GetProgress(ctx context.Context, progressID string) (Resource, error) {
	if _, err := strconv.ParseInt(progressID, 10, 64); err != nil {
		return nil, fmt.Errorf("canvas: invalid progress id %q", progressID)
	}
	return c.getResource(ctx, "/progress/"+progressID, nil)
}
