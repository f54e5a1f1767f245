package canvas

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// SubmissionParams describes one assignment submission.
type SubmissionParams struct {
	Comment string
	Type    string // online_text_entry, online_url, ...
	Body    string
	URL     string
}

// EnrollmentParams is the "enrollment" object of the enroll endpoint.
type EnrollmentParams struct {
	UserID          int64  `json:"user_id"`
	Type            string `json:"type"`
	EnrollmentState string `json:"enrollment_state,omitempty"`
}

func (c *Client) DiscussionTopics(ctx context.Context, courseID int64) (*List, error) {
	return c.getList(ctx, idPath("/courses/%d/discussion_topics", courseID), nil)
}

// CreateDiscussion posts a new topic as userID.
func (c *Client) CreateDiscussion(ctx context.Context, userID, courseID int64, title, message string) (Resource, error) {
	payload := map[string]any{
		"title":     title,
		"message":   message,
		"published": true,
	}
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/discussion_topics", courseID), asUser(userID), payload)
}

// CreateDiscussionEntry replies to an existing topic as userID.
func (c *Client) CreateDiscussionEntry(ctx context.Context, userID, courseID, topicID int64, message string) (Resource, error) {
	payload := map[string]any{"message": message}
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/discussion_topics/%d/entries", courseID, topicID), asUser(userID), payload)
}

func (c *Client) Assignments(ctx context.Context, courseID int64) (*List, error) {
	return c.getList(ctx, idPath("/courses/%d/assignments", courseID), nil)
}

// CreateAssignmentSubmission submits as userID.
func (c *Client) CreateAssignmentSubmission(ctx context.Context, userID, courseID, assignmentID int64, s SubmissionParams) (Resource, error) {
	submission := map[string]any{"submission_type": s.Type}
	if s.Body != "" {
		submission["body"] = s.Body
	}
	if s.URL != "" {
		submission["url"] = s.URL
	}
	payload := map[string]any{"submission": submission}
	if s.Comment != "" {
		payload["comment"] = map[string]string{"text_comment": s.Comment}
	}
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/assignments/%d/submissions", courseID, assignmentID), asUser(userID), payload)
}

func (c *Client) CreateQuiz(ctx context.Context, courseID int64, title, quizType string) (Resource, error) {
	quiz := map[string]any{"title": title}
	if quizType != "" {
		quiz["quiz_type"] = quizType
	}
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/quizzes", courseID), nil, map[string]any{"quiz": quiz})
}

// CreateConversation sends a message from userID to recipients within a course context.
// Canvas answers with the list of conversations created.
func (c *Client) CreateConversation(ctx context.Context, userID, courseID int64, recipients []string, subject, body string) ([]Resource, error) {
	payload := map[string]any{
		"recipients":   recipients,
		"subject":      subject,
		"body":         body,
		"context_code": fmt.Sprintf("course_%d", courseID),
	}
	var out []Resource
	if _, err := c.do(ctx, http.MethodPost, "/conversations", asUser(userID), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EnrollUser(ctx context.Context, courseID int64, e EnrollmentParams) (Resource, error) {
	payload := map[string]any{"enrollment": e}
	return c.send(ctx, http.MethodPost, idPath("/courses/%d/enrollments", courseID), nil, payload)
}

// GetFrontPage fetches the course front page as userID, which also records a page view.
func (c *Client) GetFrontPage(ctx context.Context, userID, courseID int64) (Resource, error) {
	return c.getResource(ctx, idPath("/courses/%d/front_page", courseID), asUser(userID))
}

func (c *Client) GetPages(ctx context.Context, userID, courseID int64) (*List, error) {
	return c.getList(ctx, idPath("/courses/%d/pages", courseID), asUser(userID))
}

func (c *Client) GetPage(ctx context.Context, userID, courseID int64, pageURL string) (Resource, error) {
	return c.getResource(ctx, idPath("/courses/%d/pages/", courseID)+url.PathEscape(pageURL), asUser(userID))
}
