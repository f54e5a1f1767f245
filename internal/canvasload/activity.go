package canvasload

import (
	"context"
	"strings"

	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
)

// Page errors that only mean the course has no such content.
var ignorablePageErrors = []string{
	"404 No front page has been set",
	"404 That page has been disabled for this course",
}

func (l *Loader) discussionTopics(ctx context.Context, api API, courseID int64) (*canvas.List, error) {
	if topics, ok := l.discussions[courseID]; ok {
		return topics, nil
	}
	topics, err := api.DiscussionTopics(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := l.collect(ctx, topics); err != nil {
		return nil, err
	}
	l.discussions[courseID] = topics
	return topics, nil
}

// CreateDiscussion starts a topic as userID, or replies to it when a topic
// with the same title (case-insensitive) already exists.
func (l *Loader) CreateDiscussion(ctx context.Context, userID, courseID int64, d domain.DiscussionDefinition) (Outcome, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return Outcome{}, err
	}
	title := strings.TrimSpace(d.Title)

	topics, err := l.discussionTopics(ctx, api, courseID)
	if err != nil {
		return softFail(err, "Couldn't create discussion %s", title)
	}

	var created canvas.Resource
	if topic, ok := topics.Find(func(t canvas.Resource) bool {
		return strings.EqualFold(strings.TrimSpace(t.String("title")), title)
	}); ok {
		created, err = api.CreateDiscussionEntry(ctx, userID, courseID, topic.ID(), d.Message)
	} else {
		created, err = api.CreateDiscussion(ctx, userID, courseID, title, d.Message)
		if err == nil {
			topics.Append(created)
		}
	}
	if err != nil {
		return softFail(err, "Couldn't create discussion %s", title)
	}
	return Outcome{Resource: created}, nil
}

func (l *Loader) courseAssignments(ctx context.Context, api API, courseID int64) (*canvas.List, error) {
	if assignments, ok := l.assignments[courseID]; ok {
		return assignments, nil
	}
	assignments, err := api.Assignments(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := l.collect(ctx, assignments); err != nil {
		return nil, err
	}
	l.assignments[courseID] = assignments
	return assignments, nil
}

// CreateAssignmentSubmission submits to the assignment named a.Name as userID.
func (l *Loader) CreateAssignmentSubmission(ctx context.Context, userID, courseID int64, a domain.AssignmentDefinition) (Outcome, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return Outcome{}, err
	}

	assignments, err := l.courseAssignments(ctx, api, courseID)
	if err != nil {
		return softFail(err, "Couldn't submit assignment %s", a.Name)
	}
	assignment, ok := assignments.Find(func(as canvas.Resource) bool {
		return strings.EqualFold(strings.TrimSpace(as.String("name")), strings.TrimSpace(a.Name))
	})
	if !ok {
		return Outcome{Error: "Assignment " + a.Name + " couldn't be found."}, nil
	}

	submission := canvas.SubmissionParams{
		Comment: a.Comment,
		Type:    strings.TrimSpace(a.Type),
	}
	if submission.Type == "online_text_entry" {
		submission.Body = a.Submission
	} else {
		submission.URL = a.Submission
	}

	created, err := api.CreateAssignmentSubmission(ctx, userID, courseID, assignment.ID(), submission)
	if err != nil {
		return softFail(err, "Couldn't submit assignment %s", a.Name)
	}
	return Outcome{Resource: created}, nil
}

func (l *Loader) CreateQuiz(ctx context.Context, courseID int64, q domain.QuizDefinition) (canvas.Resource, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	return api.CreateQuiz(ctx, courseID, strings.TrimSpace(q.Title), q.QuizType)
}

// CreateConversation messages the comma separated recipientIDs as userID.
func (l *Loader) CreateConversation(ctx context.Context, userID, courseID int64, recipientIDs, subject, body string) ([]canvas.Resource, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	var recipients []string
	for _, id := range strings.Split(recipientIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			recipients = append(recipients, id)
		}
	}
	return api.CreateConversation(ctx, userID, courseID, recipients, subject, body)
}

// ViewPages reads the front page and every wiki page as userID so Canvas
// records page views. Missing front pages and disabled pages are skipped.
func (l *Loader) ViewPages(ctx context.Context, userID, courseID int64) ([]canvas.Resource, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}

	var viewed []canvas.Resource
	front, err := api.GetFrontPage(ctx, userID, courseID)
	if err != nil && !ignorablePageError(err) {
		return viewed, err
	}
	if err == nil {
		viewed = append(viewed, front)
	}

	pages, err := api.GetPages(ctx, userID, courseID)
	if err == nil {
		err = l.collect(ctx, pages)
	}
	if err != nil {
		if ignorablePageError(err) {
			return viewed, nil
		}
		return viewed, err
	}

	for _, p := range pages.Items {
		page, err := api.GetPage(ctx, userID, courseID, p.String("url"))
		if err != nil {
			if ignorablePageError(err) {
				continue
			}
			return viewed, err
		}
		viewed = append(viewed, page)
	}
	return viewed, nil
}

func ignorablePageError(err error) bool {
	apiErr, ok := canvas.AsAPIError(err)
	if !ok {
		return false
	}
	msg := apiErr.Error()
	for _, ignorable := range ignorablePageErrors {
		if msg == ignorable {
			return true
		}
	}
	return false
}
