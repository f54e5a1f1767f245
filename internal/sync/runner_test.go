package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-load/internal/canvasload"
	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
	"canvas-load/internal/store"
)

// MockLoader records calls and answers with canned resources. Unset funcs
// succeed with a resource whose id is 1.
type MockLoader struct {
	FindOrCreateSubAccountFunc     func(ctx context.Context, name string) (*canvasload.Match, error)
	SetupWelcomeFunc               func(ctx context.Context, subAccountID int64) (bool, error)
	FindOrCreateUserFunc           func(ctx context.Context, p domain.UserDefinition, subAccountID int64) (canvasload.UserResult, error)
	FindOrCreateCourseFunc         func(ctx context.Context, course *store.Course, subAccountID int64, alwaysCreate bool) (*canvasload.CourseResult, error)
	EnsureEnrollmentFunc           func(ctx context.Context, userID, courseID int64, enrollmentType string) (canvas.Resource, error)
	CreateDiscussionFunc           func(ctx context.Context, userID, courseID int64, d domain.DiscussionDefinition) (canvasload.Outcome, error)
	CreateAssignmentSubmissionFunc func(ctx context.Context, userID, courseID int64, a domain.AssignmentDefinition) (canvasload.Outcome, error)
	CreateQuizFunc                 func(ctx context.Context, courseID int64, q domain.QuizDefinition) (canvas.Resource, error)
	CreateConversationFunc         func(ctx context.Context, userID, courseID int64, recipientIDs, subject, body string) ([]canvas.Resource, error)
	ViewPagesFunc                  func(ctx context.Context, userID, courseID int64) ([]canvas.Resource, error)
	AddLTIToolFunc                 func(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (*canvasload.Match, error)
}

var one = canvas.Resource{"id": 1}

func (m *MockLoader) FindOrCreateSubAccount(ctx context.Context, name string) (*canvasload.Match, error) {
	if m.FindOrCreateSubAccountFunc != nil {
		return m.FindOrCreateSubAccountFunc(ctx, name)
	}
	return &canvasload.Match{Resource: one}, nil
}

func (m *MockLoader) SetupWelcome(ctx context.Context, subAccountID int64) (bool, error) {
	if m.SetupWelcomeFunc != nil {
		return m.SetupWelcomeFunc(ctx, subAccountID)
	}
	return false, nil
}

func (m *MockLoader) FindOrCreateUser(ctx context.Context, p domain.UserDefinition, subAccountID int64) (canvasload.UserResult, error) {
	if m.FindOrCreateUserFunc != nil {
		return m.FindOrCreateUserFunc(ctx, p, subAccountID)
	}
	return canvasload.UserResult{User: one}, nil
}

func (m *MockLoader) FindOrCreateCourse(ctx context.Context, course *store.Course, subAccountID int64, alwaysCreate bool) (*canvasload.CourseResult, error) {
	if m.FindOrCreateCourseFunc != nil {
		return m.FindOrCreateCourseFunc(ctx, course, subAccountID, alwaysCreate)
	}
	return &canvasload.CourseResult{Course: one}, nil
}

func (m *MockLoader) EnsureEnrollment(ctx context.Context, userID, courseID int64, enrollmentType string) (canvas.Resource, error) {
	if m.EnsureEnrollmentFunc != nil {
		return m.EnsureEnrollmentFunc(ctx, userID, courseID, enrollmentType)
	}
	return one, nil
}

func (m *MockLoader) CreateDiscussion(ctx context.Context, userID, courseID int64, d domain.DiscussionDefinition) (canvasload.Outcome, error) {
	if m.CreateDiscussionFunc != nil {
		return m.CreateDiscussionFunc(ctx, userID, courseID, d)
	}
	return canvasload.Outcome{Resource: one}, nil
}

func (m *MockLoader) CreateAssignmentSubmission(ctx context.Context, userID, courseID int64, a domain.AssignmentDefinition) (canvasload.Outcome, error) {
	if m.CreateAssignmentSubmissionFunc != nil {
		return m.CreateAssignmentSubmissionFunc(ctx, userID, courseID, a)
	}
	return canvasload.Outcome{Resource: one}, nil
}

func (m *MockLoader) CreateQuiz(ctx context.Context, courseID int64, q domain.QuizDefinition) (canvas.Resource, error) {
	if m.CreateQuizFunc != nil {
		return m.CreateQuizFunc(ctx, courseID, q)
	}
	return one, nil
}

func (m *MockLoader) CreateConversation(ctx context.Context, userID, courseID int64, recipientIDs, subject, body string) ([]canvas.Resource, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, userID, courseID, recipientIDs, subject, body)
	}
	return []canvas.Resource{one}, nil
}

func (m *MockLoader) ViewPages(ctx context.Context, userID, courseID int64) ([]canvas.Resource, error) {
	if m.ViewPagesFunc != nil {
		return m.ViewPagesFunc(ctx, userID, courseID)
	}
	return nil, nil
}

func (m *MockLoader) AddLTITool(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (*canvasload.Match, error) {
	if m.AddLTIToolFunc != nil {
		return m.AddLTIToolFunc(ctx, p, courseID, subAccountID)
	}
	return &canvasload.Match{Resource: one}, nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := store.EncodeJSON(v)
	require.NoError(t, err)
	return b
}

func testLoad(t *testing.T, courses ...domain.CourseDefinition) *store.Load {
	t.Helper()
	load := &store.Load{
		ID:             uuid.New(),
		CanvasDomain:   "school.instructure.com",
		SubAccountName: "Demo",
		SetupWelcome:   true,
		Users: mustJSON(t, []domain.UserDefinition{
			{Name: "Ada", Email: "ada@example.com"},
			{Name: "Grace", Email: "grace@example.com"},
			{Name: "Broken", Email: "broken"},
		}),
		LTITools: mustJSON(t, []domain.LTIToolDefinition{{Key: "account-tool", Secret: "s", ConfigURL: "https://tool.example.com"}}),
	}
	for _, def := range courses {
		load.Courses = append(load.Courses, store.Course{ID: uuid.New(), Content: mustJSON(t, def), IsSelected: true})
	}
	return load
}

func TestRun(t *testing.T) {
	history := domain.CourseDefinition{
		CourseCode: "HIS-101",
		Name:       "History",
		Enrollments: []domain.EnrollmentDefinition{
			{User: "ada@example.com", Type: "teacher"},
			{User: "Grace@Example.com", Type: "student"},
			{User: "nobody@example.com", Type: "student"},
		},
		Discussions:   []domain.DiscussionDefinition{{Author: "grace@example.com", Title: "Welcome", Message: "hi"}},
		Submissions:   []domain.AssignmentDefinition{{Author: "grace@example.com", Name: "Essay", Type: "online_text_entry"}},
		Quizzes:       []domain.QuizDefinition{{Title: "Midterm"}},
		Conversations: []domain.ConversationDefinition{{Author: "ada@example.com", RecipientID: "99", Recipients: []string{"grace@example.com"}, Subject: "Hello"}},
		PageViews:     []string{"grace@example.com"},
		LTITools:      []domain.LTIToolDefinition{{Key: "course-tool", Secret: "s", ConfigURL: "https://tool.example.com"}},
	}
	biology := domain.CourseDefinition{CourseCode: "BIO-101", Name: "Biology"}

	userIDs := map[string]int64{"ada@example.com": 10, "grace@example.com": 11}
	var recipients string
	var tools []string
	mock := &MockLoader{
		FindOrCreateSubAccountFunc: func(ctx context.Context, name string) (*canvasload.Match, error) {
			return &canvasload.Match{Resource: canvas.Resource{"id": 6}, Existing: true}, nil
		},
		SetupWelcomeFunc: func(ctx context.Context, subAccountID int64) (bool, error) {
			assert.Equal(t, int64(6), subAccountID)
			return true, nil
		},
		FindOrCreateUserFunc: func(ctx context.Context, p domain.UserDefinition, subAccountID int64) (canvasload.UserResult, error) {
			id, ok := userIDs[p.Email]
			if !ok {
				return canvasload.UserResult{Err: &canvas.APIError{Status: 400, Message: "unique_id is invalid"}}, nil
			}
			return canvasload.UserResult{User: canvas.Resource{"id": id}}, nil
		},
		FindOrCreateCourseFunc: func(ctx context.Context, course *store.Course, subAccountID int64, alwaysCreate bool) (*canvasload.CourseResult, error) {
			if course.CourseCode() == "BIO-101" {
				return nil, &canvas.APIError{Status: 500, Message: "Internal Server Error"}
			}
			return &canvasload.CourseResult{Course: canvas.Resource{"id": 55}}, nil
		},
		CreateDiscussionFunc: func(ctx context.Context, userID, courseID int64, d domain.DiscussionDefinition) (canvasload.Outcome, error) {
			return canvasload.Outcome{Error: "Couldn't create discussion Welcome. Error: 401 unauthorized"}, nil
		},
		CreateConversationFunc: func(ctx context.Context, userID, courseID int64, recipientIDs, subject, body string) ([]canvas.Resource, error) {
			recipients = recipientIDs
			return []canvas.Resource{{"id": 8}}, nil
		},
		ViewPagesFunc: func(ctx context.Context, userID, courseID int64) ([]canvas.Resource, error) {
			return []canvas.Resource{{"url": "a"}, {"url": "b"}}, nil
		},
		AddLTIToolFunc: func(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (*canvasload.Match, error) {
			tools = append(tools, fmt.Sprintf("%s course=%d account=%d", p.Name, courseID, subAccountID))
			return &canvasload.Match{Resource: canvas.Resource{"id": 3}}, nil
		},
	}

	report, err := Run(context.Background(), testLoad(t, history, biology), mock)
	require.NoError(t, err)

	want := []Row{
		{Kind: KindSubAccount, Name: "Demo", CanvasID: 6, Existing: true},
		{Kind: KindWelcome, Name: domain.WelcomeCourseName},
		{Kind: KindUser, Name: "ada@example.com", CanvasID: 10},
		{Kind: KindUser, Name: "grace@example.com", CanvasID: 11},
		{Kind: KindUser, Name: "broken", Error: "400 unique_id is invalid"},
		{Kind: KindCourse, Course: "HIS-101", Name: "History", CanvasID: 55},
		{Kind: KindEnrollment, Course: "HIS-101", Name: "ada@example.com as teacher", CanvasID: 1},
		{Kind: KindEnrollment, Course: "HIS-101", Name: "Grace@Example.com as student", CanvasID: 1},
		{Kind: KindEnrollment, Course: "HIS-101", Name: "nobody@example.com as student", Error: "user nobody@example.com was not provisioned"},
		{Kind: KindDiscussion, Course: "HIS-101", Name: "Welcome", Error: "Couldn't create discussion Welcome. Error: 401 unauthorized"},
		{Kind: KindSubmission, Course: "HIS-101", Name: "Essay", CanvasID: 1},
		{Kind: KindQuiz, Course: "HIS-101", Name: "Midterm", CanvasID: 1},
		{Kind: KindConversation, Course: "HIS-101", Name: "Hello", CanvasID: 8},
		{Kind: KindPageView, Course: "HIS-101", Name: "grace@example.com (2 pages)", CanvasID: 11},
		{Kind: KindLTITool, Course: "HIS-101", Name: "course-tool", CanvasID: 3},
		{Kind: KindCourse, Course: "BIO-101", Name: "Biology", Error: "500 Internal Server Error"},
		{Kind: KindLTITool, Name: "account-tool", CanvasID: 3},
	}
	if diff := cmp.Diff(want, report.Rows); diff != "" {
		t.Errorf("Run() rows mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "99,11", recipients)
	assert.Equal(t, []string{"course-tool course=55 account=0", "account-tool course=0 account=6"}, tools)
	assert.Len(t, report.Failures(), 4)
	assert.Equal(t, 2, report.Counts()[KindUser])
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRunSkipsUnselectedCourses(t *testing.T) {
	load := testLoad(t, domain.CourseDefinition{CourseCode: "HIS-101", Name: "History"})
	load.Courses[0].IsSelected = false
	load.SubAccountName = ""
	load.SetupWelcome = false

	var courses int
	mock := &MockLoader{
		FindOrCreateCourseFunc: func(ctx context.Context, course *store.Course, subAccountID int64, alwaysCreate bool) (*canvasload.CourseResult, error) {
			courses++
			return &canvasload.CourseResult{Course: one}, nil
		},
		AddLTIToolFunc: func(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (*canvasload.Match, error) {
			t.Errorf("account tools need a sub-account")
			return nil, nil
		},
	}

	report, err := Run(context.Background(), load, mock)
	require.NoError(t, err)
	assert.Equal(t, 0, courses)
	assert.Empty(t, report.Failures())
}

func TestRunAbortsWithoutAuthentication(t *testing.T) {
	load := testLoad(t, domain.CourseDefinition{CourseCode: "HIS-101", Name: "History"})
	noAuth := fmt.Errorf("%w: no token", canvasload.ErrNoAuthentication)

	var userCalls int
	mock := &MockLoader{
		FindOrCreateSubAccountFunc: func(ctx context.Context, name string) (*canvasload.Match, error) {
			return nil, noAuth
		},
		FindOrCreateUserFunc: func(ctx context.Context, p domain.UserDefinition, subAccountID int64) (canvasload.UserResult, error) {
			userCalls++
			return canvasload.UserResult{}, nil
		},
	}

	report, err := Run(context.Background(), load, mock)
	require.Error(t, err)
	assert.True(t, errors.Is(err, canvasload.ErrNoAuthentication))
	assert.Equal(t, 0, userCalls)
	assert.NotNil(t, report)
}

func TestRunUnauthorizedSubAccountFallsBackToRoot(t *testing.T) {
	load := testLoad(t)
	load.SetupWelcome = false

	var accounts []int64
	mock := &MockLoader{
		FindOrCreateSubAccountFunc: func(ctx context.Context, name string) (*canvasload.Match, error) { return nil, nil },
		FindOrCreateUserFunc: func(ctx context.Context, p domain.UserDefinition, subAccountID int64) (canvasload.UserResult, error) {
			accounts = append(accounts, subAccountID)
			return canvasload.UserResult{User: one}, nil
		},
	}

	report, err := Run(context.Background(), load, mock)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0}, accounts)
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, KindSubAccount, report.Failures()[0].Kind)
}

func TestReportKinds(t *testing.T) {
	r := &Report{Rows: []Row{{Kind: KindUser}, {Kind: KindCourse}, {Kind: KindUser, Error: "x"}}}
	assert.Equal(t, []Kind{KindCourse, KindUser}, r.Kinds())
	assert.Equal(t, map[Kind]int{KindUser: 1, KindCourse: 1}, r.Counts())
}
