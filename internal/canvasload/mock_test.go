package canvasload

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
	"canvas-load/internal/store"
)

// MockAPI is a Canvas API whose behavior is set per test. Calling a method
// without a func set fails with an error naming the method.
type MockAPI struct {
	GetProfileBySISIDFunc          func(ctx context.Context, sisID string) (canvas.Resource, error)
	IsAccountAdminFunc             func(ctx context.Context) (bool, error)
	GetCoursesForAccountFunc       func(ctx context.Context, accountID int64, searchTerm string) (*canvas.List, error)
	GetCoursesFunc                 func(ctx context.Context) (*canvas.List, error)
	CreateCourseFunc               func(ctx context.Context, accountID int64, course canvas.CourseParams) (canvas.Resource, error)
	MigrateContentFunc             func(ctx context.Context, courseID int64, m canvas.MigrationParams) (canvas.Resource, error)
	UpdateCourseFunc               func(ctx context.Context, courseID int64, params map[string]any) (canvas.Resource, error)
	SubAccountsFunc                func(ctx context.Context) (*canvas.List, error)
	CreateSubAccountFunc           func(ctx context.Context, name string) (canvas.Resource, error)
	ListUsersFunc                  func(ctx context.Context) (*canvas.List, error)
	CreateUserFunc                 func(ctx context.Context, accountID int64, u canvas.UserParams) (canvas.Resource, error)
	UpdateUserFunc                 func(ctx context.Context, userID int64, fields map[string]any) (canvas.Resource, error)
	DiscussionTopicsFunc           func(ctx context.Context, courseID int64) (*canvas.List, error)
	CreateDiscussionFunc           func(ctx context.Context, userID, courseID int64, title, message string) (canvas.Resource, error)
	CreateDiscussionEntryFunc      func(ctx context.Context, userID, courseID, topicID int64, message string) (canvas.Resource, error)
	AssignmentsFunc                func(ctx context.Context, courseID int64) (*canvas.List, error)
	CreateAssignmentSubmissionFunc func(ctx context.Context, userID, courseID, assignmentID int64, s canvas.SubmissionParams) (canvas.Resource, error)
	CreateQuizFunc                 func(ctx context.Context, courseID int64, title, quizType string) (canvas.Resource, error)
	CreateConversationFunc         func(ctx context.Context, userID, courseID int64, recipients []string, subject, body string) ([]canvas.Resource, error)
	EnrollUserFunc                 func(ctx context.Context, courseID int64, e canvas.EnrollmentParams) (canvas.Resource, error)
	GetFrontPageFunc               func(ctx context.Context, userID, courseID int64) (canvas.Resource, error)
	GetPagesFunc                   func(ctx context.Context, userID, courseID int64) (*canvas.List, error)
	GetPageFunc                    func(ctx context.Context, userID, courseID int64, pageURL string) (canvas.Resource, error)
	GetProgressFunc                func(ctx context.Context, progressID string) (canvas.Resource, error)
	AccountExternalToolsFunc       func(ctx context.Context, accountID int64) (*canvas.List, error)
	CourseExternalToolsFunc        func(ctx context.Context, courseID int64) (*canvas.List, error)
	CreateAccountExternalToolFunc  func(ctx context.Context, accountID int64, p canvas.ExternalToolParams) (canvas.Resource, error)
	CreateCourseExternalToolFunc   func(ctx context.Context, courseID int64, p canvas.ExternalToolParams) (canvas.Resource, error)
}

func unexpected(method string) error {
	return fmt.Errorf("unexpected call to %s", method)
}

func (m *MockAPI) GetProfileBySISID(ctx context.Context, sisID string) (canvas.Resource, error) {
	if m.GetProfileBySISIDFunc == nil {
		return nil, unexpected("GetProfileBySISID")
	}
	return m.GetProfileBySISIDFunc(ctx, sisID)
}

func (m *MockAPI) IsAccountAdmin(ctx context.Context) (bool, error) {
	if m.IsAccountAdminFunc == nil {
		return true, nil
	}
	return m.IsAccountAdminFunc(ctx)
}

func (m *MockAPI) GetCoursesForAccount(ctx context.Context, accountID int64, searchTerm string) (*canvas.List, error) {
	if m.GetCoursesForAccountFunc == nil {
		return nil, unexpected("GetCoursesForAccount")
	}
	return m.GetCoursesForAccountFunc(ctx, accountID, searchTerm)
}

func (m *MockAPI) GetCourses(ctx context.Context) (*canvas.List, error) {
	if m.GetCoursesFunc == nil {
		return nil, unexpected("GetCourses")
	}
	return m.GetCoursesFunc(ctx)
}

func (m *MockAPI) CreateCourse(ctx context.Context, accountID int64, course canvas.CourseParams) (canvas.Resource, error) {
	if m.CreateCourseFunc == nil {
		return nil, unexpected("CreateCourse")
	}
	return m.CreateCourseFunc(ctx, accountID, course)
}

func (m *MockAPI) MigrateContent(ctx context.Context, courseID int64, mp canvas.MigrationParams) (canvas.Resource, error) {
	if m.MigrateContentFunc == nil {
		return nil, unexpected("MigrateContent")
	}
	return m.MigrateContentFunc(ctx, courseID, mp)
}

func (m *MockAPI) UpdateCourse(ctx context.Context, courseID int64, params map[string]any) (canvas.Resource, error) {
	if m.UpdateCourseFunc == nil {
		return nil, unexpected("UpdateCourse")
	}
	return m.UpdateCourseFunc(ctx, courseID, params)
}

func (m *MockAPI) SubAccounts(ctx context.Context) (*canvas.List, error) {
	if m.SubAccountsFunc == nil {
		return nil, unexpected("SubAccounts")
	}
	return m.SubAccountsFunc(ctx)
}

func (m *MockAPI) CreateSubAccount(ctx context.Context, name string) (canvas.Resource, error) {
	if m.CreateSubAccountFunc == nil {
		return nil, unexpected("CreateSubAccount")
	}
	return m.CreateSubAccountFunc(ctx, name)
}

func (m *MockAPI) ListUsers(ctx context.Context) (*canvas.List, error) {
	if m.ListUsersFunc == nil {
		return nil, unexpected("ListUsers")
	}
	return m.ListUsersFunc(ctx)
}

func (m *MockAPI) CreateUser(ctx context.Context, accountID int64, u canvas.UserParams) (canvas.Resource, error) {
	if m.CreateUserFunc == nil {
		return nil, unexpected("CreateUser")
	}
	return m.CreateUserFunc(ctx, accountID, u)
}

func (m *MockAPI) UpdateUser(ctx context.Context, userID int64, fields map[string]any) (canvas.Resource, error) {
	if m.UpdateUserFunc == nil {
		return nil, unexpected("UpdateUser")
	}
	return m.UpdateUserFunc(ctx, userID, fields)
}

func (m *MockAPI) DiscussionTopics(ctx context.Context, courseID int64) (*canvas.List, error) {
	if m.DiscussionTopicsFunc == nil {
		return nil, unexpected("DiscussionTopics")
	}
	return m.DiscussionTopicsFunc(ctx, courseID)
}

func (m *MockAPI) CreateDiscussion(ctx context.Context, userID, courseID int64, title, message string) (canvas.Resource, error) {
	if m.CreateDiscussionFunc == nil {
		return nil, unexpected("CreateDiscussion")
	}
	return m.CreateDiscussionFunc(ctx, userID, courseID, title, message)
}

func (m *MockAPI) CreateDiscussionEntry(ctx context.Context, userID, courseID, topicID int64, message string) (canvas.Resource, error) {
	if m.CreateDiscussionEntryFunc == nil {
		return nil, unexpected("CreateDiscussionEntry")
	}
	return m.CreateDiscussionEntryFunc(ctx, userID, courseID, topicID, message)
}

func (m *MockAPI) Assignments(ctx context.Context, courseID int64) (*canvas.List, error) {
	if m.AssignmentsFunc == nil {
		return nil, unexpected("Assignments")
	}
	return m.AssignmentsFunc(ctx, courseID)
}

func (m *MockAPI) CreateAssignmentSubmission(ctx context.Context, userID, courseID, assignmentID int64, s canvas.SubmissionParams) (canvas.Resource, error) {
	if m.CreateAssignmentSubmissionFunc == nil {
		return nil, unexpected("CreateAssignmentSubmission")
	}
	return m.CreateAssignmentSubmissionFunc(ctx, userID, courseID, assignmentID, s)
}

func (m *MockAPI) CreateQuiz(ctx context.Context, courseID int64, title, quizType string) (canvas.Resource, error) {
	if m.CreateQuizFunc == nil {
		return nil, unexpected("CreateQuiz")
	}
	return m.CreateQuizFunc(ctx, courseID, title, quizType)
}

func (m *MockAPI) CreateConversation(ctx context.Context, userID, courseID int64, recipients []string, subject, body string) ([]canvas.Resource, error) {
	if m.CreateConversationFunc == nil {
		return nil, unexpected("CreateConversation")
	}
	return m.CreateConversationFunc(ctx, userID, courseID, recipients, subject, body)
}

func (m *MockAPI) EnrollUser(ctx context.Context, courseID int64, e canvas.EnrollmentParams) (canvas.Resource, error) {
	if m.EnrollUserFunc == nil {
		return nil, unexpected("EnrollUser")
	}
	return m.EnrollUserFunc(ctx, courseID, e)
}

func (m *MockAPI) GetFrontPage(ctx context.Context, userID, courseID int64) (canvas.Resource, error) {
	if m.GetFrontPageFunc == nil {
		return nil, unexpected("GetFrontPage")
	}
	return m.GetFrontPageFunc(ctx, userID, courseID)
}

func (m *MockAPI) GetPages(ctx context.Context, userID, courseID int64) (*canvas.List, error) {
	if m.GetPagesFunc == nil {
		return nil, unexpected("GetPages")
	}
	return m.GetPagesFunc(ctx, userID, courseID)
}

func (m *MockAPI) GetPage(ctx context.Context, userID, courseID int64, pageURL string) (canvas.Resource, error) {
	if m.GetPageFunc == nil {
		return nil, unexpected("GetPage")
	}
	return m.GetPageFunc(ctx, userID, courseID, pageURL)
}

func (m *MockAPI) GetProgress(ctx context.Context, progressID string) (canvas.Resource, error) {
	if m.GetProgressFunc == nil {
		return nil, unexpected("GetProgress")
	}
	return m.GetProgressFunc(ctx, progressID)
}

func (m *MockAPI) AccountExternalTools(ctx context.Context, accountID int64) (*canvas.List, error) {
	if m.AccountExternalToolsFunc == nil {
		return nil, unexpected("AccountExternalTools")
	}
	return m.AccountExternalToolsFunc(ctx, accountID)
}

func (m *MockAPI) CourseExternalTools(ctx context.Context, courseID int64) (*canvas.List, error) {
	if m.CourseExternalToolsFunc == nil {
		return nil, unexpected("CourseExternalTools")
	}
	return m.CourseExternalToolsFunc(ctx, courseID)
}

func (m *MockAPI) CreateAccountExternalTool(ctx context.Context, accountID int64, p canvas.ExternalToolParams) (canvas.Resource, error) {
	if m.CreateAccountExternalToolFunc == nil {
		return nil, unexpected("CreateAccountExternalTool")
	}
	return m.CreateAccountExternalToolFunc(ctx, accountID, p)
}

func (m *MockAPI) CreateCourseExternalTool(ctx context.Context, courseID int64, p canvas.ExternalToolParams) (canvas.Resource, error) {
	if m.CreateCourseExternalToolFunc == nil {
		return nil, unexpected("CreateCourseExternalTool")
	}
	return m.CreateCourseExternalToolFunc(ctx, courseID, p)
}

// MockStore holds one token and records the remote ids written back.
type MockStore struct {
	Token          string
	CreatedCourses []domain.CourseDefinition
	RemoteIDs      map[uuid.UUID][2]int64
}

func (s *MockStore) FindAuthentication(ctx context.Context, userID uuid.UUID, providerURL string) (*store.Authentication, error) {
	if s.Token == "" {
		return nil, fmt.Errorf("authentication for %s: %w", providerURL, store.ErrNotFound)
	}
	return &store.Authentication{UserID: userID, ProviderURL: providerURL, Token: s.Token}, nil
}

func (s *MockStore) CreateCourse(ctx context.Context, loadID uuid.UUID, def domain.CourseDefinition) (*store.Course, error) {
	s.CreatedCourses = append(s.CreatedCourses, def)
	content, err := store.EncodeJSON(def)
	if err != nil {
		return nil, err
	}
	return &store.Course{ID: uuid.New(), LoadID: loadID, Content: content, IsSelected: true}, nil
}

func (s *MockStore) UpdateCourseRemoteIDs(ctx context.Context, c *store.Course, canvasCourseID, canvasAccountID int64) error {
	if s.RemoteIDs == nil {
		s.RemoteIDs = map[uuid.UUID][2]int64{}
	}
	s.RemoteIDs[c.ID] = [2]int64{canvasCourseID, canvasAccountID}
	c.CanvasCourseID = &canvasCourseID
	c.CanvasAccountID = &canvasAccountID
	return nil
}
