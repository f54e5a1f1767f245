// Package canvasload provisions the contents of one Load into Canvas:
// sub-accounts, courses, users, enrollments and sample activity.
//
// Every operation follows the same shape: list what already exists (bounded),
// match by a natural key, and only create on a miss. A Loader memoizes the
// listings it reads and never invalidates them, so build a fresh one per run.
package canvasload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
	"canvas-load/internal/store"
)

// DefaultSearchLimit bounds how many items a listing is paged up to.
const DefaultSearchLimit = 500

// ErrNoAuthentication means the load owner has no token for the load's domain.
var ErrNoAuthentication = errors.New("canvasload: no canvas authentication")

// API is the subset of the Canvas client the loader drives.
type API interface {
	GetProfileBySISID(ctx context.Context, sisID string) (canvas.Resource, error)
	IsAccountAdmin(ctx context.Context) (bool, error)
	GetCoursesForAccount(ctx context.Context, accountID int64, searchTerm string) (*canvas.List, error)
	GetCourses(ctx context.Context) (*canvas.List, error)
	CreateCourse(ctx context.Context, accountID int64, course canvas.CourseParams) (canvas.Resource, error)
	MigrateContent(ctx context.Context, courseID int64, m canvas.MigrationParams) (canvas.Resource, error)
	UpdateCourse(ctx context.Context, courseID int64, params map[string]any) (canvas.Resource, error)
	SubAccounts(ctx context.Context) (*canvas.List, error)
	CreateSubAccount(ctx context.Context, name string) (canvas.Resource, error)
	ListUsers(ctx context.Context) (*canvas.List, error)
	CreateUser(ctx context.Context, accountID int64, u canvas.UserParams) (canvas.Resource, error)
	UpdateUser(ctx context.Context, userID int64, fields map[string]any) (canvas.Resource, error)
	DiscussionTopics(ctx context.Context, courseID int64) (*canvas.List, error)
	CreateDiscussion(ctx context.Context, userID, courseID int64, title, message string) (canvas.Resource, error)
	CreateDiscussionEntry(ctx context.Context, userID, courseID, topicID int64, message string) (canvas.Resource, error)
	Assignments(ctx context.Context, courseID int64) (*canvas.List, error)
	CreateAssignmentSubmission(ctx context.Context, userID, courseID, assignmentID int64, s canvas.SubmissionParams) (canvas.Resource, error)
	CreateQuiz(ctx context.Context, courseID int64, title, quizType string) (canvas.Resource, error)
	CreateConversation(ctx context.Context, userID, courseID int64, recipients []string, subject, body string) ([]canvas.Resource, error)
	EnrollUser(ctx context.Context, courseID int64, e canvas.EnrollmentParams) (canvas.Resource, error)
	GetFrontPage(ctx context.Context, userID, courseID int64) (canvas.Resource, error)
	GetPages(ctx context.Context, userID, courseID int64) (*canvas.List, error)
	GetPage(ctx context.Context, userID, courseID int64, pageURL string) (canvas.Resource, error)
	GetProgress(ctx context.Context, progressID string) (canvas.Resource, error)
	AccountExternalTools(ctx context.Context, accountID int64) (*canvas.List, error)
	CourseExternalTools(ctx context.Context, courseID int64) (*canvas.List, error)
	CreateAccountExternalTool(ctx context.Context, accountID int64, p canvas.ExternalToolParams) (canvas.Resource, error)
	CreateCourseExternalTool(ctx context.Context, courseID int64, p canvas.ExternalToolParams) (canvas.Resource, error)
}

// Store is the persistence the loader reads tokens from and writes course ids to.
type Store interface {
	FindAuthentication(ctx context.Context, userID uuid.UUID, providerURL string) (*store.Authentication, error)
	CreateCourse(ctx context.Context, loadID uuid.UUID, def domain.CourseDefinition) (*store.Course, error)
	UpdateCourseRemoteIDs(ctx context.Context, c *store.Course, canvasCourseID, canvasAccountID int64) error
}

// ClientFactory builds an API client for a domain and access token.
type ClientFactory func(domain, token string) API

func defaultClientFactory(domain, token string) API {
	return canvas.New(domain, token)
}

// Loader orchestrates the Canvas calls for one load.
type Loader struct {
	Load *store.Load

	store       Store
	newClient   ClientFactory
	searchLimit int
	now         func() time.Time
	log         *log.Entry

	client       API
	sisProfile   canvas.Resource
	courseIndex  *canvas.List
	users        *canvas.List
	discussions  map[int64]*canvas.List
	assignments  map[int64]*canvas.List
	accountTools map[int64]*canvas.List
}

type Option func(*Loader)

func WithClientFactory(f ClientFactory) Option {
	return func(l *Loader) { l.newClient = f }
}

func WithSearchLimit(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.searchLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func New(s Store, load *store.Load, opts ...Option) *Loader {
	l := &Loader{
		Load:         load,
		store:        s,
		newClient:    defaultClientFactory,
		searchLimit:  DefaultSearchLimit,
		now:          time.Now,
		discussions:  map[int64]*canvas.List{},
		assignments:  map[int64]*canvas.List{},
		accountTools: map[int64]*canvas.List{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = log.WithFields(log.Fields{
		"load_id": load.ID.String(),
		"domain":  load.CanvasDomain,
	})
	return l
}

// Canvas resolves the API client for the load: the owner's token stored for
// the load's Canvas domain. The client is cached for the Loader's lifetime.
func (l *Loader) Canvas(ctx context.Context) (API, error) {
	if l.client != nil {
		return l.client, nil
	}
	auth, err := l.store.FindAuthentication(ctx, l.Load.UserID, l.Load.CanvasDomain)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s has no token for %s", ErrNoAuthentication, l.Load.UserID, l.Load.CanvasDomain)
		}
		return nil, err
	}
	l.client = l.newClient(l.Load.CanvasDomain, auth.Token)
	return l.client, nil
}

// Match is the tagged result of a find-or-create: the resource and whether it
// was already there.
type Match struct {
	Resource canvas.Resource
	Existing bool
}

// findOrCreate searches, returns the first match, or creates on a miss.
func findOrCreate(
	ctx context.Context,
	search func(context.Context) (*canvas.List, error),
	match func(canvas.Resource) bool,
	create func(context.Context) (canvas.Resource, error),
) (*Match, error) {
	found, err := search(ctx)
	if err != nil {
		return nil, err
	}
	if r, ok := found.Find(match); ok {
		return &Match{Resource: r, Existing: true}, nil
	}
	r, err := create(ctx)
	if err != nil {
		return nil, err
	}
	found.Append(r)
	return &Match{Resource: r, Existing: false}, nil
}

// Outcome is returned by operations that report API failures as a value so
// a batch can continue past them.
type Outcome struct {
	Resource canvas.Resource
	Error    string
}

func (o Outcome) Failed() bool { return o.Error != "" }

// softFail turns an API error into an Outcome; any other error propagates.
func softFail(err error, format string, args ...any) (Outcome, error) {
	if _, ok := canvas.AsAPIError(err); ok {
		return Outcome{Error: fmt.Sprintf("%s. Error: %v", fmt.Sprintf(format, args...), err)}, nil
	}
	return Outcome{}, err
}

func (l *Loader) collect(ctx context.Context, list *canvas.List) error {
	return list.Collect(ctx, l.searchLimit)
}
