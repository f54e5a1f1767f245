// Package sync runs a load end to end. One failing item is recorded in the
// report and the run moves on; only a missing token or a canceled context
// stops it.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"canvas-load/internal/canvasload"
	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
	"canvas-load/internal/store"
)

// Loader is the orchestration a run drives. *canvasload.Loader implements it.
type Loader interface {
	FindOrCreateSubAccount(ctx context.Context, name string) (*canvasload.Match, error)
	SetupWelcome(ctx context.Context, subAccountID int64) (bool, error)
	FindOrCreateUser(ctx context.Context, p domain.UserDefinition, subAccountID int64) (canvasload.UserResult, error)
	FindOrCreateCourse(ctx context.Context, course *store.Course, subAccountID int64, alwaysCreate bool) (*canvasload.CourseResult, error)
	EnsureEnrollment(ctx context.Context, userID, courseID int64, enrollmentType string) (canvas.Resource, error)
	CreateDiscussion(ctx context.Context, userID, courseID int64, d domain.DiscussionDefinition) (canvasload.Outcome, error)
	CreateAssignmentSubmission(ctx context.Context, userID, courseID int64, a domain.AssignmentDefinition) (canvasload.Outcome, error)
	CreateQuiz(ctx context.Context, courseID int64, q domain.QuizDefinition) (canvas.Resource, error)
	CreateConversation(ctx context.Context, userID, courseID int64, recipientIDs, subject, body string) ([]canvas.Resource, error)
	ViewPages(ctx context.Context, userID, courseID int64) ([]canvas.Resource, error)
	AddLTITool(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (*canvasload.Match, error)
}

// Run provisions load through l: sub-account, welcome course, users, then
// every selected course with its activity, then account level LTI tools.
// The report is returned even when the run is aborted.
func Run(ctx context.Context, load *store.Load, l Loader) (*Report, error) {
	r := &runner{
		load:   load,
		loader: l,
		users:  map[string]int64{},
		report: &Report{LoadID: load.ID.String(), Domain: load.CanvasDomain, StartedAt: time.Now()},
		log:    log.WithField("load_id", load.ID.String()),
	}
	err := r.run(ctx)
	r.report.FinishedAt = time.Now()

	entry := r.log.WithFields(log.Fields{
		"rows":     len(r.report.Rows),
		"failures": len(r.report.Failures()),
		"duration": r.report.FinishedAt.Sub(r.report.StartedAt).String(),
	})
	if err != nil {
		entry.WithError(err).Error("load aborted")
		return r.report, err
	}
	entry.Info("load finished")
	return r.report, nil
}

type runner struct {
	load         *store.Load
	loader       Loader
	subAccountID int64
	users        map[string]int64 // lowercased email -> canvas user id
	report       *Report
	log          *log.Entry
}

// fatal reports errors no later item could get past.
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, canvasload.ErrNoAuthentication) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

func (r *runner) run(ctx context.Context) error {
	if name := strings.TrimSpace(r.load.SubAccountName); name != "" {
		m, err := r.loader.FindOrCreateSubAccount(ctx, name)
		switch {
		case err != nil:
			if fatal(ctx, err) {
				return err
			}
			r.report.fail(KindSubAccount, "", name, err)
		case m == nil:
			r.report.fail(KindSubAccount, "", name, errors.New("not authorized to manage sub-accounts, using the root account"))
		default:
			r.subAccountID = m.Resource.ID()
			r.report.add(Row{Kind: KindSubAccount, Name: name, CanvasID: r.subAccountID, Existing: m.Existing})
		}
	}

	if r.load.SetupWelcome {
		queued, err := r.loader.SetupWelcome(ctx, r.subAccountID)
		if err != nil {
			if fatal(ctx, err) {
				return err
			}
			r.report.fail(KindWelcome, "", domain.WelcomeCourseName, err)
		} else {
			r.report.add(Row{Kind: KindWelcome, Name: domain.WelcomeCourseName, Existing: !queued})
		}
	}

	if err := r.provisionUsers(ctx); err != nil {
		return err
	}

	for i := range r.load.Courses {
		course := &r.load.Courses[i]
		if !course.IsSelected {
			continue
		}
		if err := r.provisionCourse(ctx, course); err != nil {
			return err
		}
	}

	return r.provisionAccountTools(ctx)
}

func (r *runner) provisionUsers(ctx context.Context) error {
	defs, err := r.load.UserDefinitions()
	if err != nil {
		r.report.fail(KindUser, "", "users", err)
		return nil
	}
	for _, def := range defs {
		res, err := r.loader.FindOrCreateUser(ctx, def, r.subAccountID)
		if err != nil {
			if fatal(ctx, err) {
				return err
			}
			r.report.fail(KindUser, "", def.Email, err)
			continue
		}
		if res.Err != nil {
			r.report.fail(KindUser, "", def.Email, res.Err)
			continue
		}
		id := res.User.ID()
		r.users[normEmail(def.Email)] = id
		r.report.add(Row{Kind: KindUser, Name: def.Email, CanvasID: id, Existing: res.Existing})
	}
	return nil
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *runner) userID(email string) (int64, error) {
	id, ok := r.users[normEmail(email)]
	if !ok {
		return 0, fmt.Errorf("user %s was not provisioned", email)
	}
	return id, nil
}

func (r *runner) provisionCourse(ctx context.Context, course *store.Course) error {
	def, err := course.Parsed()
	if err != nil {
		r.report.fail(KindCourse, course.CourseCode(), course.ID.String(), err)
		return nil
	}
	code := def.CourseCode
	entry := r.log.WithField("course_code", code)

	res, err := r.loader.FindOrCreateCourse(ctx, course, r.subAccountID, r.load.AlwaysCreateCourses)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		entry.WithError(err).Warn("course failed")
		r.report.fail(KindCourse, code, def.Name, err)
		return nil
	}
	courseID := res.Course.ID()
	r.report.add(Row{Kind: KindCourse, Course: code, Name: def.Name, CanvasID: courseID, Existing: res.Existing})
	entry.WithFields(log.Fields{"canvas_id": courseID, "existing": res.Existing}).Info("course ready")

	steps := []func(context.Context, string, int64, domain.CourseDefinition) error{
		r.enroll,
		r.discuss,
		r.submit,
		r.quizzes,
		r.converse,
		r.viewPages,
		r.courseTools,
	}
	for _, step := range steps {
		if err := step(ctx, code, courseID, def); err != nil {
			return err
		}
	}
	return nil
}

// record adds a row for a single activity call, reporting whether the error
// must abort the run.
func (r *runner) record(ctx context.Context, kind Kind, course, name string, resource canvas.Resource, err error) error {
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		r.report.fail(kind, course, name, err)
		return nil
	}
	r.report.add(Row{Kind: kind, Course: course, Name: name, CanvasID: resource.ID()})
	return nil
}

func (r *runner) recordOutcome(ctx context.Context, kind Kind, course, name string, out canvasload.Outcome, err error) error {
	if err == nil && out.Failed() {
		r.report.add(Row{Kind: kind, Course: course, Name: name, Error: out.Error})
		return nil
	}
	return r.record(ctx, kind, course, name, out.Resource, err)
}

func (r *runner) enroll(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, e := range def.Enrollments {
		name := e.User + " as " + e.Type
		userID, err := r.userID(e.User)
		if err != nil {
			r.report.fail(KindEnrollment, code, name, err)
			continue
		}
		enrollment, err := r.loader.EnsureEnrollment(ctx, userID, courseID, e.Type)
		if err := r.record(ctx, KindEnrollment, code, name, enrollment, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) discuss(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, d := range def.Discussions {
		userID, err := r.userID(d.Author)
		if err != nil {
			r.report.fail(KindDiscussion, code, d.Title, err)
			continue
		}
		out, err := r.loader.CreateDiscussion(ctx, userID, courseID, d)
		if err := r.recordOutcome(ctx, KindDiscussion, code, d.Title, out, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) submit(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, a := range def.Submissions {
		userID, err := r.userID(a.Author)
		if err != nil {
			r.report.fail(KindSubmission, code, a.Name, err)
			continue
		}
		out, err := r.loader.CreateAssignmentSubmission(ctx, userID, courseID, a)
		if err := r.recordOutcome(ctx, KindSubmission, code, a.Name, out, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) quizzes(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, q := range def.Quizzes {
		quiz, err := r.loader.CreateQuiz(ctx, courseID, q)
		if err := r.record(ctx, KindQuiz, code, q.Title, quiz, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) converse(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, c := range def.Conversations {
		userID, err := r.userID(c.Author)
		if err != nil {
			r.report.fail(KindConversation, code, c.Subject, err)
			continue
		}
		recipients, err := r.recipientIDs(c)
		if err != nil {
			r.report.fail(KindConversation, code, c.Subject, err)
			continue
		}
		convos, err := r.loader.CreateConversation(ctx, userID, courseID, recipients, c.Subject, c.Body)
		var first canvas.Resource
		if len(convos) > 0 {
			first = convos[0]
		}
		if err := r.record(ctx, KindConversation, code, c.Subject, first, err); err != nil {
			return err
		}
	}
	return nil
}

// recipientIDs merges explicit Canvas ids with the ids of recipients given by email.
func (r *runner) recipientIDs(c domain.ConversationDefinition) (string, error) {
	ids := []string{}
	if s := strings.TrimSpace(c.RecipientID); s != "" {
		ids = append(ids, s)
	}
	for _, email := range c.Recipients {
		id, err := r.userID(email)
		if err != nil {
			return "", err
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	if len(ids) == 0 {
		return "", errors.New("conversation has no recipients")
	}
	return strings.Join(ids, ","), nil
}

func (r *runner) viewPages(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, email := range def.PageViews {
		userID, err := r.userID(email)
		if err != nil {
			r.report.fail(KindPageView, code, email, err)
			continue
		}
		viewed, err := r.loader.ViewPages(ctx, userID, courseID)
		if err != nil {
			if fatal(ctx, err) {
				return err
			}
			r.report.fail(KindPageView, code, email, err)
			continue
		}
		r.report.add(Row{Kind: KindPageView, Course: code, Name: fmt.Sprintf("%s (%d pages)", email, len(viewed)), CanvasID: userID})
	}
	return nil
}

func (r *runner) courseTools(ctx context.Context, code string, courseID int64, def domain.CourseDefinition) error {
	for _, t := range def.LTITools {
		m, err := r.loader.AddLTITool(ctx, canvasload.LTIToolParams(t.Key, t.Secret, t.ConfigURL), courseID, 0)
		if err := r.recordTool(ctx, code, t.Key, m, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) provisionAccountTools(ctx context.Context) error {
	tools, err := r.load.AccountLTITools()
	if err != nil {
		r.report.fail(KindLTITool, "", "lti_tools", err)
		return nil
	}
	if len(tools) == 0 {
		return nil
	}
	if r.subAccountID == 0 {
		r.log.WithField("tools", len(tools)).Warn("account LTI tools need a sub-account, skipping")
		return nil
	}
	for _, t := range tools {
		m, err := r.loader.AddLTITool(ctx, canvasload.LTIToolParams(t.Key, t.Secret, t.ConfigURL), 0, r.subAccountID)
		if err := r.recordTool(ctx, "", t.Key, m, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) recordTool(ctx context.Context, code, name string, m *canvasload.Match, err error) error {
	if err != nil {
		return r.record(ctx, KindLTITool, code, name, nil, err)
	}
	r.report.add(Row{Kind: KindLTITool, Course: code, Name: name, CanvasID: m.Resource.ID(), Existing: m.Existing})
	return nil
}
