package canvasload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
	"canvas-load/internal/store"
)

// CourseResult is what FindOrCreateCourse provisioned.
type CourseResult struct {
	Course    canvas.Resource
	Migration canvas.Resource
	Existing  bool
}

// SISProfile fetches (once) the Canvas profile matching the load's SIS id.
func (l *Loader) SISProfile(ctx context.Context) (canvas.Resource, error) {
	if l.sisProfile != nil {
		return l.sisProfile, nil
	}
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := api.GetProfileBySISID(ctx, l.Load.SISID)
	if err != nil {
		return nil, err
	}
	l.sisProfile = profile
	return profile, nil
}

// CheckSISID reports whether the load's SIS id already belongs to a Canvas user.
func (l *Loader) CheckSISID(ctx context.Context) (bool, error) {
	_, err := l.SISProfile(ctx)
	if err != nil {
		if canvas.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SearchCourses lists the courses the token can manage. Admins see the
// (sub-)account catalog, optionally narrowed by searchTerm; everybody else
// sees their own courses where they teach or design.
func (l *Loader) SearchCourses(ctx context.Context, subAccountID int64, searchTerm string) (*canvas.List, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}

	admin, err := api.IsAccountAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get current courses: %w", err)
	}

	var found *canvas.List
	if admin {
		found, err = api.GetCoursesForAccount(ctx, subAccountID, searchTerm)
	} else {
		found, err = api.GetCourses(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get current courses: %w", err)
	}

	if err := l.collect(ctx, found); err != nil {
		return nil, fmt.Errorf("could not get current courses: %w", err)
	}

	if !admin {
		found.Filter(canManage)
	}
	return found, nil
}

func canManage(course canvas.Resource) bool {
	for _, e := range course.Resources("enrollments") {
		switch e.String("type") {
		case "teacher", "designer":
			return true
		}
	}
	return false
}

func sameCourseCode(code string) func(canvas.Resource) bool {
	return func(c canvas.Resource) bool { return c.String("course_code") == code }
}

// FindCourseByCourseCode matches against a course listing read once per Loader.
func (l *Loader) FindCourseByCourseCode(ctx context.Context, subAccountID int64, courseCode string) (canvas.Resource, bool, error) {
	if l.courseIndex == nil {
		found, err := l.SearchCourses(ctx, subAccountID, "")
		if err != nil {
			return nil, false, err
		}
		l.courseIndex = found
	}
	c, ok := l.courseIndex.Find(sameCourseCode(courseCode))
	return c, ok, nil
}

// SetupWelcome queues the "Welcome to Canvas" course on the load unless one
// already exists in Canvas. It reports whether the course was queued.
func (l *Loader) SetupWelcome(ctx context.Context, subAccountID int64) (bool, error) {
	found, err := l.SearchCourses(ctx, subAccountID, domain.WelcomeCourseName)
	if err != nil {
		return false, err
	}
	if _, ok := found.Find(func(c canvas.Resource) bool {
		return strings.Contains(c.String("name"), domain.WelcomeCourseName)
	}); ok {
		return false, nil
	}

	course, err := l.store.CreateCourse(ctx, l.Load.ID, domain.WelcomeCourse())
	if err != nil {
		return false, err
	}
	l.Load.Courses = append(l.Load.Courses, *course)
	l.log.Info("queued welcome course")
	return true, nil
}

// FindOrCreateSubAccount returns nil without error when the token may not
// manage sub-accounts.
func (l *Loader) FindOrCreateSubAccount(ctx context.Context, name string) (*Match, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}

	m, err := findOrCreate(ctx,
		func(ctx context.Context) (*canvas.List, error) {
			list, err := api.SubAccounts(ctx)
			if err != nil {
				return nil, err
			}
			return list, l.collect(ctx, list)
		},
		func(sa canvas.Resource) bool { return sa.String("name") == name },
		func(ctx context.Context) (canvas.Resource, error) { return api.CreateSubAccount(ctx, name) },
	)
	if err != nil {
		if canvas.IsUnauthorized(err) {
			l.log.WithField("sub_account", name).Warn("not authorized to manage sub-accounts")
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// FindOrCreateCourse provisions course under subAccountID (0 for the root
// account). An existing course with the same course code is returned as is
// unless alwaysCreate is set, in which case a copy is created under a
// timestamped SIS id.
func (l *Loader) FindOrCreateCourse(ctx context.Context, course *store.Course, subAccountID int64, alwaysCreate bool) (*CourseResult, error) {
	def, err := course.Parsed()
	if err != nil {
		return nil, err
	}
	entry := l.log.WithField("course_code", def.CourseCode)

	existingCourses, err := l.SearchCourses(ctx, subAccountID, "")
	if err != nil {
		return nil, err
	}
	existing, found := existingCourses.Find(sameCourseCode(def.CourseCode))
	if found && !alwaysCreate {
		return &CourseResult{Course: existing, Existing: true}, nil
	}

	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}

	params := coursePayload(def)
	if found {
		params.SISCourseID = l.stampSISID(params.SISCourseID)
	}
	if !def.IsWelcome() {
		params.Name = params.Name + " - " + l.Load.Suffix
	}

	created, err := api.CreateCourse(ctx, subAccountID, params)
	if err != nil {
		if !canvas.IsSISTaken(err) {
			return nil, err
		}
		params.SISCourseID = l.stampSISID(params.SISCourseID)
		entry.WithField("sis_course_id", params.SISCourseID).Warn("sis id taken, retrying")
		created, err = api.CreateCourse(ctx, subAccountID, params)
		if err != nil {
			return nil, err
		}
	}

	courseID := created.ID()
	if err := l.store.UpdateCourseRemoteIDs(ctx, course, courseID, created.Int("account_id")); err != nil {
		return nil, err
	}
	entry = entry.WithField("canvas_id", courseID)

	var migration canvas.Resource
	if def.Cartridge != "" {
		migration, err = api.MigrateContent(ctx, courseID, canvas.MigrationParams{
			MigrationType: canvas.CommonCartridgeImporter,
			Settings:      canvas.MigrationSettings{FileURL: def.Cartridge},
			DateShiftOptions: &canvas.DateShiftOptions{
				ShiftDates:   true,
				NewStartDate: l.now().Format(time.RFC3339),
			},
		})
		if err != nil {
			return nil, err
		}
	} else {
		entry.Info("no cartridge, skipping content import")
	}

	if _, err := api.UpdateCourse(ctx, courseID, map[string]any{"offer": true}); err != nil {
		return nil, err
	}

	entry.Info("course created")
	return &CourseResult{Course: created, Migration: migration, Existing: false}, nil
}

func coursePayload(def domain.CourseDefinition) canvas.CourseParams {
	return canvas.CourseParams{
		Name:              def.Name,
		CourseCode:        def.CourseCode,
		SISCourseID:       def.SISCourseID,
		StartAt:           def.StartAt,
		EndAt:             def.EndAt,
		PublicDescription: def.PublicDescription,
	}
}

// stampSISID makes a SIS id unique by appending the current time. Courses
// without a SIS id stay without one.
func (l *Loader) stampSISID(sisID string) string {
	if sisID == "" {
		return ""
	}
	return fmt.Sprintf("%s_%s", sisID, l.now().Format(time.RFC3339))
}

// CheckProgress looks up the progress of a content migration once; callers poll.
func (l *Loader) CheckProgress(ctx context.Context, migration canvas.Resource) (canvas.Resource, error) {
	return l.CheckProgressURL(ctx, migration.String("progress_url"))
}

func (l *Loader) CheckProgressURL(ctx context.Context, progressURL string) (canvas.Resource, error) {
	progressURL = strings.TrimRight(strings.TrimSpace(progressURL), "/")
	if progressURL == "" {
		return nil, fmt.Errorf("canvasload: migration has no progress_url")
	}
	parts := strings.Split(progressURL, "/")
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	return api.GetProgress(ctx, parts[len(parts)-1])
}
