package mappers

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"canvas-load/internal/domain"
	"canvas-load/internal/store"
)

// LoadFile is the YAML document describing a load.
type LoadFile struct {
	Owner               Owner                      `yaml:"owner"`
	CanvasDomain        string                     `yaml:"canvas_domain"`
	SISID               string                     `yaml:"sis_id"`
	Suffix              *string                    `yaml:"suffix"`
	SubAccountName      string                     `yaml:"sub_account_name"`
	AlwaysCreateCourses bool                       `yaml:"always_create_courses"`
	SetupWelcome        bool                       `yaml:"setup_welcome"`
	Users               []domain.UserDefinition    `yaml:"users"`
	LTITools            []domain.LTIToolDefinition `yaml:"lti_tools"`
	Courses             []CourseEntry              `yaml:"courses"`
}

// Owner is the application user the load runs for. Token, when set, is
// stored as their Canvas authentication for CanvasDomain.
type Owner struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Token string `yaml:"token"`
}

// CourseEntry is a course definition plus whether it takes part in the load.
// Selected defaults to true.
type CourseEntry struct {
	Selected                *bool `yaml:"selected"`
	domain.CourseDefinition `yaml:",inline"`
}

func (c CourseEntry) IsSelected() bool {
	return c.Selected == nil || *c.Selected
}

// ParseLoadFile decodes and validates a load document. Unknown keys are
// rejected so typos do not silently drop content.
func ParseLoadFile(r io.Reader) (*LoadFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f LoadFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("load file: empty document")
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	f.CanvasDomain = NormalizeDomain(f.CanvasDomain)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// NormalizeDomain strips scheme, path and trailing slashes from a Canvas host.
func NormalizeDomain(d string) string {
	d = strings.TrimSpace(strings.ToLower(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	return d
}

func (f *LoadFile) Validate() error {
	var errs []error
	if f.CanvasDomain == "" {
		errs = append(errs, errors.New("canvas_domain is required"))
	}
	if strings.TrimSpace(f.Owner.Email) == "" {
		errs = append(errs, errors.New("owner.email is required"))
	}

	emails := map[string]bool{}
	for i, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		switch {
		case email == "":
			errs = append(errs, fmt.Errorf("users[%d]: missing email", i))
		case emails[email]:
			errs = append(errs, fmt.Errorf("users[%d]: duplicate email %s", i, email))
		}
		emails[email] = true
	}

	for i, t := range f.LTITools {
		if t.Key == "" || t.ConfigURL == "" {
			errs = append(errs, fmt.Errorf("lti_tools[%d]: key and config_url are required", i))
		}
	}

	codes := map[string]bool{}
	for i, c := range f.Courses {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("courses[%d]: %w", i, err))
			continue
		}
		if codes[c.CourseCode] {
			errs = append(errs, fmt.Errorf("courses[%d]: duplicate course_code %s", i, c.CourseCode))
		}
		codes[c.CourseCode] = true
		if c.IsWelcome() {
			errs = append(errs, fmt.Errorf("courses[%d]: %q is reserved, use setup_welcome", i, domain.WelcomeCourseName))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("load file: %w", errors.Join(errs...))
	}
	return nil
}

// ToLoad maps the document to a load owned by userID. defaultSuffix applies
// when the document has no suffix key; an explicit empty suffix is kept.
func (f *LoadFile) ToLoad(userID uuid.UUID, defaultSuffix string) (*store.Load, error) {
	users, err := store.EncodeJSON(f.Users)
	if err != nil {
		return nil, fmt.Errorf("load file: users: %w", err)
	}
	tools, err := store.EncodeJSON(f.LTITools)
	if err != nil {
		return nil, fmt.Errorf("load file: lti tools: %w", err)
	}

	suffix := defaultSuffix
	if f.Suffix != nil {
		suffix = strings.TrimSpace(*f.Suffix)
	}

	l := &store.Load{
		UserID:              userID,
		CanvasDomain:        f.CanvasDomain,
		SISID:               f.SISID,
		Suffix:              suffix,
		SubAccountName:      strings.TrimSpace(f.SubAccountName),
		AlwaysCreateCourses: f.AlwaysCreateCourses,
		SetupWelcome:        f.SetupWelcome,
		Users:               users,
		LTITools:            tools,
	}
	for _, c := range f.Courses {
		content, err := store.EncodeJSON(c.CourseDefinition)
		if err != nil {
			return nil, fmt.Errorf("load file: course %s: %w", c.CourseCode, err)
		}
		l.Courses = append(l.Courses, store.Course{Content: content, IsSelected: c.IsSelected()})
	}
	return l, nil
}
