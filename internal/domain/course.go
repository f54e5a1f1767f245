package domain

import (
	"errors"
	"strings"
)

// WelcomeCourseName is the template course that never gets the load suffix.
const WelcomeCourseName = "Welcome to Canvas"

// CourseDefinition is the content stored on a local Course record. It carries
// the Canvas course fields plus the sample activity to generate inside it.
type CourseDefinition struct {
	CourseCode        string `json:"course_code" yaml:"course_code"`
	Name              string `json:"name" yaml:"name"`
	SISCourseID       string `json:"sis_course_id,omitempty" yaml:"sis_course_id"`
	Status            string `json:"status,omitempty" yaml:"status"`
	Cartridge         string `json:"cartridge,omitempty" yaml:"cartridge"`
	StartAt           string `json:"start_at,omitempty" yaml:"start_at"`
	EndAt             string `json:"end_at,omitempty" yaml:"end_at"`
	PublicDescription string `json:"public_description,omitempty" yaml:"public_description"`

	Enrollments   []EnrollmentDefinition   `json:"enrollments,omitempty" yaml:"enrollments"`
	Discussions   []DiscussionDefinition   `json:"discussions,omitempty" yaml:"discussions"`
	Submissions   []AssignmentDefinition   `json:"submissions,omitempty" yaml:"submissions"`
	Quizzes       []QuizDefinition         `json:"quizzes,omitempty" yaml:"quizzes"`
	Conversations []ConversationDefinition `json:"conversations,omitempty" yaml:"conversations"`
	PageViews     []string                 `json:"page_views,omitempty" yaml:"page_views"` // user emails
	LTITools      []LTIToolDefinition      `json:"lti_tools,omitempty" yaml:"lti_tools"`
}

func (c CourseDefinition) Validate() error {
	if strings.TrimSpace(c.CourseCode) == "" {
		return errors.New("course: missing course_code")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("course: missing name")
	}
	return nil
}

// IsWelcome reports the distinguished template course.
func (c CourseDefinition) IsWelcome() bool {
	return c.Name == WelcomeCourseName
}

// WelcomeCourse is created once per account when a load asks for it.
func WelcomeCourse() CourseDefinition {
	return CourseDefinition{
		CourseCode:  "welcome-to-canvas",
		Name:        WelcomeCourseName,
		SISCourseID: "welcome-to-canvas",
		Status:      "active",
		Cartridge:   "https://dl.dropbox.com/s/e1ma2pxy82iko0n/welcome-to-canvas-master-export.imscc",
	}
}

type EnrollmentDefinition struct {
	User string `json:"user" yaml:"user"` // email
	Type string `json:"type" yaml:"type"` // student, teacher, ta, designer, observer
}

type DiscussionDefinition struct {
	Author  string `json:"author" yaml:"author"`
	Title   string `json:"title" yaml:"title"`
	Message string `json:"message" yaml:"message"`
}

type AssignmentDefinition struct {
	Author     string `json:"author" yaml:"author"`
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"` // online_text_entry, online_url
	Submission string `json:"submission" yaml:"submission"`
	Comment    string `json:"comment,omitempty" yaml:"comment"`
}

type QuizDefinition struct {
	Title    string `json:"title" yaml:"title"`
	QuizType string `json:"quiz_type,omitempty" yaml:"quiz_type"`
}

// ConversationDefinition addresses recipients either by Canvas id
// (comma separated RecipientID) or by email in Recipients.
type ConversationDefinition struct {
	Author      string   `json:"author" yaml:"author"`
	RecipientID string   `json:"recipient_id,omitempty" yaml:"recipient_id"`
	Recipients  []string `json:"recipients,omitempty" yaml:"recipients"`
	Subject     string   `json:"subject" yaml:"subject"`
	Body        string   `json:"body" yaml:"body"`
}

type LTIToolDefinition struct {
	Key       string `json:"key" yaml:"key"`
	Secret    string `json:"secret" yaml:"secret"`
	ConfigURL string `json:"config_url" yaml:"config_url"`
}
