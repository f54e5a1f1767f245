package sync

import (
	"sort"
	"time"
)

// Kind names what a report row provisioned.
type Kind string

const (
	KindSubAccount   Kind = "sub_account"
	KindWelcome      Kind = "welcome"
	KindUser         Kind = "user"
	KindCourse       Kind = "course"
	KindEnrollment   Kind = "enrollment"
	KindDiscussion   Kind = "discussion"
	KindSubmission   Kind = "submission"
	KindQuiz         Kind = "quiz"
	KindConversation Kind = "conversation"
	KindPageView     Kind = "page_view"
	KindLTITool      Kind = "lti_tool"
)

// Row is the outcome of one provisioned item. Error is empty on success.
type Row struct {
	Kind     Kind
	Course   string // course code the item belongs to, if any
	Name     string
	CanvasID int64
	Existing bool
	Error    string
}

// Report collects the rows of one load run in execution order.
type Report struct {
	LoadID     string
	Domain     string
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       []Row
}

func (r *Report) add(row Row) {
	r.Rows = append(r.Rows, row)
}

func (r *Report) fail(kind Kind, course, name string, err error) {
	r.Rows = append(r.Rows, Row{Kind: kind, Course: course, Name: name, Error: err.Error()})
}

// Failures returns the rows that carry an error.
func (r *Report) Failures() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Error != "" {
			out = append(out, row)
		}
	}
	return out
}

// Counts tallies successful rows per kind.
func (r *Report) Counts() map[Kind]int {
	out := map[Kind]int{}
	for _, row := range r.Rows {
		if row.Error == "" {
			out[row.Kind]++
		}
	}
	return out
}

// Kinds returns the kinds present in the report, sorted.
func (r *Report) Kinds() []Kind {
	seen := map[Kind]bool{}
	var out []Kind
	for _, row := range r.Rows {
		if !seen[row.Kind] {
			seen[row.Kind] = true
			out = append(out, row.Kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
