package canvasload

import (
	"context"

	"canvas-load/internal/providers/canvas"
)

// LTIToolParams builds the registration for a tool configured by URL.
func LTIToolParams(key, secret, configURL string) canvas.ExternalToolParams {
	return canvas.ExternalToolParams{
		Name:         key,
		Domain:       "instructure.com",
		ConfigType:   "url",
		PrivacyLevel: "public",
		ConfigURL:    configURL,
		ConsumerKey:  key,
		SharedSecret: secret,
	}
}

// ExistingTools lists the tools installed where a new one would go: the
// sub-account when subAccountID is set (read once per sub-account), else the course.
func (l *Loader) ExistingTools(ctx context.Context, courseID, subAccountID int64) (*canvas.List, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}

	if subAccountID > 0 {
		if tools, ok := l.accountTools[subAccountID]; ok {
			return tools, nil
		}
		tools, err := api.AccountExternalTools(ctx, subAccountID)
		if err != nil {
			return nil, err
		}
		if err := l.collect(ctx, tools); err != nil {
			return nil, err
		}
		l.accountTools[subAccountID] = tools
		return tools, nil
	}

	tools, err := api.CourseExternalTools(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return tools, l.collect(ctx, tools)
}

func (l *Loader) CreateLTITool(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (canvas.Resource, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	if subAccountID > 0 {
		return api.CreateAccountExternalTool(ctx, subAccountID, p)
	}
	return api.CreateCourseExternalTool(ctx, courseID, p)
}

// AddLTITool installs p unless a tool with the same name is there.
func (l *Loader) AddLTITool(ctx context.Context, p canvas.ExternalToolParams, courseID, subAccountID int64) (*Match, error) {
	return findOrCreate(ctx,
		func(ctx context.Context) (*canvas.List, error) { return l.ExistingTools(ctx, courseID, subAccountID) },
		func(t canvas.Resource) bool { return t.String("name") == p.Name },
		func(ctx context.Context) (canvas.Resource, error) {
			return l.CreateLTITool(ctx, p, courseID, subAccountID)
		},
	)
}
