package canvasload

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"canvas-load/internal/domain"
	"canvas-load/internal/providers/canvas"
)

// UserResult reports a provisioned user. API failures are carried in Err
// instead of being returned so the rest of a load can proceed.
type UserResult struct {
	User     canvas.Resource
	Existing bool
	Err      error
}

// CurrentUsers lists the account's users once per Loader.
func (l *Loader) CurrentUsers(ctx context.Context) (*canvas.List, error) {
	if l.users != nil {
		return l.users, nil
	}
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	users, err := api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.collect(ctx, users); err != nil {
		return nil, err
	}
	l.users = users
	return users, nil
}

// FindOrCreateUser matches by SIS id first, then by login (email).
func (l *Loader) FindOrCreateUser(ctx context.Context, p domain.UserDefinition, subAccountID int64) (UserResult, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return UserResult{}, err
	}

	user, err := l.findUser(ctx, api, p)
	if err != nil {
		return userFailure(err)
	}

	existing := user != nil
	if !existing {
		sisUserID := ""
		if p.SISUserID != "" {
			sisUserID = fmt.Sprintf("%s_%d", p.SISUserID, l.now().Unix())
		}
		user, err = api.CreateUser(ctx, subAccountID, canvas.UserParams{
			User: canvas.UserFields{Name: p.Name, ShortName: p.Name},
			Pseudonym: canvas.PseudonymFields{
				UniqueID:  p.Email,
				Password:  p.Password,
				SISUserID: sisUserID,
			},
		})
		if err != nil {
			return userFailure(err)
		}
		if l.users != nil {
			l.users.Append(canvas.Resource{"id": user["id"], "login_id": p.Email, "name": p.Name})
		}
		l.log.WithField("email", p.Email).Info("user created")
	}

	if err := l.addAvatar(ctx, api, user, p); err != nil {
		return userFailure(err)
	}
	return UserResult{User: user, Existing: existing}, nil
}

func (l *Loader) findUser(ctx context.Context, api API, p domain.UserDefinition) (canvas.Resource, error) {
	if p.SISUserID != "" {
		profile, err := api.GetProfileBySISID(ctx, p.SISUserID)
		switch {
		case err == nil:
			return profile, nil
		case !canvas.IsNotFound(err):
			return nil, err
		}
	}
	if p.Email == "" {
		return nil, nil
	}
	users, err := l.CurrentUsers(ctx)
	if err != nil {
		return nil, err
	}
	u, _ := users.Find(func(u canvas.Resource) bool { return strings.EqualFold(u.String("login_id"), p.Email) })
	return u, nil
}

func userFailure(err error) (UserResult, error) {
	if _, ok := canvas.AsAPIError(err); ok {
		return UserResult{Err: err}, nil
	}
	return UserResult{}, err
}

func (l *Loader) addAvatar(ctx context.Context, api API, user canvas.Resource, p domain.UserDefinition) error {
	if strings.TrimSpace(p.Avatar) == "" {
		return nil
	}
	_, err := api.UpdateUser(ctx, user.ID(), map[string]any{
		"avatar": map[string]string{"url": p.Avatar},
	})
	return err
}

// EnsureEnrollment enrolls userID as an active "<Type>Enrollment".
func (l *Loader) EnsureEnrollment(ctx context.Context, userID, courseID int64, enrollmentType string) (canvas.Resource, error) {
	api, err := l.Canvas(ctx)
	if err != nil {
		return nil, err
	}
	return api.EnrollUser(ctx, courseID, canvas.EnrollmentParams{
		UserID:          userID,
		Type:            capitalize(strings.TrimSpace(enrollmentType)) + "Enrollment",
		EnrollmentState: "active",
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
