package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"hoiku-portal/internal/dbtest"
	"hoiku-portal/internal/models"
	"hoiku-portal/internal/storage"
	"hoiku-portal/internal/workflow"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testMaxBytes = 1 << 10

type env struct {
	db          *gorm.DB
	fs          afero.Fs
	store       *storage.LocalStore
	users       *UserService
	templates   *TemplateService
	submissions *SubmissionService
	clock       time.Time
}

func newEnv(t *testing.T, opts ...workflow.Option) *env {
	t.Helper()
	db := dbtest.Open(t)
	fs := afero.NewMemMapFs()
	store, err := storage.NewLocalStoreFs(fs, "/uploads")
	require.NoError(t, err)

	e := &env{
		db:          db,
		fs:          fs,
		store:       store,
		users:       newUserService(db, bcrypt.MinCost),
		templates:   NewTemplateService(db, store, testMaxBytes),
		submissions: NewSubmissionService(db, store, workflow.New(opts...), testMaxBytes),
		clock:       time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	tick := func() time.Time {
		e.clock = e.clock.Add(time.Second)
		return e.clock
	}
	e.templates.now = tick
	e.submissions.now = tick
	return e
}

func (e *env) register(t *testing.T, email string, role models.UserRole) *models.User {
	t.Helper()
	in := RegisterInput{Email: email, Password: "secret123", Role: role}
	if role == models.RoleClient {
		in.Category = models.CategoryHoikuen
	}
	u, err := e.users.Register(context.Background(), in)
	require.NoError(t, err)
	return u
}

func (e *env) template(t *testing.T, owner *models.User, title string) *models.Template {
	t.Helper()
	tmpl, err := e.templates.Create(context.Background(), owner,
		CreateTemplateInput{Title: title, Description: title + " description", Category: models.CategoryHoikuen},
		upload("form.pdf", "%PDF-1.4 template"))
	require.NoError(t, err)
	return tmpl
}

func upload(name, body string) *Upload {
	return &Upload{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func (e *env) stored(t *testing.T, key string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, "/uploads/"+key)
	require.NoError(t, err)
	return ok
}
