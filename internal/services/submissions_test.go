package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"hoiku-portal/internal/models"
	"hoiku-portal/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionService_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	master := e.register(t, "m@example.com", models.RoleMaster)
	client := e.register(t, "c@example.com", models.RoleClient)
	tmpl := e.template(t, master, "Form")

	t.Run("Should create a not_submitted row once", func(t *testing.T) {
		first, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNotSubmitted, first.Status)
		assert.Nil(t, first.Filename)
		assert.Nil(t, first.SubmittedAt)
		assert.Equal(t, tmpl.ID, first.Template.ID)

		second, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		var count int64
		require.NoError(t, e.db.Model(&models.Submission{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Should converge under concurrent first visits", func(t *testing.T) {
		other := e.register(t, "c2@example.com", models.RoleClient)

		const workers = 8
		ids := make([]uint, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, other.ID)
				errs[i] = err
				if err == nil {
					ids[i] = sub.ID
				}
			}(i)
		}
		wg.Wait()

		for i := range errs {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		var count int64
		require.NoError(t, e.db.Model(&models.Submission{}).
			Where("template_id = ? AND client_id = ?", tmpl.ID, other.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Should reject a duplicate pair at the schema level", func(t *testing.T) {
		dup := models.Submission{TemplateID: tmpl.ID, ClientID: client.ID, Status: models.StatusNotSubmitted}
		assert.Error(t, e.db.Create(&dup).Error)
	})

	t.Run("Should report a missing template", func(t *testing.T) {
		_, err := e.submissions.GetOrCreate(ctx, 9999, client.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmissionService_Submit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	master := e.register(t, "m@example.com", models.RoleMaster)
	client := e.register(t, "c@example.com", models.RoleClient)
	intruder := e.register(t, "x@example.com", models.RoleClient)
	tmpl := e.template(t, master, "Form")
	sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
	require.NoError(t, err)

	t.Run("Should leave the row untouched on a disallowed extension", func(t *testing.T) {
		_, err := e.submissions.Submit(ctx, client, sub.ID, upload("virus.exe", "MZ"))
		assert.ErrorIs(t, err, ErrInvalidFileType)

		got, err := e.submissions.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNotSubmitted, got.Status)
		assert.Nil(t, got.Filename)
	})

	t.Run("Should refuse anyone but the submitting client", func(t *testing.T) {
		_, err := e.submissions.Submit(ctx, intruder, sub.ID, upload("form.pdf", "x"))
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = e.submissions.Submit(ctx, master, sub.ID, upload("form.pdf", "x"))
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := e.submissions.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNotSubmitted, got.Status)
	})

	t.Run("Should store the file and mark submitted", func(t *testing.T) {
		got, err := e.submissions.Submit(ctx, client, sub.ID, upload("form.pdf", "%PDF-1.4 filled"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, got.Status)
		require.NotNil(t, got.SubmittedAt)
		require.True(t, got.HasFile())
		assert.Contains(t, *got.Filename, "_form.pdf")
		assert.True(t, e.stored(t, *got.Filename))

		reloaded, err := e.submissions.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, *got.Filename, *reloaded.Filename)
		assert.Equal(t, models.StatusSubmitted, reloaded.Status)
	})

	t.Run("Should report a missing submission", func(t *testing.T) {
		_, err := e.submissions.Submit(ctx, client, 9999, upload("form.pdf", "x"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmissionService_Review(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner := e.register(t, "owner@example.com", models.RoleMaster)
	otherMaster := e.register(t, "other@example.com", models.RoleMaster)
	client := e.register(t, "c@example.com", models.RoleClient)
	tmpl := e.template(t, owner, "Form")
	sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
	require.NoError(t, err)

	t.Run("Should allow review before an upload", func(t *testing.T) {
		got, err := e.submissions.Review(ctx, owner, sub.ID, models.StatusReviewing, "waiting for the file")
		require.NoError(t, err)
		assert.Equal(t, models.StatusReviewing, got.Status)
		assert.False(t, got.HasFile())
	})

	_, err = e.submissions.Submit(ctx, client, sub.ID, upload("form.pdf", "%PDF"))
	require.NoError(t, err)

	t.Run("Should refuse clients regardless of input", func(t *testing.T) {
		for _, status := range []models.SubmissionStatus{models.StatusConfirmed, "bogus"} {
			_, err := e.submissions.Review(ctx, client, sub.ID, status, "ok")
			assert.ErrorIs(t, err, ErrForbidden)
		}
	})

	t.Run("Should refuse masters that do not own the template", func(t *testing.T) {
		_, err := e.submissions.Review(ctx, otherMaster, sub.ID, models.StatusConfirmed, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("Should refuse statuses a reviewer cannot set", func(t *testing.T) {
		for _, status := range []models.SubmissionStatus{models.StatusSubmitted, models.StatusNotSubmitted, "done"} {
			_, err := e.submissions.Review(ctx, owner, sub.ID, status, "")
			assert.ErrorIs(t, err, ErrInvalidStatus)
		}
		got, err := e.submissions.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, got.Status)
	})

	t.Run("Should set status and comment", func(t *testing.T) {
		got, err := e.submissions.Review(ctx, owner, sub.ID, models.StatusResubmit, " missing signature ")
		require.NoError(t, err)
		assert.Equal(t, models.StatusResubmit, got.Status)
		assert.Equal(t, "missing signature", got.CommentText())

		got, err = e.submissions.Review(ctx, owner, sub.ID, models.StatusConfirmed, "")
		require.NoError(t, err)
		assert.Nil(t, got.Comment)
	})
}

func TestSubmissionService_RequireUpload(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, workflow.RequireUpload())
	owner := e.register(t, "owner@example.com", models.RoleMaster)
	client := e.register(t, "c@example.com", models.RoleClient)
	tmpl := e.template(t, owner, "Form")
	sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
	require.NoError(t, err)

	_, err = e.submissions.Review(ctx, owner, sub.ID, models.StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.True(t, IsValidation(err))

	_, err = e.submissions.Submit(ctx, client, sub.ID, upload("form.pdf", "%PDF"))
	require.NoError(t, err)
	got, err := e.submissions.Review(ctx, owner, sub.ID, models.StatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}

// Mirrors the full lifecycle a client and a master walk through.
func TestSubmissionLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	master := e.register(t, "master@example.com", models.RoleMaster)
	client := e.register(t, "client@example.com", models.RoleClient)

	tmpl, err := e.templates.Create(ctx, master,
		CreateTemplateInput{Title: "Enrollment Form", Description: "入園申込書", Category: models.CategoryHoikuen},
		upload("enrollment.pdf", "%PDF-1.4"))
	require.NoError(t, err)

	sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotSubmitted, sub.Status)

	sub, err = e.submissions.Submit(ctx, client, sub.ID, upload("form.pdf", "%PDF-1.4 v1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, sub.Status)
	require.NotNil(t, sub.SubmittedAt)
	firstSubmittedAt := *sub.SubmittedAt
	firstFile := *sub.Filename

	sub, err = e.submissions.Review(ctx, master, sub.ID, models.StatusReviewing, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, sub.Status)

	sub, err = e.submissions.Review(ctx, master, sub.ID, models.StatusResubmit, "missing signature")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResubmit, sub.Status)
	assert.Equal(t, "missing signature", sub.CommentText())

	sub, err = e.submissions.Submit(ctx, client, sub.ID, upload("form_v2.pdf", "%PDF-1.4 v2"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, sub.Status)
	assert.True(t, sub.SubmittedAt.After(firstSubmittedAt))
	assert.NotEqual(t, firstFile, *sub.Filename)

	reloaded, err := e.submissions.Get(ctx, sub.ID)
	require.NoError(t, err)
	// the reviewer's comment survives a re-upload
	assert.Equal(t, "missing signature", reloaded.CommentText())
	assert.Equal(t, models.StatusSubmitted, reloaded.Status)

	history, err := e.submissions.History(ctx, client, sub.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(history))
	for _, h := range history {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []string{"upload", "review", "review", "upload"}, actions)
}

func TestSubmissionService_LockConfirmed(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		opts    []workflow.Option
		wantErr error
	}{
		{name: "Should allow re-upload after confirmation by default"},
		{name: "Should refuse re-upload when confirmed is locked", opts: []workflow.Option{workflow.LockConfirmed()}, wantErr: ErrInvalidTransition},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, tc.opts...)
			master := e.register(t, "m@example.com", models.RoleMaster)
			client := e.register(t, "c@example.com", models.RoleClient)
			tmpl := e.template(t, master, "Form")
			sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
			require.NoError(t, err)
			_, err = e.submissions.Submit(ctx, client, sub.ID, upload("a.pdf", "1"))
			require.NoError(t, err)
			_, err = e.submissions.Review(ctx, master, sub.ID, models.StatusConfirmed, "")
			require.NoError(t, err)

			got, _ := e.submissions.Get(ctx, sub.ID)
			assert.Equal(t, tc.wantErr == nil, e.submissions.CanUpload(got))

			_, err = e.submissions.Submit(ctx, client, sub.ID, upload("b.pdf", "2"))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				got, _ := e.submissions.Get(ctx, sub.ID)
				assert.Equal(t, models.StatusConfirmed, got.Status)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSubmissionService_OpenFile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner := e.register(t, "owner@example.com", models.RoleMaster)
	other := e.register(t, "other@example.com", models.RoleMaster)
	client := e.register(t, "c@example.com", models.RoleClient)
	stranger := e.register(t, "s@example.com", models.RoleClient)
	tmpl := e.template(t, owner, "Form")
	sub, err := e.submissions.GetOrCreate(ctx, tmpl.ID, client.ID)
	require.NoError(t, err)

	t.Run("Should report a submission without a file", func(t *testing.T) {
		_, _, err := e.submissions.OpenFile(ctx, client, sub.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	_, err = e.submissions.Submit(ctx, client, sub.ID, upload("form.pdf", "%PDF filled"))
	require.NoError(t, err)

	t.Run("Should serve the client and the owning master", func(t *testing.T) {
		for _, u := range []*models.User{client, owner} {
			_, rc, err := e.submissions.OpenFile(ctx, u, sub.ID)
			require.NoError(t, err)
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			assert.Equal(t, "%PDF filled", string(data))
		}
	})

	t.Run("Should refuse everyone else", func(t *testing.T) {
		for _, u := range []*models.User{other, stranger} {
			_, _, err := e.submissions.OpenFile(ctx, u, sub.ID)
			assert.ErrorIs(t, err, ErrForbidden)
		}
		_, err := e.submissions.History(ctx, stranger, sub.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestSubmissionService_ListForClient(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	master := e.register(t, "m@example.com", models.RoleMaster)
	c1 := e.register(t, "c1@example.com", models.RoleClient)
	c2 := e.register(t, "c2@example.com", models.RoleClient)
	a := e.template(t, master, "A")
	b := e.template(t, master, "B")

	_, err := e.submissions.GetOrCreate(ctx, a.ID, c1.ID)
	require.NoError(t, err)
	_, err = e.submissions.GetOrCreate(ctx, b.ID, c2.ID)
	require.NoError(t, err)

	got, err := e.submissions.ListForClient(ctx, c1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c1.ID, got[a.ID].ClientID)
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidFileType))
	assert.True(t, IsValidation(ErrInvalidTransition))
	assert.False(t, IsValidation(ErrForbidden))
	assert.False(t, IsValidation(io.EOF))
}
