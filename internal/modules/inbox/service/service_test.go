package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/tutorhub/internal/entity"
	notifDto "anoa.com/tutorhub/internal/modules/notification/dto"
	notifRepo "anoa.com/tutorhub/internal/modules/notification/repository"
	notifService "anoa.com/tutorhub/internal/modules/notification/service"
	userRepo "anoa.com/tutorhub/internal/modules/user/repository"
	"anoa.com/tutorhub/internal/testutil"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingAnnouncer struct {
	announced []uuid.UUID
	err       error
}

func (r *recordingAnnouncer) NotifyMessage(_ context.Context, n *entity.Notification) error {
	r.announced = append(r.announced, n.ID)
	return r.err
}

type fixture struct {
	db        *gorm.DB
	store     notifService.NotificationService
	inbox     InboxService
	announcer *recordingAnnouncer
	admin     *entity.User
	teacher   *entity.User
	guardian  *entity.User
	stranger  *entity.User
	other     *entity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	store := notifService.NewNotificationService(
		notifRepo.NewNotificationRepository(db),
		zap.NewNop(),
		notifService.WithClock(testutil.Clock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)),
	)
	announcer := &recordingAnnouncer{}
	f := &fixture{
		db:        db,
		store:     store,
		inbox:     NewInboxService(store, userRepo.NewUserRepository(db), announcer, zap.NewNop()),
		announcer: announcer,
		admin:     testutil.CreateUser(t, db, "Ada", entity.RoleAdmin),
		teacher:   testutil.CreateUser(t, db, "Tunde", entity.RoleTeacher),
		guardian:  testutil.CreateUser(t, db, "Grace", entity.RoleGuardian),
		stranger:  testutil.CreateUser(t, db, "Kemi", entity.RoleGuardian),
		other:     testutil.CreateUser(t, db, "Musa", entity.RoleTeacher),
	}

	teacherID := f.teacher.ID
	require.NoError(t, db.Create(&entity.TeachingSession{
		ID:         uuid.New(),
		GuardianID: f.guardian.ID,
		TeacherID:  &teacherID,
		Status:     "confirmed",
	}).Error)
	return f
}

func (f *fixture) send(t *testing.T, role entity.Role, from, to *entity.User, title, body string) *entity.Notification {
	t.Helper()
	out, err := f.inbox.CreateForRole(context.Background(), role, from.ID, notifDto.CreateNotificationRequest{
		RecipientID: &to.ID,
		Title:       title,
		Body:        body,
		Type:        string(entity.TypeMessage),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return &out[0]
}

func TestGuardianTeacherConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.send(t, entity.RoleGuardian, f.guardian, f.teacher, "Homework", "Did Tobi hand in the essay?")

	view, err := f.inbox.ShowForRole(ctx, entity.RoleTeacher, first.ID, f.teacher.ID)
	require.NoError(t, err)
	assert.True(t, view.CanReply)
	assert.Equal(t, Viewing, view.State)
	assert.True(t, view.Notification.IsRead())

	reply, err := f.inbox.ReplyForRole(ctx, entity.RoleTeacher, f.teacher.ID, notifDto.ReplyRequest{
		ParentID: first.ID,
		Body:     "Yes, on Friday.",
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, first.ID, *reply.ParentID)
	assert.Equal(t, f.guardian.ID, reply.RecipientID)

	_, err = f.inbox.ShowForRole(ctx, entity.RoleGuardian, reply.ID, f.guardian.ID)
	require.NoError(t, err)

	list, err := f.inbox.ListForRole(ctx, entity.RoleGuardian, f.guardian.ID, notifDto.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, reply.ID, list[1].ID)
	require.NotNil(t, list[1].ParentID)
	assert.Equal(t, list[0].ID, *list[1].ParentID)
	assert.True(t, list[0].IsRead(), "the teacher opened the first message")
	assert.True(t, list[1].IsRead(), "the guardian opened the reply")

	assert.Equal(t, []uuid.UUID{first.ID, reply.ID}, f.announcer.announced)
}

func TestShowForbidsNonParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.send(t, entity.RoleAdmin, f.admin, f.teacher, "Welcome", "Glad to have you")

	for _, role := range entity.Roles() {
		_, err := f.inbox.ShowForRole(ctx, role, n.ID, f.stranger.ID)
		assert.ErrorIs(t, err, apperror.ErrForbidden, role)
	}

	_, err := f.inbox.ShowForRole(ctx, entity.RoleAdmin, n.ID, f.admin.ID)
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRead(), "the sender viewing does not mark it read")

	_, err = f.inbox.ShowForRole(ctx, entity.RoleGuardian, uuid.New(), f.guardian.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreateForRoleRecipientRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	create := func(role entity.Role, from *entity.User, to ...*entity.User) error {
		ids := make([]uuid.UUID, 0, len(to))
		for _, u := range to {
			ids = append(ids, u.ID)
		}
		_, err := f.inbox.CreateForRole(ctx, role, from.ID, notifDto.CreateNotificationRequest{
			RecipientIDs: ids,
			Title:        "Hello",
			Body:         "Hi there",
			Type:         string(entity.TypeMessage),
		})
		return err
	}

	assert.NoError(t, create(entity.RoleGuardian, f.guardian, f.teacher))
	assert.NoError(t, create(entity.RoleGuardian, f.guardian, f.admin))
	assert.NoError(t, create(entity.RoleTeacher, f.teacher, f.guardian))
	assert.NoError(t, create(entity.RoleAdmin, f.admin, f.stranger, f.other))

	assert.ErrorIs(t, create(entity.RoleGuardian, f.guardian, f.other), apperror.ErrForbidden, "teacher without a shared session")
	assert.ErrorIs(t, create(entity.RoleGuardian, f.guardian, f.stranger), apperror.ErrForbidden, "guardians cannot message guardians")
	assert.ErrorIs(t, create(entity.RoleTeacher, f.teacher, f.stranger), apperror.ErrForbidden, "guardian without a shared session")
	assert.ErrorIs(t, create(entity.RoleGuardian, f.guardian, f.teacher, f.other), apperror.ErrForbidden, "one bad recipient rejects all")
	assert.ErrorIs(t, create(entity.RoleGuardian, f.guardian, f.guardian), apperror.ErrValidation)

	missing := &entity.User{ID: uuid.New()}
	assert.ErrorIs(t, create(entity.RoleAdmin, f.admin, missing), apperror.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&entity.Notification{}).Where("recipient_id = ?", f.other.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "only the admin's message reached the unlinked teacher")
}

func TestCreateForRoleTypeRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.inbox.CreateForRole(ctx, entity.RoleGuardian, f.guardian.ID, notifDto.CreateNotificationRequest{
		RecipientID: &f.admin.ID,
		Title:       "Payout",
		Type:        string(entity.TypePayout),
	})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.inbox.CreateForRole(ctx, entity.RoleGuardian, f.guardian.ID, notifDto.CreateNotificationRequest{
		RecipientID: &f.admin.ID,
		Title:       "Hi",
		Type:        "telegram",
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	out, err := f.inbox.CreateForRole(ctx, entity.RoleAdmin, f.admin.ID, notifDto.CreateNotificationRequest{
		RecipientID: &f.teacher.ID,
		Title:       "Payout update",
		Type:        string(entity.TypePayout),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = f.inbox.CreateForRole(ctx, entity.RoleGuardian, f.guardian.ID, notifDto.CreateNotificationRequest{
		RecipientID: &f.teacher.ID,
		Title:       "Extra lesson?",
		Body:        "Could we add Thursday?",
		Type:        string(entity.TypeRequest),
	})
	require.NoError(t, err)
	require.NotNil(t, out[0].Status)
	assert.Equal(t, entity.StatusPending, *out[0].Status)

	_, err = f.inbox.RespondForRole(ctx, entity.RoleTeacher, out[0].ID, f.other.ID, true)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	answered, err := f.inbox.RespondForRole(ctx, entity.RoleTeacher, out[0].ID, f.teacher.ID, true)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, *answered.Status)
}

func TestAnnounceFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	f.announcer.err = errors.New("smtp down")

	n := f.send(t, entity.RoleGuardian, f.guardian, f.teacher, "Lesson", "See you at 4")
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Len(t, f.announcer.announced, 1)
}

// failingStore fails every Create after the first ok calls.
type failingStore struct {
	notifService.NotificationService
	ok int
}

func (s *failingStore) Create(ctx context.Context, in notifDto.CreateInput) (*entity.Notification, error) {
	if s.ok == 0 {
		return nil, errors.New("db down")
	}
	s.ok--
	return s.NotificationService.Create(ctx, in)
}

func TestCreateForRolePartialFanOut(t *testing.T) {
	f := newFixture(t)
	announcer := &recordingAnnouncer{}
	inbox := NewInboxService(&failingStore{NotificationService: f.store, ok: 1}, userRepo.NewUserRepository(f.db), announcer, zap.NewNop())

	out, err := inbox.CreateForRole(context.Background(), entity.RoleAdmin, f.admin.ID, notifDto.CreateNotificationRequest{
		RecipientIDs: []uuid.UUID{f.teacher.ID, f.guardian.ID},
		Title:        "Maintenance",
		Body:         "The platform is down on Sunday",
		Type:         string(entity.TypeMessage),
	})
	require.Error(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, f.teacher.ID, out[0].RecipientID)
	assert.Equal(t, []uuid.UUID{out[0].ID}, announcer.announced, "stored rows are still announced")

	var count int64
	require.NoError(t, f.db.Model(&entity.Notification{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	out, err = NewInboxService(&failingStore{NotificationService: f.store}, userRepo.NewUserRepository(f.db), announcer, zap.NewNop()).
		CreateForRole(context.Background(), entity.RoleAdmin, f.admin.ID, notifDto.CreateNotificationRequest{
			RecipientID: &f.teacher.ID,
			Title:       "Maintenance",
			Body:        "Rescheduled",
			Type:        string(entity.TypeMessage),
		})
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Len(t, announcer.announced, 1)
}

func TestReplyForRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.send(t, entity.RoleGuardian, f.guardian, f.teacher, "Homework", "Question")

	_, err := f.inbox.ReplyForRole(ctx, entity.RoleTeacher, f.other.ID, notifDto.ReplyRequest{ParentID: n.ID, Body: "Hi"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.inbox.ReplyForRole(ctx, entity.RoleTeacher, f.teacher.ID, notifDto.ReplyRequest{ParentID: n.ID, Body: "   "})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	system, err := f.store.Create(ctx, notifDto.CreateInput{
		RecipientID: f.teacher.ID,
		Title:       "Payout sent",
		Type:        entity.TypePayout,
	})
	require.NoError(t, err)

	view, err := f.inbox.ShowForRole(ctx, entity.RoleTeacher, system.ID, f.teacher.ID)
	require.NoError(t, err)
	assert.False(t, view.CanReply)

	_, err = f.inbox.ReplyForRole(ctx, entity.RoleTeacher, f.teacher.ID, notifDto.ReplyRequest{ParentID: system.ID, Body: "Thanks"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestMarkReadForRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.send(t, entity.RoleGuardian, f.guardian, f.teacher, "Homework", "Question")

	_, err := f.inbox.MarkReadForRole(ctx, entity.RoleGuardian, n.ID, f.guardian.ID)
	assert.ErrorIs(t, err, apperror.ErrValidation, "senders cannot mark their own message read")

	_, err = f.inbox.MarkReadForRole(ctx, entity.RoleGuardian, n.ID, f.stranger.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	first, err := f.inbox.MarkReadForRole(ctx, entity.RoleTeacher, n.ID, f.teacher.ID)
	require.NoError(t, err)
	second, err := f.inbox.MarkReadForRole(ctx, entity.RoleTeacher, n.ID, f.teacher.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)
	assert.True(t, first.ReadAt.Equal(*second.ReadAt))
}

func TestUnknownRoleHasNoInbox(t *testing.T) {
	f := newFixture(t)
	_, err := f.inbox.ListForRole(context.Background(), entity.Role("parent"), f.guardian.ID, notifDto.ListFilter{})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
