package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/notification/dto"
	notifRepo "anoa.com/tutorhub/internal/modules/notification/repository"
	"anoa.com/tutorhub/internal/testutil"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeBroadcaster struct {
	published []uuid.UUID
	err       error
}

func (f *fakeBroadcaster) Publish(_ context.Context, n *entity.Notification) error {
	f.published = append(f.published, n.ID)
	return f.err
}

type fakeIndexer struct {
	indexed []uuid.UUID
	hits    []uuid.UUID
	err     error
}

func (f *fakeIndexer) IndexNotification(_ context.Context, n *entity.Notification) error {
	f.indexed = append(f.indexed, n.ID)
	return f.err
}

func (f *fakeIndexer) SearchIDs(context.Context, uuid.UUID, string, int) ([]uuid.UUID, error) {
	return f.hits, nil
}

type fixture struct {
	db      *gorm.DB
	svc     NotificationService
	admin   *entity.User
	teacher *entity.User
	parent  *entity.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	opts = append([]Option{WithClock(testutil.Clock(base, time.Second))}, opts...)
	return &fixture{
		db:      db,
		svc:     NewNotificationService(notifRepo.NewNotificationRepository(db), zap.NewNop(), opts...),
		admin:   testutil.CreateUser(t, db, "Ada", entity.RoleAdmin),
		teacher: testutil.CreateUser(t, db, "Tunde", entity.RoleTeacher),
		parent:  testutil.CreateUser(t, db, "Grace", entity.RoleGuardian),
	}
}

func (f *fixture) message(t *testing.T, from, to *entity.User, title, body string) *entity.Notification {
	t.Helper()
	n, err := f.svc.Create(context.Background(), dto.CreateInput{
		SenderID:    &from.ID,
		RecipientID: to.ID,
		Title:       title,
		Body:        body,
		Type:        entity.TypeMessage,
		Sanitize:    true,
	})
	require.NoError(t, err)
	return n
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   dto.CreateInput
	}{
		{"unknown type", dto.CreateInput{RecipientID: f.teacher.ID, Title: "x", Body: "y", Type: "carrier_pigeon"}},
		{"blank title", dto.CreateInput{RecipientID: f.teacher.ID, Title: "   ", Body: "y", Type: entity.TypeAlert}},
		{"missing recipient", dto.CreateInput{Title: "x", Body: "y", Type: entity.TypeAlert}},
		{"message without body", dto.CreateInput{RecipientID: f.teacher.ID, Title: "x", Type: entity.TypeMessage}},
		{"payment without amount", dto.CreateInput{RecipientID: f.teacher.ID, Title: "Paid", Type: entity.TypePayment}},
		{"payment with zero amount", dto.CreateInput{RecipientID: f.teacher.ID, Title: "Paid", Type: entity.TypePayment, Metadata: entity.Metadata{"amount": 0}}},
		{"payment with text amount", dto.CreateInput{RecipientID: f.teacher.ID, Title: "Paid", Type: entity.TypePayment, Metadata: entity.Metadata{"amount": "lots"}}},
		{"payment with NaN amount", dto.CreateInput{RecipientID: f.teacher.ID, Title: "Paid", Type: entity.TypePayment, Metadata: entity.Metadata{"amount": "NaN"}}},
		{"payment with infinite amount", dto.CreateInput{RecipientID: f.teacher.ID, Title: "Paid", Type: entity.TypePayment, Metadata: entity.Metadata{"amount": "Inf"}}},
		{"markup only body", dto.CreateInput{RecipientID: f.teacher.ID, Title: "x", Body: "<script></script>", Type: entity.TypeMessage, Sanitize: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.in)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&entity.Notification{}).Count(&count).Error)
	assert.Zero(t, count, "nothing is stored when validation fails")
}

func TestCreate(t *testing.T) {
	b := &fakeBroadcaster{}
	idx := &fakeIndexer{}
	f := newFixture(t, WithBroadcaster(b), WithIndexer(idx))

	n, err := f.svc.Create(context.Background(), dto.CreateInput{
		SenderID:    &f.parent.ID,
		RecipientID: f.teacher.ID,
		Title:       "  Extra lesson  ",
		Body:        "<b>Saturday</b> &amp; Sunday?",
		Type:        entity.TypeRequest,
		Sanitize:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Extra lesson", n.Title)
	assert.Equal(t, "Saturday & Sunday?", n.Body)
	assert.Nil(t, n.ReadAt)
	require.NotNil(t, n.Status)
	assert.Equal(t, entity.StatusPending, *n.Status)
	require.NotNil(t, n.Sender)
	assert.Equal(t, "Grace", n.Sender.Name)
	assert.Equal(t, []uuid.UUID{n.ID}, b.published)
	assert.Equal(t, []uuid.UUID{n.ID}, idx.indexed)
}

func TestEscapedMarkupIsNotStoredLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, dto.CreateInput{
		SenderID:    &f.parent.ID,
		RecipientID: f.teacher.ID,
		Title:       "Hi &lt;script&gt;alert(1)&lt;/script&gt;",
		Body:        "Hello &lt;img src=x onerror=alert(1)&gt;",
		Type:        entity.TypeMessage,
		Sanitize:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi", n.Title)
	assert.Equal(t, "Hello", n.Body)

	reply, err := f.svc.Reply(ctx, n.ID, f.teacher.ID, "Thanks &lt;script&gt;alert(1)&lt;/script&gt;")
	require.NoError(t, err)
	assert.Equal(t, "Thanks", reply.Body)

	reply, err = f.svc.Reply(ctx, n.ID, f.teacher.ID, "Twice &amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;")
	require.NoError(t, err)
	assert.NotContains(t, reply.Body, "<")

	_, err = f.svc.Reply(ctx, n.ID, f.teacher.ID, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.ErrorIs(t, err, apperror.ErrValidation, "nothing is left once the markup is stripped")

	reply, err = f.svc.Reply(ctx, n.ID, f.teacher.ID, "2 < 3 & 4 > 1")
	require.NoError(t, err)
	assert.Equal(t, "2 < 3 & 4 > 1", reply.Body)
}

func TestCreatePaymentAcceptsNumericAmount(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.Create(context.Background(), dto.CreateInput{
		RecipientID: f.teacher.ID,
		Title:       "Payment received",
		Type:        entity.TypePayment,
		Metadata:    entity.Metadata{"amount": 25000.5, "currency": "NGN"},
	})
	require.NoError(t, err)
	assert.Nil(t, n.SenderID)
	assert.Nil(t, n.Status)

	amount, ok := n.Metadata.Number("amount")
	require.True(t, ok)
	assert.Equal(t, 25000.5, amount)
}

func TestCreateSurvivesFanOutFailures(t *testing.T) {
	f := newFixture(t,
		WithBroadcaster(&fakeBroadcaster{err: errors.New("redis down")}),
		WithIndexer(&fakeIndexer{err: errors.New("meili down")}),
	)

	n := f.message(t, f.admin, f.teacher, "Hello", "Welcome aboard")
	assert.NotEqual(t, uuid.Nil, n.ID)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.message(t, f.admin, f.teacher, "Hello", "Welcome aboard")

	first, err := f.svc.MarkRead(ctx, n.ID, f.teacher.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)

	second, err := f.svc.MarkRead(ctx, n.ID, f.teacher.ID)
	require.NoError(t, err)
	require.NotNil(t, second.ReadAt)
	assert.True(t, first.ReadAt.Equal(*second.ReadAt))
	assert.True(t, second.IsRead())
}

func TestMarkReadRequiresRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.message(t, f.admin, f.teacher, "Hello", "Welcome aboard")

	_, err := f.svc.MarkRead(ctx, n.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.MarkRead(ctx, uuid.New(), f.teacher.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.message(t, f.admin, f.teacher, "Timetable", "Please confirm Monday")

	reply, err := f.svc.Reply(ctx, root.ID, f.teacher.ID, "Confirmed")
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)
	assert.Equal(t, root.ID, reply.ThreadID)
	assert.Equal(t, f.admin.ID, reply.RecipientID)
	require.NotNil(t, reply.SenderID)
	assert.Equal(t, f.teacher.ID, *reply.SenderID)
	assert.Equal(t, "Re: Timetable", reply.Title)
	assert.Equal(t, entity.TypeMessage, reply.Type)
	assert.False(t, reply.CreatedAt.Before(root.CreatedAt))

	again, err := f.svc.Reply(ctx, reply.ID, f.admin.ID, "Thanks")
	require.NoError(t, err)
	assert.Equal(t, "Re: Timetable", again.Title)
	assert.Equal(t, f.teacher.ID, again.RecipientID)
	assert.Equal(t, root.ID, again.ThreadID)
}

func TestReplyNeverPredatesParent(t *testing.T) {
	db := testutil.NewTestDB(t)
	admin := testutil.CreateUser(t, db, "Ada", entity.RoleAdmin)
	teacher := testutil.CreateUser(t, db, "Tunde", entity.RoleTeacher)

	now := base
	svc := NewNotificationService(notifRepo.NewNotificationRepository(db), zap.NewNop(),
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	root, err := svc.Create(ctx, dto.CreateInput{SenderID: &admin.ID, RecipientID: teacher.ID, Title: "Hi", Body: "Hello", Type: entity.TypeMessage})
	require.NoError(t, err)

	// The replying writer's clock is behind.
	now = base.Add(-time.Hour)
	reply, err := svc.Reply(ctx, root.ID, teacher.ID, "Hi back")
	require.NoError(t, err)
	assert.False(t, reply.CreatedAt.Before(root.CreatedAt))

	list, err := svc.ListForUser(ctx, teacher.ID, dto.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, root.ID, list[0].ID)
	assert.Equal(t, reply.ID, list[1].ID)
}

func TestReplyRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.message(t, f.admin, f.teacher, "Timetable", "Please confirm Monday")

	_, err := f.svc.Reply(ctx, root.ID, f.parent.ID, "Me too")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "outsiders cannot see the thread")

	_, err = f.svc.Reply(ctx, uuid.New(), f.teacher.ID, "Hello?")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Reply(ctx, root.ID, f.teacher.ID, "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	system, err := f.svc.Create(ctx, dto.CreateInput{RecipientID: f.teacher.ID, Title: "Maintenance", Body: "Tonight", Type: entity.TypeSystem})
	require.NoError(t, err)
	_, err = f.svc.Reply(ctx, system.ID, f.teacher.ID, "ok")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestListForUserKeepsThreadsTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.message(t, f.admin, f.teacher, "Timetable", "Monday?")
	other := f.message(t, f.parent, f.teacher, "Progress", "How is Ade doing?")
	reply, err := f.svc.Reply(ctx, first.ID, f.teacher.ID, "Monday works")
	require.NoError(t, err)

	list, err := f.svc.ListForUser(ctx, f.teacher.ID, dto.ListFilter{})
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []uuid.UUID{first.ID, reply.ID, other.ID}, ids)

	again, err := f.svc.ListForUser(ctx, f.teacher.ID, dto.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, list, again)
}

func TestListForUserRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListForUser(context.Background(), f.teacher.ID, dto.ListFilter{Type: "fax"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRespond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Create(ctx, dto.CreateInput{
		SenderID:    &f.parent.ID,
		RecipientID: f.teacher.ID,
		Title:       "Extra lesson",
		Body:        "Saturday?",
		Type:        entity.TypeRequest,
	})
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, req.ID, f.parent.ID, true)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "only the recipient answers")

	answered, err := f.svc.Respond(ctx, req.ID, f.teacher.ID, true)
	require.NoError(t, err)
	require.NotNil(t, answered.Status)
	assert.Equal(t, entity.StatusAccepted, *answered.Status)

	_, err = f.svc.Respond(ctx, req.ID, f.teacher.ID, false)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	msg := f.message(t, f.parent, f.teacher, "Hi", "Hello")
	_, err = f.svc.Respond(ctx, msg.ID, f.teacher.ID, true)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUnreadCountAndMarkAllRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.message(t, f.admin, f.teacher, "One", "1")
	f.message(t, f.parent, f.teacher, "Two", "2")

	count, err := f.svc.UnreadCount(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	updated, err := f.svc.MarkAllRead(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	count, err = f.svc.UnreadCount(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearch(t *testing.T) {
	idx := &fakeIndexer{}
	f := newFixture(t, WithIndexer(idx))
	ctx := context.Background()

	mine := f.message(t, f.admin, f.teacher, "Timetable", "Monday")
	notMine := f.message(t, f.parent, f.admin, "Timetable", "Tuesday")
	idx.hits = []uuid.UUID{notMine.ID, mine.ID}

	got, err := f.svc.Search(ctx, f.teacher.ID, "timetable", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)

	empty, err := f.svc.Search(ctx, f.teacher.ID, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchWithoutIndexer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Search(context.Background(), f.teacher.ID, "timetable", 10)
	require.Error(t, err)
	assert.Equal(t, 503, apperror.MapErrorToStatus(err))
}

func TestThreadOrder(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	row := func(thread uuid.UUID, title string) entity.Notification {
		return entity.Notification{ID: uuid.New(), ThreadID: thread, Title: title}
	}

	// newest first, as the repository returns them
	in := []entity.Notification{
		row(t1, "t1 reply 2"),
		row(t2, "t2 root"),
		row(t1, "t1 reply 1"),
		row(t1, "t1 root"),
	}

	var titles []string
	for _, n := range threadOrder(in) {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"t1 root", "t1 reply 1", "t1 reply 2", "t2 root"}, titles)
}

func TestReplyTitle(t *testing.T) {
	assert.Equal(t, "Re: Payout", replyTitle("Payout"))
	assert.Equal(t, "Re: Payout", replyTitle("Re: Payout"))
	assert.Equal(t, "RE: Payout", replyTitle("RE: Payout"))
}
