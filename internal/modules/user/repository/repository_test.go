package repository

import (
	"context"
	"testing"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/testutil"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByIDs(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	a := testutil.CreateUser(t, db, "ada", entity.RoleAdmin)
	b := testutil.CreateUser(t, db, "tunde", entity.RoleTeacher)
	ctx := context.Background()

	users, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSharesSession(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	guardian := testutil.CreateUser(t, db, "grace", entity.RoleGuardian)
	teacher := testutil.CreateUser(t, db, "tunde", entity.RoleTeacher)
	other := testutil.CreateUser(t, db, "musa", entity.RoleTeacher)
	ctx := context.Background()

	teacherID := teacher.ID
	require.NoError(t, db.Create(&entity.TeachingSession{ID: uuid.New(), GuardianID: guardian.ID, TeacherID: &teacherID, Status: "confirmed"}).Error)
	// A session still waiting for a teacher links nobody.
	require.NoError(t, db.Create(&entity.TeachingSession{ID: uuid.New(), GuardianID: guardian.ID, Status: entity.SessionPendingTeacher}).Error)

	linked, err := repo.SharesSession(ctx, guardian.ID, teacher.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = repo.SharesSession(ctx, guardian.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, linked)

	linked, err = repo.SharesSession(ctx, teacher.ID, guardian.ID)
	require.NoError(t, err)
	assert.False(t, linked, "arguments are guardian then teacher")
}
