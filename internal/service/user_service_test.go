package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

func newUserFixture() (*UserService, *userRepoStub, *notifierStub) {
	repo := newUserRepoStub(
		models.User{ID: admin.ID, Username: "ada", FirstName: "Ada", LastName: "Min", Role: models.RoleAdmin},
		models.User{ID: userA.ID, Username: "ann", FirstName: "Ann", LastName: "Lee", Role: models.RoleUser},
		models.User{ID: userB.ID, Username: "bob", FirstName: "Bob", LastName: "Kay", Role: models.RoleUser},
	)
	notifier := &notifierStub{}
	return NewUserService(repo, notifier, nil, nil, zap.NewNop()), repo, notifier
}

func strPtr(v string) *string { return &v }

func TestUserServiceList(t *testing.T) {
	svc, _, _ := newUserFixture()
	users, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestUserServiceUpdate(t *testing.T) {
	svc, repo, notifier := newUserFixture()

	updated, err := svc.Update(context.Background(), userA.ID, dto.UpdateUserRequest{
		FirstName: strPtr("  Anne "),
		Role:      strPtr("admin"),
		Password:  strPtr("new-secret"),
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, "Anne", updated.FirstName)
	assert.Equal(t, models.RoleAdmin, repo.users[userA.ID].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[userA.ID].PasswordHash), []byte("new-secret")))

	for _, track := range models.Tracks() {
		assert.Equal(t, 1, notifier.count(track), "renames refresh every track")
	}
}

func TestUserServiceUpdateWithoutNameChangeDoesNotNotify(t *testing.T) {
	svc, _, notifier := newUserFixture()
	_, err := svc.Update(context.Background(), userB.ID, dto.UpdateUserRequest{Username: strPtr("bobby")}, admin)
	require.NoError(t, err)
	assert.Equal(t, 0, notifier.count(models.TrackLive))
}

func TestUserServiceUpdateRules(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.Update(context.Background(), admin.ID, dto.UpdateUserRequest{Role: strPtr("user")}, admin)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Update(context.Background(), userA.ID, dto.UpdateUserRequest{Role: strPtr("owner")}, admin)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(context.Background(), "ghost", dto.UpdateUserRequest{FirstName: strPtr("G")}, admin)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceDelete(t *testing.T) {
	svc, repo, notifier := newUserFixture()

	err := svc.Delete(context.Background(), admin.ID, admin)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), userA.ID, admin))
	assert.Equal(t, []string{userA.ID}, repo.deleted)
	assert.Equal(t, 1, notifier.count(models.TrackLive))
	assert.Equal(t, 1, notifier.count(models.TrackTest))

	err = svc.Delete(context.Background(), userA.ID, admin)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceDeleteAllExceptSelf(t *testing.T) {
	svc, repo, notifier := newUserFixture()

	removed, err := svc.DeleteAllExceptSelf(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Len(t, repo.users, 1)
	assert.Contains(t, repo.users, admin.ID)
	assert.Equal(t, 1, notifier.count(models.TrackTest))
}
