package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketplace/internal/config"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/task"
	"marketplace/pkg/utils"
)

type fakeDispatcher struct {
	tasks []string
}

func (f *fakeDispatcher) TryEnqueue(ctx context.Context, taskName string, payload interface{}) {
	f.tasks = append(f.tasks, taskName)
}

type fakeUsers struct {
	repository.UserRepository
	byEmail map[string]*model.User
	byID    map[uint]*model.User
	nextID  uint
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail: make(map[string]*model.User),
		byID:    make(map[uint]*model.User),
		nextID:  1,
	}
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error {
	if _, exists := f.byEmail[user.Email]; exists {
		return gorm.ErrDuplicatedKey
	}
	user.ID = f.nextID
	f.nextID++
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uint) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func newTestAuth() (*Service, *fakeUsers, *fakeDispatcher) {
	users := newFakeUsers()
	d := &fakeDispatcher{}
	tokens := NewTokenManager(config.JWTConfig{
		Secret:     "test-secret",
		Issuer:     "marketplace",
		Expire:     time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	return NewService(users, tokens, d), users, d
}

func registerReq() RegisterRequest {
	return RegisterRequest{
		Email:    "jo@example.com",
		Username: "jo",
		Password: "s3cret-pass",
		FullName: "Jo Smith",
	}
}

func TestRegister(t *testing.T) {
	svc, _, d := newTestAuth()

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	assert.Equal(t, model.RoleCustomer, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.HashedPassword)
	assert.Equal(t, []string{task.TaskSendWelcomeEmail}, d.tasks)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuth()

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registerReq())
	require.Error(t, err)
	assert.Equal(t, utils.CodeConflict, utils.GetErrorCode(err))
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuth()

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	user, tokens, err := svc.Login(context.Background(), LoginRequest{
		Email:    "jo@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", user.Email)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	resolved, err := svc.CurrentUser(context.Background(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestAuth()

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), LoginRequest{
		Email:    "jo@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, utils.CodeUnauthorized, utils.GetErrorCode(err))
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc, users, _ := newTestAuth()

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	users.byID[user.ID].IsActive = false

	_, _, err = svc.Login(context.Background(), LoginRequest{
		Email:    "jo@example.com",
		Password: "s3cret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, utils.CodeForbidden, utils.GetErrorCode(err))
}

func TestRefresh(t *testing.T) {
	svc, _, _ := newTestAuth()

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, tokens, err := svc.Login(context.Background(), LoginRequest{
		Email:    "jo@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	fresh, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)

	// an access token is not accepted as a refresh token
	_, err = svc.Refresh(context.Background(), tokens.AccessToken)
	require.Error(t, err)
	assert.Equal(t, utils.CodeUnauthorized, utils.GetErrorCode(err))
}

func TestCurrentUser_RejectsRefreshToken(t *testing.T) {
	svc, _, _ := newTestAuth()

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, tokens, err := svc.Login(context.Background(), LoginRequest{
		Email:    "jo@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = svc.CurrentUser(context.Background(), tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, utils.CodeUnauthorized, utils.GetErrorCode(err))
}

func TestTokenManager_BadToken(t *testing.T) {
	tokens := NewTokenManager(config.JWTConfig{
		Secret: "test-secret",
		Issuer: "marketplace",
		Expire: time.Hour,
	})

	_, err := tokens.Parse("garbage.token.value")
	require.Error(t, err)
	assert.Equal(t, utils.CodeUnauthorized, utils.GetErrorCode(err))
}
