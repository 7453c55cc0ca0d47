package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdesk/internal/handler"
	"taskdesk/internal/httpserver"
	"taskdesk/internal/model"
	"taskdesk/internal/service/auth"
	"taskdesk/internal/service/task"
	"taskdesk/internal/service/user"
	"taskdesk/internal/testutil"
	"taskdesk/pkg/config"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewMemStore()
	logger := zap.NewNop()
	authSvc := auth.NewService(store.Admins(), config.JWTConfig{Secret: "client-secret"},
		config.AuthConfig{VerifyPassword: true}, logger)

	srv := httptest.NewServer(httpserver.NewRouter(httpserver.Deps{
		AdminHandler: handler.NewAdminHandler(authSvc, user.NewService(store.Users(), logger), logger),
		TaskHandler:  handler.NewTaskHandler(task.NewService(store.Tasks(), store.Users(), logger), logger),
		Verifier:     authSvc,
		Logger:       logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FullFlow(t *testing.T) {
	ctx := context.Background()
	c := New(newAPI(t).URL + "/")

	_, err := c.ListUsers(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	token, err := c.Signup(ctx, "Root", "root@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, token, c.Token())

	userID, err := c.CreateUser(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	_, err = c.CreateUser(ctx, "Ana", "ana@x.com")
	var notice *NoticeError
	require.ErrorAs(t, err, &notice)
	assert.Equal(t, "User already exists with this email", notice.Message)

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, userID, users[0].ID)

	created, err := c.AddTask(ctx, userID, TaskInput{Title: "Write report", Description: "draft", Priority: "High"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, created.Task.Status)

	msg, err := c.CompleteTask(ctx, created.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done and Dusted!", msg)

	tasks, err := c.ListTasks(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.StatusCompleted, tasks[0].Status)
}

func TestClient_ErrorsCarryServerMessage(t *testing.T) {
	ctx := context.Background()
	c := New(newAPI(t).URL)
	_, err := c.Signup(ctx, "Root", "root@x.com", "pw")
	require.NoError(t, err)

	_, err = c.AddTask(ctx, "ghost", TaskInput{Title: "t", Description: "d"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "User not found", apiErr.Message)

	c.SetToken("stale")
	_, err = c.ListUsers(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid or expired token", apiErr.Message)
}

func TestClient_SigninUnknownEmailIsNotice(t *testing.T) {
	c := New(newAPI(t).URL)

	_, err := c.Signin(context.Background(), "nobody@x.com", "pw")
	var notice *NoticeError
	require.ErrorAs(t, err, &notice)
	assert.Equal(t, "No admin with this email", notice.Message)
	assert.Empty(t, c.Token())
}

func TestTokenFile_RoundTrip(t *testing.T) {
	f := TokenFile{Path: filepath.Join(t.TempDir(), "nested", "token")}

	token, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, f.Save("abc.def.ghi"))
	token, err = f.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	token, err = f.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
