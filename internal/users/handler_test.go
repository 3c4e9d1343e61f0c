package users_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/users"
	"github.com/2beens/bloglist/pkg"
)

const weakPasswordMsg = "password must be six characters long and contain at least one number, one special character, one lowercase letter and one uppercase letter"

func setupUsersRouter(t *testing.T) (*mux.Router, *MockusersRepo, *metrics.Manager) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repoMock := NewMockusersRepo(ctrl)
	metricsManager := metrics.NewTestManager()

	r := mux.NewRouter()
	users.NewHandler(repoMock, bcrypt.MinCost, metricsManager).SetupRoutes(r)
	return r, repoMock, metricsManager
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var errResp pkg.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	return errResp.Error
}

func TestHandler_List(t *testing.T) {
	r, repoMock, _ := setupUsersRouter(t)
	repoMock.EXPECT().All(gomock.Any()).Return([]users.User{
		{
			ID:           1,
			Username:     "mluukkai",
			Name:         "Matti Luukkainen",
			PasswordHash: "$2a$10$hash",
			Blogs:        []users.BlogRef{{ID: 4, Title: "React patterns", URL: "https://reactpatterns.com/"}},
		},
		{ID: 2, Username: "hellas", Name: "Arto Hellas", Blogs: []users.BlogRef{}},
	}, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "$2a$10$hash")
	assert.JSONEq(t, `[
		{"id":1,"username":"mluukkai","name":"Matti Luukkainen","blogs":[{"id":4,"title":"React patterns","url":"https://reactpatterns.com/"}]},
		{"id":2,"username":"hellas","name":"Arto Hellas","blogs":[]}
	]`, rr.Body.String())
}

func TestHandler_List_StorageError(t *testing.T) {
	r, repoMock, _ := setupUsersRouter(t)
	repoMock.EXPECT().All(gomock.Any()).Return(nil, errors.New("db down"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", errorMessage(t, rr))
}

func TestHandler_Get(t *testing.T) {
	r, repoMock, _ := setupUsersRouter(t)

	repoMock.EXPECT().Get(gomock.Any(), 1).Return(&users.User{ID: 1, Username: "root", Blogs: []users.BlogRef{}}, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":1,"username":"root","name":"","blogs":[]}`, rr.Body.String())

	repoMock.EXPECT().Get(gomock.Any(), 2).Return(nil, users.ErrUserNotFound)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users/2", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users/not-an-id", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "malformatted id", errorMessage(t, rr))

	// beyond the SERIAL range
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users/3000000000", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "malformatted id", errorMessage(t, rr))
}

func TestHandler_NewUser(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		r, repoMock, metricsManager := setupUsersRouter(t)
		gomock.InOrder(
			repoMock.EXPECT().GetByUsername(gomock.Any(), "root").Return(nil, users.ErrUserNotFound),
			repoMock.EXPECT().
				Add(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, u users.User) (*users.User, error) {
					assert.Equal(t, "root", u.Username)
					assert.Equal(t, "Superuser", u.Name)
					assert.True(t, pkg.CheckPasswordHash("Sal@inen1", u.PasswordHash))
					u.ID = 11
					u.Blogs = []users.BlogRef{}
					return &u, nil
				}),
		)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `{"username":"root","name":"Superuser","password":"Sal@inen1"}`))

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.JSONEq(t, `{"id":11,"username":"root","name":"Superuser","blogs":[]}`, rr.Body.String())
		assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterUsersCreated))
	})

	t.Run("WeakPasswordCheckedFirst", func(t *testing.T) {
		r, repoMock, _ := setupUsersRouter(t)
		repoMock.EXPECT().GetByUsername(gomock.Any(), gomock.Any()).Times(0)
		repoMock.EXPECT().Add(gomock.Any(), gomock.Any()).Times(0)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `{"username":"ro","name":"Superuser","password":"salainen"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, weakPasswordMsg, errorMessage(t, rr))
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		r, repoMock, _ := setupUsersRouter(t)
		repoMock.EXPECT().GetByUsername(gomock.Any(), "root").Return(&users.User{ID: 1, Username: "root"}, nil)
		repoMock.EXPECT().Add(gomock.Any(), gomock.Any()).Times(0)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `{"username":"root","name":"Superuser","password":"Sal@inen1"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "username already exists", errorMessage(t, rr))
	})

	t.Run("UsernameTakenConcurrently", func(t *testing.T) {
		r, repoMock, _ := setupUsersRouter(t)
		repoMock.EXPECT().GetByUsername(gomock.Any(), "root").Return(nil, users.ErrUserNotFound)
		repoMock.EXPECT().Add(gomock.Any(), gomock.Any()).Return(nil, users.ErrUsernameTaken)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `{"username":"root","name":"Superuser","password":"Sal@inen1"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "username already exists", errorMessage(t, rr))
	})

	t.Run("UsernameTooShort", func(t *testing.T) {
		r, repoMock, _ := setupUsersRouter(t)
		repoMock.EXPECT().GetByUsername(gomock.Any(), "ro").Return(nil, users.ErrUserNotFound)
		repoMock.EXPECT().Add(gomock.Any(), gomock.Any()).Times(0)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `{"username":"ro","name":"Superuser","password":"Sal@inen1"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, errorMessage(t, rr), "username must be at least 3 characters long")
	})

	t.Run("StorageErrorOnLookup", func(t *testing.T) {
		r, repoMock, _ := setupUsersRouter(t)
		repoMock.EXPECT().GetByUsername(gomock.Any(), "root").Return(nil, errors.New("db down"))

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `{"username":"root","name":"Superuser","password":"Sal@inen1"}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		r, _, _ := setupUsersRouter(t)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, postJSON("/api/users", `[`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid request body", errorMessage(t, rr))
	})
}
