package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=users_test

const errMsgInternalError = "internal server error"

type usersRepo interface {
	All(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Add(ctx context.Context, user User) (*User, error)
}

type newUserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type Handler struct {
	repo           usersRepo
	passwordCost   int
	metricsManager *metrics.Manager
}

func NewHandler(repo usersRepo, passwordCost int, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		passwordCost:   passwordCost,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/users", handler.handleList).Methods("GET", "OPTIONS").Name("list-users")
	router.HandleFunc("/api/users", handler.handleNewUser).Methods("POST", "OPTIONS").Name("new-user")
	router.HandleFunc("/api/users/{id}", handler.handleGet).Methods("GET", "OPTIONS").Name("get-user")
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.list")
	defer span.End()

	users, err := handler.repo.All(ctx)
	if err != nil {
		log.Errorf("list users: %s", err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []User{}
	}

	pkg.WriteJSON(w, users, http.StatusOK)
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.get")
	defer span.End()

	id, err := pkg.ParseID(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Errorf("get user %d: %s", id, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, user, http.StatusOK)
}

// handleNewUser checks the password policy first, then username uniqueness,
// and only then hashes the password and validates the remaining fields.
func (handler *Handler) handleNewUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.new")
	defer span.End()

	var newUserReq newUserRequest
	if err := json.NewDecoder(r.Body).Decode(&newUserReq); err != nil {
		log.Tracef("new user, unmarshal json body: %s", err)
		pkg.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := ValidatePassword(newUserReq.Password); err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err := handler.repo.GetByUsername(ctx, newUserReq.Username)
	switch {
	case err == nil:
		pkg.WriteJSONError(w, ErrUsernameTaken.Error(), http.StatusBadRequest)
		return
	case !errors.Is(err, ErrUserNotFound):
		log.Errorf("new user, check username [%s]: %s", newUserReq.Username, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	passwordHash, err := pkg.HashPassword(newUserReq.Password, handler.passwordCost)
	if err != nil {
		log.Errorf("new user, hash password: %s", err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	newUser := User{
		Username:     newUserReq.Username,
		Name:         newUserReq.Name,
		PasswordHash: passwordHash,
	}
	if err := Validate(newUser); err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added, err := handler.repo.Add(ctx, newUser)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			pkg.WriteJSONError(w, ErrUsernameTaken.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("new user [%s]: %s", newUser.Username, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterUsersCreated.Inc()
	log.Debugf("new user %d [%s] created", added.ID, added.Username)

	pkg.WriteJSON(w, added, http.StatusCreated)
}
