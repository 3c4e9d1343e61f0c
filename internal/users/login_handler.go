package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/internal/auth"
	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

const errMsgInvalidCredentials = "invalid username or password"

type userFinder interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type tokenSigner interface {
	SignToken(claims auth.Claims) (string, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type LoginHandler struct {
	users          userFinder
	tokenSigner    tokenSigner
	passwordCost   int
	metricsManager *metrics.Manager

	// compared against when the username is unknown, so both failure paths cost a bcrypt check
	decoyHashOnce sync.Once
	decoyHash     string
}

func NewLoginHandler(
	users userFinder,
	tokenSigner tokenSigner,
	passwordCost int,
	metricsManager *metrics.Manager,
) *LoginHandler {
	return &LoginHandler{
		users:          users,
		tokenSigner:    tokenSigner,
		passwordCost:   passwordCost,
		metricsManager: metricsManager,
	}
}

func (handler *LoginHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/login", handler.handleLogin).Methods("POST", "OPTIONS").Name("login")
}

func (handler *LoginHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.login")
	defer span.End()

	var loginReq loginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		log.Tracef("login, unmarshal json body: %s", err)
		pkg.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := handler.users.GetByUsername(ctx, loginReq.Username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		log.Errorf("login, get user [%s]: %s", loginReq.Username, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	passwordHash := handler.getDecoyHash()
	if user != nil {
		passwordHash = user.PasswordHash
	}
	passwordOK := pkg.CheckPasswordHash(loginReq.Password, passwordHash)
	if user == nil || !passwordOK {
		handler.metricsManager.CounterLoginFailures.Inc()
		log.Tracef("login failed for [%s]", loginReq.Username)
		pkg.WriteJSONError(w, errMsgInvalidCredentials, http.StatusUnauthorized)
		return
	}

	token, err := handler.tokenSigner.SignToken(auth.Claims{
		Username: user.Username,
		UserID:   user.ID,
	})
	if err != nil {
		log.Errorf("login, sign token for [%s]: %s", user.Username, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	log.Debugf("user %d [%s] logged in", user.ID, user.Username)

	pkg.WriteJSON(w, LoginResponse{
		Token:    token,
		Username: user.Username,
		Name:     user.Name,
	}, http.StatusOK)
}

func (handler *LoginHandler) getDecoyHash() string {
	handler.decoyHashOnce.Do(func() {
		hash, err := pkg.HashPassword(uuid.NewString(), handler.passwordCost)
		if err != nil {
			log.Errorf("login, create decoy hash: %s", err)
			return
		}
		handler.decoyHash = hash
	})
	return handler.decoyHash
}
