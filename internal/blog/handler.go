package blog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/internal/auth"
	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=blog_test

const (
	errMsgNotCreator    = "only the creator can delete a blog"
	errMsgInvalidBody   = "invalid request body"
	errMsgLikesMissing  = "likes missing"
	errMsgInternalError = "internal server error"
)

type blogRepo interface {
	All(ctx context.Context) ([]Blog, error)
	Get(ctx context.Context, id int) (*Blog, error)
	Add(ctx context.Context, blog Blog, ownerID int) (*Blog, error)
	UpdateLikes(ctx context.Context, id, likes int) (*Blog, error)
	Delete(ctx context.Context, id int) error
}

type newBlogRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Likes  *int   `json:"likes"`
}

type updateLikesRequest struct {
	Likes *int `json:"likes"`
}

type Handler struct {
	repo           blogRepo
	metricsManager *metrics.Manager
}

func NewHandler(repo blogRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/blogs", handler.handleList).Methods("GET", "OPTIONS").Name("list-blogs")
	router.HandleFunc("/api/blogs", handler.handleNewBlog).Methods("POST", "OPTIONS").Name("new-blog")
	// must be registered before /api/blogs/{id}
	router.HandleFunc("/api/blogs/stats", handler.handleStats).Methods("GET", "OPTIONS").Name("blog-stats")
	router.HandleFunc("/api/blogs/{id}", handler.handleGet).Methods("GET", "OPTIONS").Name("get-blog")
	router.HandleFunc("/api/blogs/{id}", handler.handleUpdateLikes).Methods("PUT", "OPTIONS").Name("update-blog")
	router.HandleFunc("/api/blogs/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("delete-blog")
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blogs.list")
	defer span.End()

	blogs, err := handler.repo.All(ctx)
	if err != nil {
		log.Errorf("list blogs: %s", err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}
	if blogs == nil {
		blogs = []Blog{}
	}

	pkg.WriteJSON(w, blogs, http.StatusOK)
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blogs.get")
	defer span.End()

	id, err := pkg.ParseID(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBlogNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Errorf("get blog %d: %s", id, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, b, http.StatusOK)
}

func (handler *Handler) handleNewBlog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blogs.new")
	defer span.End()

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var newBlogReq newBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&newBlogReq); err != nil {
		log.Tracef("new blog, unmarshal json body: %s", err)
		pkg.WriteJSONError(w, errMsgInvalidBody, http.StatusBadRequest)
		return
	}

	newBlog := Blog{
		Title:  newBlogReq.Title,
		Author: newBlogReq.Author,
		URL:    newBlogReq.URL,
	}
	if newBlogReq.Likes != nil {
		newBlog.Likes = *newBlogReq.Likes
	}
	if err := Validate(newBlog); err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added, err := handler.repo.Add(ctx, newBlog, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUnknownOwner) {
			pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("add new blog [%s] for user %d: %s", newBlog.Title, identity.UserID, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterBlogsCreated.Inc()
	log.Debugf("new blog %d [%s] added by [%s]", added.ID, added.Title, identity.Username)

	pkg.WriteJSON(w, added, http.StatusCreated)
}

func (handler *Handler) handleUpdateLikes(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blogs.updateLikes")
	defer span.End()

	id, err := pkg.ParseID(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var updateReq updateLikesRequest
	if err := json.NewDecoder(r.Body).Decode(&updateReq); err != nil {
		log.Tracef("update blog %d, unmarshal json body: %s", id, err)
		pkg.WriteJSONError(w, errMsgInvalidBody, http.StatusBadRequest)
		return
	}
	if updateReq.Likes == nil {
		pkg.WriteJSONError(w, errMsgLikesMissing, http.StatusBadRequest)
		return
	}
	if *updateReq.Likes < 0 {
		pkg.WriteJSONError(w, "likes must not be negative", http.StatusBadRequest)
		return
	}
	if *updateReq.Likes > MaxLikes {
		pkg.WriteJSONError(w, errMsgLikesTooLarge, http.StatusBadRequest)
		return
	}

	updated, err := handler.repo.UpdateLikes(ctx, id, *updateReq.Likes)
	if err != nil {
		if errors.Is(err, ErrBlogNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Errorf("update blog %d likes: %s", id, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, updated, http.StatusOK)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blogs.delete")
	defer span.End()

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id, err := pkg.ParseID(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBlogNotFound) {
			pkg.WriteJSONError(w, ErrBlogNotFound.Error(), http.StatusNotFound)
			return
		}
		log.Errorf("delete blog %d, get: %s", id, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	ownerID := 0
	if b.User != nil {
		ownerID = b.User.ID
	}
	if err := auth.AuthorizeOwner(ctx, ownerID); err != nil {
		log.Tracef("user %d tried to delete blog %d owned by %d", identity.UserID, id, ownerID)
		pkg.WriteJSONError(w, errMsgNotCreator, http.StatusForbidden)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrBlogNotFound) {
			// deleted concurrently
			pkg.WriteJSONError(w, ErrBlogNotFound.Error(), http.StatusNotFound)
			return
		}
		log.Errorf("delete blog %d: %s", id, err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterBlogsDeleted.Inc()
	log.Debugf("blog %d deleted by [%s]", id, identity.Username)

	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blogs.stats")
	defer span.End()

	blogs, err := handler.repo.All(ctx)
	if err != nil {
		log.Errorf("blog stats, list blogs: %s", err)
		pkg.WriteJSONError(w, errMsgInternalError, http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, ComputeStats(blogs), http.StatusOK)
}
