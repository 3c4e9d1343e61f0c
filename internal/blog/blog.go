package blog

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrBlogNotFound = errors.New("blog not found")
	ErrInvalidBlog  = errors.New("blog validation failed")
	ErrUnknownOwner = errors.New("blog creator does not exist")
)

// Owner is the user who created a blog, as embedded in blog responses.
type Owner struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Blog struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Likes  int    `json:"likes"`
	User   *Owner `json:"user,omitempty"`
}

// MaxLikes is the largest value the likes column holds.
const MaxLikes = math.MaxInt32

var errMsgLikesTooLarge = fmt.Sprintf("likes must not exceed %d", MaxLikes)

func Validate(b Blog) error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidBlog)
	case strings.TrimSpace(b.URL) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidBlog)
	case b.Likes < 0:
		return fmt.Errorf("%w: likes must not be negative", ErrInvalidBlog)
	case b.Likes > MaxLikes:
		return fmt.Errorf("%w: %s", ErrInvalidBlog, errMsgLikesTooLarge)
	}
	return nil
}
