package blog

type AuthorBlogs struct {
	Author string `json:"author"`
	Blogs  int    `json:"blogs"`
}

type AuthorLikes struct {
	Author string `json:"author"`
	Likes  int    `json:"likes"`
}

type Stats struct {
	TotalLikes   int          `json:"totalLikes"`
	FavoriteBlog *Blog        `json:"favoriteBlog"`
	MostBlogs    *AuthorBlogs `json:"mostBlogs"`
	MostLikes    *AuthorLikes `json:"mostLikes"`
}

func ComputeStats(blogs []Blog) Stats {
	return Stats{
		TotalLikes:   TotalLikes(blogs),
		FavoriteBlog: FavoriteBlog(blogs),
		MostBlogs:    MostBlogs(blogs),
		MostLikes:    MostLikes(blogs),
	}
}

func TotalLikes(blogs []Blog) int {
	total := 0
	for _, b := range blogs {
		total += b.Likes
	}
	return total
}

// FavoriteBlog returns the blog with the most likes. On ties the earliest one in
// the list wins. Returns nil for an empty list.
func FavoriteBlog(blogs []Blog) *Blog {
	if len(blogs) == 0 {
		return nil
	}
	fav := blogs[0]
	for _, b := range blogs[1:] {
		if b.Likes > fav.Likes {
			fav = b
		}
	}
	return &fav
}

// MostBlogs returns the author with the most blogs. Ties go to the author who
// appears first in the list.
func MostBlogs(blogs []Blog) *AuthorBlogs {
	authors, counts := groupByAuthor(blogs, func(Blog) int { return 1 })
	author, count, ok := maxByAuthor(authors, counts)
	if !ok {
		return nil
	}
	return &AuthorBlogs{Author: author, Blogs: count}
}

// MostLikes returns the author whose blogs have the most likes in total. Ties go
// to the author who appears first in the list.
func MostLikes(blogs []Blog) *AuthorLikes {
	authors, likes := groupByAuthor(blogs, func(b Blog) int { return b.Likes })
	author, total, ok := maxByAuthor(authors, likes)
	if !ok {
		return nil
	}
	return &AuthorLikes{Author: author, Likes: total}
}

// groupByAuthor sums value(b) per author, keeping authors in first-appearance order.
func groupByAuthor(blogs []Blog, value func(Blog) int) ([]string, map[string]int) {
	var authors []string
	sums := make(map[string]int)
	for _, b := range blogs {
		if _, seen := sums[b.Author]; !seen {
			authors = append(authors, b.Author)
		}
		sums[b.Author] += value(b)
	}
	return authors, sums
}

func maxByAuthor(authors []string, sums map[string]int) (string, int, bool) {
	if len(authors) == 0 {
		return "", 0, false
	}
	best := authors[0]
	for _, author := range authors[1:] {
		if sums[author] > sums[best] {
			best = author
		}
	}
	return best, sums[best], true
}
