package models

import (
	"math"
	"time"

	"github.com/azaliaz/bookstore/internal/domain/consts"
)

type User struct {
	UID          string    `json:"id,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Book struct {
	BID           string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Rating        float64   `json:"rating"`
	PublishedDate time.Time `json:"publishedDate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BookPatch carries the fields of a partial update. Nil fields are left untouched.
type BookPatch struct {
	Title         *string
	Author        *string
	Category      *string
	Price         *float64
	Rating        *float64
	PublishedDate *time.Time
}

func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Category == nil &&
		p.Price == nil && p.Rating == nil && p.PublishedDate == nil
}

// Apply writes the supplied fields of the patch onto book.
func (p BookPatch) Apply(book *Book) {
	if p.Title != nil {
		book.Title = *p.Title
	}
	if p.Author != nil {
		book.Author = *p.Author
	}
	if p.Category != nil {
		book.Category = *p.Category
	}
	if p.Price != nil {
		book.Price = *p.Price
	}
	if p.Rating != nil {
		book.Rating = *p.Rating
	}
	if p.PublishedDate != nil {
		book.PublishedDate = *p.PublishedDate
	}
}

type SortField string

const (
	SortNone   SortField = ""
	SortPrice  SortField = "price"
	SortRating SortField = "rating"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// BookQuery is a validated listing request. Empty string filters and a nil
// Rating impose no constraint.
type BookQuery struct {
	Author   string
	Category string
	Rating   *float64
	Title    string

	Page  int
	Limit int

	SortBy    SortField
	SortOrder SortOrder
}

// Normalize fills in defaults for zero pagination and sort order values.
func (q BookQuery) Normalize() BookQuery {
	if q.Page < 1 {
		q.Page = consts.DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = consts.DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = Asc
	}
	return q
}

// Offset saturates at math.MaxInt, so a page far past the end still reads as
// an empty window instead of overflowing.
func (q BookQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

func NewPagination(total int64, q BookQuery) Pagination {
	limit := int64(q.Limit)
	return Pagination{
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: (total + limit - 1) / limit,
	}
}

type BookList struct {
	Books      []Book     `json:"books"`
	Pagination Pagination `json:"pagination"`
}
