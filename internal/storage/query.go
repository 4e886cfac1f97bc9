package storage

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azaliaz/bookstore/internal/domain/models"
)

// mongoBookFilter builds the conjunction of the supplied listing filters.
// The title is matched as a literal, case-insensitive substring.
func mongoBookFilter(q models.BookQuery) bson.D {
	filter := bson.D{}
	if q.Author != "" {
		filter = append(filter, bson.E{Key: "author", Value: q.Author})
	}
	if q.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: q.Category})
	}
	if q.Rating != nil {
		filter = append(filter, bson.E{Key: "rating", Value: *q.Rating})
	}
	if q.Title != "" {
		filter = append(filter, bson.E{Key: "title", Value: primitive.Regex{
			Pattern: regexp.QuoteMeta(q.Title),
			Options: "i",
		}})
	}
	return filter
}

func mongoFindOptions(q models.BookQuery) *options.FindOptions {
	opts := options.Find().
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	if q.SortBy != models.SortNone {
		dir := 1
		if q.SortOrder == models.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: string(q.SortBy), Value: dir}})
	}
	return opts
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`) //nolint:gochecknoglobals

// sqlBookWhere returns the WHERE clause (possibly empty) and its positional args.
func sqlBookWhere(q models.BookQuery) (string, []any) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if q.Author != "" {
		add("author = $%d", q.Author)
	}
	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.Rating != nil {
		add("rating = $%d", *q.Rating)
	}
	if q.Title != "" {
		add(`title ILIKE $%d ESCAPE '\'`, "%"+likeEscaper.Replace(q.Title)+"%")
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// sqlBookOrder maps the closed sort enum to an ORDER BY clause. Column names
// never come from the request.
func sqlBookOrder(q models.BookQuery) string {
	var column string
	switch q.SortBy {
	case models.SortPrice:
		column = "price"
	case models.SortRating:
		column = "rating"
	default:
		return ""
	}
	if q.SortOrder == models.Desc {
		return " ORDER BY " + column + " DESC"
	}
	return " ORDER BY " + column + " ASC"
}
