package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/azaliaz/bookstore/internal/domain/consts"
	"github.com/azaliaz/bookstore/internal/domain/models"
)

var isoLayouts = []string{ //nolint:gochecknoglobals
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func newValidator() *validator.Validate {
	valid := validator.New()
	valid.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			if name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]; name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	_ = valid.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// bcrypt only looks at the first 72 bytes and rejects anything longer.
	_ = valid.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= consts.MaxPasswordBytes
	})
	_ = valid.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := parseISODate(fl.Field().String())
		return err == nil
	})
	return valid
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationError is answered with 400 and the itemized field errors.
type validationError struct {
	fields []fieldError
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) *validationError {
	return &validationError{fields: []fieldError{{Field: field, Message: message}}}
}

func (s *Server) validate(req any) error {
	err := s.valid.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &validationError{}
	for _, fe := range verrs {
		out.fields = append(out.fields, fieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "notblank":
		return "must not be empty"
	case "iso8601":
		return "must be an ISO-8601 date"
	case "bcryptlen":
		return "must be at most " + strconv.Itoa(consts.MaxPasswordBytes) + " bytes long"
	case "min":
		if isString {
			return "must be at least " + fe.Param() + " characters long"
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return "must be at most " + fe.Param() + " characters long"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return "is invalid"
}

// bindJSON decodes the body and validates it in one go.
func (s *Server) bindJSON(ctx *gin.Context, req any) error {
	if err := ctx.ShouldBindJSON(req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return invalid(typeErr.Field, "must be a "+jsonKind(typeErr.Type))
		}
		return invalid("body", "must be a valid JSON object")
	}
	return s.validate(req)
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	case reflect.String:
		return "string"
	}
	return t.Kind().String()
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,bcryptlen"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type bookRequest struct {
	Title         *string  `json:"title" validate:"required,notblank"`
	Author        *string  `json:"author" validate:"required,notblank"`
	Category      *string  `json:"category" validate:"required,notblank"`
	Price         *float64 `json:"price" validate:"required,gte=0"`
	Rating        *float64 `json:"rating" validate:"required,gte=0,lte=5"`
	PublishedDate *string  `json:"publishedDate" validate:"required,iso8601"`
}

func (r bookRequest) book() (models.Book, error) {
	published, err := parseISODate(*r.PublishedDate)
	if err != nil {
		return models.Book{}, invalid("publishedDate", "must be an ISO-8601 date")
	}
	return models.Book{
		Title:         strings.TrimSpace(*r.Title),
		Author:        strings.TrimSpace(*r.Author),
		Category:      strings.TrimSpace(*r.Category),
		Price:         *r.Price,
		Rating:        *r.Rating,
		PublishedDate: published,
	}, nil
}

type bookPatchRequest struct {
	Title         *string  `json:"title" validate:"omitempty,notblank"`
	Author        *string  `json:"author" validate:"omitempty,notblank"`
	Category      *string  `json:"category" validate:"omitempty,notblank"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0"`
	Rating        *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	PublishedDate *string  `json:"publishedDate" validate:"omitempty,iso8601"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (r bookPatchRequest) patch() (models.BookPatch, error) {
	patch := models.BookPatch{
		Title:    trimmed(r.Title),
		Author:   trimmed(r.Author),
		Category: trimmed(r.Category),
		Price:    r.Price,
		Rating:   r.Rating,
	}
	if r.PublishedDate != nil {
		published, err := parseISODate(*r.PublishedDate)
		if err != nil {
			return models.BookPatch{}, invalid("publishedDate", "must be an ISO-8601 date")
		}
		patch.PublishedDate = &published
	}
	return patch, nil
}

type listRequest struct {
	Author    string   `form:"author"`
	Category  string   `form:"category"`
	Rating    *float64 `form:"rating" validate:"omitempty,gte=0,lte=5"`
	Title     string   `form:"title"`
	Page      *int     `form:"page" validate:"omitempty,min=1"`
	Limit     *int     `form:"limit" validate:"omitempty,min=1,max=100"`
	SortBy    string   `form:"sortBy" validate:"omitempty,oneof=price rating"`
	SortOrder string   `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

// bindListQuery reads the listing parameters. Out of range values are
// rejected, never clamped.
func (s *Server) bindListQuery(ctx *gin.Context) (models.BookQuery, error) {
	req := listRequest{
		Author:    ctx.Query("author"),
		Category:  ctx.Query("category"),
		Title:     ctx.Query("title"),
		SortBy:    ctx.Query("sortBy"),
		SortOrder: ctx.Query("sortOrder"),
	}
	bad := &validationError{}
	if v, ok := ctx.GetQuery("rating"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.Rating = &f
		} else {
			bad.fields = append(bad.fields, fieldError{Field: "rating", Message: "must be a number"})
		}
	}
	for _, p := range []struct {
		name string
		dst  **int
	}{{"page", &req.Page}, {"limit", &req.Limit}} {
		v, ok := ctx.GetQuery(p.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			bad.fields = append(bad.fields, fieldError{Field: p.name, Message: "must be an integer"})
			continue
		}
		*p.dst = &n
	}
	if len(bad.fields) > 0 {
		return models.BookQuery{}, bad
	}
	if err := s.validate(req); err != nil {
		return models.BookQuery{}, err
	}

	q := models.BookQuery{
		Author:    req.Author,
		Category:  req.Category,
		Rating:    req.Rating,
		Title:     req.Title,
		Page:      consts.DefaultPage,
		Limit:     consts.DefaultLimit,
		SortBy:    models.SortField(req.SortBy),
		SortOrder: models.SortOrder(req.SortOrder),
	}
	if req.Page != nil {
		q.Page = *req.Page
	}
	if req.Limit != nil {
		q.Limit = *req.Limit
	}
	return q.Normalize(), nil
}
