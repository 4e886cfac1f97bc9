package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
	storerrros "github.com/azaliaz/bookstore/internal/storage/errors"
)

func (s *Server) AddBook(ctx *gin.Context) {
	log := logger.Get()
	var req bookRequest
	if err := s.bindJSON(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	book, err := req.book()
	if err != nil {
		badRequest(ctx, err)
		return
	}
	book, err = s.Storage.SaveBook(ctx.Request.Context(), book)
	if err != nil {
		internalError(ctx, "Error creating book", err)
		return
	}
	uid, _ := UserID(ctx)
	log.Info().Str("uid", uid).Str("bid", book.BID).Msg("book created")
	ctx.JSON(http.StatusCreated, book)
}

func (s *Server) AllBooks(ctx *gin.Context) {
	q, err := s.bindListQuery(ctx)
	if err != nil {
		badRequest(ctx, err)
		return
	}
	books, total, err := s.Storage.ListBooks(ctx.Request.Context(), q)
	if err != nil {
		internalError(ctx, "Error fetching books", err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	ctx.JSON(http.StatusOK, models.BookList{
		Books:      books,
		Pagination: models.NewPagination(total, q),
	})
}

func (s *Server) BookInfo(ctx *gin.Context) {
	book, err := s.Storage.GetBook(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, storerrros.ErrBookNoExist) {
			writeError(ctx, http.StatusNotFound, msgBookNotFound)
			return
		}
		internalError(ctx, "Error fetching book", err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

// UpdateBook applies only the supplied fields. Concurrent updates of the same
// book are last-write-wins.
func (s *Server) UpdateBook(ctx *gin.Context) {
	log := logger.Get()
	var req bookPatchRequest
	if err := s.bindJSON(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		badRequest(ctx, err)
		return
	}
	book, err := s.Storage.UpdateBook(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		if errors.Is(err, storerrros.ErrBookNoExist) {
			writeError(ctx, http.StatusNotFound, msgBookNotFound)
			return
		}
		internalError(ctx, "Error updating book", err)
		return
	}
	uid, _ := UserID(ctx)
	log.Info().Str("uid", uid).Str("bid", book.BID).Msg("book updated")
	ctx.JSON(http.StatusOK, book)
}

func (s *Server) RemoveBook(ctx *gin.Context) {
	log := logger.Get()
	id := ctx.Param("id")
	if err := s.Storage.DeleteBook(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, storerrros.ErrBookNoExist) {
			writeError(ctx, http.StatusNotFound, msgBookNotFound)
			return
		}
		internalError(ctx, "Error deleting book", err)
		return
	}
	uid, _ := UserID(ctx)
	log.Info().Str("uid", uid).Str("bid", id).Msg("book deleted")
	ctx.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}
