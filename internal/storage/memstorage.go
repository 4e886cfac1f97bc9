package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
	storerrros "github.com/azaliaz/bookstore/internal/storage/errors"
)

type MemStorage struct {
	mu        sync.RWMutex
	usersStor map[string]models.User
	emails    map[string]string
	bookStor  map[string]models.Book
	order     []string
	now       func() time.Time
}

func New() *MemStorage {
	return &MemStorage{
		usersStor: make(map[string]models.User),
		emails:    make(map[string]string),
		bookStor:  make(map[string]models.Book),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (ms *MemStorage) Ping(context.Context) error { return nil }

func (ms *MemStorage) Close(context.Context) error { return nil }

func (ms *MemStorage) SaveUser(_ context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.emails[user.Email]; ok {
		return models.User{}, storerrros.ErrUserExists
	}
	user.UID = uuid.New().String()
	user.CreatedAt = ms.now()
	ms.usersStor[user.UID] = user
	ms.emails[user.Email] = user.UID
	log.Debug().Str("uid", user.UID).Msg("user saved")
	return user, nil
}

func (ms *MemStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	uid, ok := ms.emails[email]
	if !ok {
		return models.User{}, storerrros.ErrUserNotFound
	}
	return ms.usersStor[uid], nil
}

func (ms *MemStorage) SaveBook(_ context.Context, book models.Book) (models.Book, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	book.BID = uuid.New().String()
	book.CreatedAt = ms.now()
	book.UpdatedAt = book.CreatedAt
	ms.bookStor[book.BID] = book
	ms.order = append(ms.order, book.BID)
	return book, nil
}

func (ms *MemStorage) GetBook(_ context.Context, bid string) (models.Book, error) {
	log := logger.Get()
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	book, ok := ms.bookStor[bid]
	if !ok {
		log.Debug().Str("bid", bid).Msg("book not found")
		return models.Book{}, storerrros.ErrBookNoExist
	}
	return book, nil
}

func (ms *MemStorage) UpdateBook(_ context.Context, bid string, patch models.BookPatch) (models.Book, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	book, ok := ms.bookStor[bid]
	if !ok {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	patch.Apply(&book)
	book.UpdatedAt = ms.now()
	ms.bookStor[bid] = book
	return book, nil
}

func (ms *MemStorage) DeleteBook(_ context.Context, bid string) error {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.bookStor[bid]; !exists {
		log.Warn().Str("bid", bid).Msg("book not found")
		return storerrros.ErrBookNoExist
	}
	delete(ms.bookStor, bid)
	ms.order = slices.DeleteFunc(ms.order, func(id string) bool { return id == bid })
	log.Info().Str("bid", bid).Msg("book deleted successfully")
	return nil
}

// ListBooks walks books in insertion order, which stands in for the natural
// order of the database stores when no sort field is given.
func (ms *MemStorage) ListBooks(_ context.Context, q models.BookQuery) ([]models.Book, int64, error) {
	q = q.Normalize()
	ms.mu.RLock()
	result := make([]models.Book, 0, len(ms.order))
	for _, bid := range ms.order {
		if book := ms.bookStor[bid]; matchBook(book, q) {
			result = append(result, book)
		}
	}
	ms.mu.RUnlock()

	if q.SortBy != models.SortNone {
		slices.SortStableFunc(result, func(a, b models.Book) int {
			c := cmp.Compare(sortKey(a, q.SortBy), sortKey(b, q.SortBy))
			if q.SortOrder == models.Desc {
				return -c
			}
			return c
		})
	}

	total := int64(len(result))
	start := min(q.Offset(), len(result))
	end := min(start+q.Limit, len(result))
	return result[start:end], total, nil
}

func matchBook(book models.Book, q models.BookQuery) bool {
	if q.Author != "" && book.Author != q.Author {
		return false
	}
	if q.Category != "" && book.Category != q.Category {
		return false
	}
	if q.Rating != nil && book.Rating != *q.Rating {
		return false
	}
	if q.Title != "" && !strings.Contains(strings.ToLower(book.Title), strings.ToLower(q.Title)) {
		return false
	}
	return true
}

func sortKey(book models.Book, field models.SortField) float64 {
	if field == models.SortPrice {
		return book.Price
	}
	return book.Rating
}
