package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azaliaz/bookstore/internal/domain/consts"
	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
	storerrros "github.com/azaliaz/bookstore/internal/storage/errors"
)

const bookColumns = `bid, title, author, category, price, rating, published_date, created_at, updated_at`

type DBStorage struct {
	pool *pgxpool.Pool
}

func NewDB(ctx context.Context, addr string) (*DBStorage, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DBStorage{pool: pool}, nil
}

func (dbs *DBStorage) Ping(ctx context.Context) error {
	return dbs.pool.Ping(ctx)
}

func (dbs *DBStorage) Close(context.Context) error {
	dbs.pool.Close()
	return nil
}

func (dbs *DBStorage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	user.UID = uuid.New().String()
	err := dbs.pool.QueryRow(ctx,
		`INSERT INTO users (uid, email, pass) VALUES ($1, $2, $3) RETURNING created_at`,
		user.UID, user.Email, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return models.User{}, storerrros.ErrUserExists
		}
		log.Error().Err(err).Msg("failed to insert user")
		return models.User{}, err
	}
	return user, nil
}

func (dbs *DBStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var usr models.User
	row := dbs.pool.QueryRow(ctx, `SELECT uid, email, pass, created_at FROM users WHERE email = $1`, email)
	if err := row.Scan(&usr.UID, &usr.Email, &usr.PasswordHash, &usr.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storerrros.ErrUserNotFound
		}
		return models.User{}, err
	}
	return usr, nil
}

func scanBook(row pgx.Row) (models.Book, error) {
	var book models.Book
	err := row.Scan(&book.BID, &book.Title, &book.Author, &book.Category, &book.Price,
		&book.Rating, &book.PublishedDate, &book.CreatedAt, &book.UpdatedAt)
	return book, err
}

func (dbs *DBStorage) SaveBook(ctx context.Context, book models.Book) (models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	saved, err := scanBook(dbs.pool.QueryRow(ctx,
		`INSERT INTO books (bid, title, author, category, price, rating, published_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+bookColumns,
		uuid.New().String(), book.Title, book.Author, book.Category, book.Price, book.Rating, book.PublishedDate))
	if err != nil {
		log.Error().Err(err).Msg("save book failed")
		return models.Book{}, err
	}
	return saved, nil
}

func (dbs *DBStorage) GetBook(ctx context.Context, bid string) (models.Book, error) {
	if uuid.Validate(bid) != nil {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	book, err := scanBook(dbs.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE bid = $1`, bid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Book{}, storerrros.ErrBookNoExist
		}
		return models.Book{}, err
	}
	return book, nil
}

func (dbs *DBStorage) UpdateBook(ctx context.Context, bid string, patch models.BookPatch) (models.Book, error) {
	if uuid.Validate(bid) != nil {
		return models.Book{}, storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	sets := []string{"updated_at = now()"}
	args := []any{bid}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Author != nil {
		set("author", *patch.Author)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.Rating != nil {
		set("rating", *patch.Rating)
	}
	if patch.PublishedDate != nil {
		set("published_date", *patch.PublishedDate)
	}

	book, err := scanBook(dbs.pool.QueryRow(ctx,
		`UPDATE books SET `+strings.Join(sets, ", ")+` WHERE bid = $1 RETURNING `+bookColumns, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Book{}, storerrros.ErrBookNoExist
		}
		return models.Book{}, err
	}
	return book, nil
}

func (dbs *DBStorage) DeleteBook(ctx context.Context, bid string) error {
	log := logger.Get()
	if uuid.Validate(bid) != nil {
		return storerrros.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	res, err := dbs.pool.Exec(ctx, "DELETE FROM books WHERE bid = $1", bid)
	if err != nil {
		log.Error().Err(err).Msg("failed to delete book")
		return err
	}
	if res.RowsAffected() == 0 {
		log.Warn().Str("bid", bid).Msg("book not found")
		return storerrros.ErrBookNoExist
	}
	log.Info().Str("bid", bid).Msg("book deleted successfully")
	return nil
}

func (dbs *DBStorage) ListBooks(ctx context.Context, q models.BookQuery) ([]models.Book, int64, error) {
	log := logger.Get()
	q = q.Normalize()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	where, args := sqlBookWhere(q)
	var total int64
	if err := dbs.pool.QueryRow(ctx, `SELECT count(*) FROM books`+where, args...).Scan(&total); err != nil {
		log.Error().Err(err).Msg("failed to count books")
		return nil, 0, err
	}

	page := fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := dbs.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books`+where+sqlBookOrder(q)+page,
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		log.Error().Err(err).Msg("failed to get books from db")
		return nil, 0, err
	}
	defer rows.Close()

	books := make([]models.Book, 0, q.Limit)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			log.Error().Err(err).Msg("failed to scan data from db")
			return nil, 0, err
		}
		books = append(books, book)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func Migrations(dbDsn string, migrationsPath string) error {
	log := logger.Get()
	migratePath := fmt.Sprintf("file://%s", migrationsPath)
	m, err := migrate.New(migratePath, dbDsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations apply")
			return nil
		}
		return err
	}
	log.Info().Msg("all migrations apply")
	return nil
}
