package config

import (
	"cmp"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	defaultAddr        = ""
	defaultPort        = 3000
	defaultStore       = StoreMongo
	defaultDBDsn       = "mongodb://localhost:27017/bookstore"
	defaultDBName      = "bookstore"
	defaultMigratePath = "migrations"

	// FallbackSecret is only accepted in debug mode.
	FallbackSecret = "default-secret"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var (
	ErrMissingSecret = errors.New("JWT_SECRET is not set")
	ErrUnknownStore  = errors.New("unknown store driver")
)

type Config struct {
	Addr          string
	Debug         bool
	Store         string
	DBDsn         string
	DBName        string
	MigratePath   string
	JWTSecret     string
	SecretDefault bool
}

// ReadConfig parses command line flags and lets the environment override them.
func ReadConfig() (*Config, error) {
	return parse(flag.NewFlagSet(os.Args[0], flag.ExitOnError), os.Args[1:], os.Getenv)
}

func parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	var host, store, dbDsn, dbName, migratePath, secret string
	var port int
	var debug bool
	fs.StringVar(&host, "addr", defaultAddr, "flag to set the server startup host")
	fs.IntVar(&port, "port", defaultPort, "flag to set the server startup port")
	fs.BoolVar(&debug, "debug", false, "flag to set Debug logger level")
	fs.StringVar(&store, "store", defaultStore, "storage driver: mongo, postgres or memory")
	fs.StringVar(&dbDsn, "db", "", "database connection address")
	fs.StringVar(&dbName, "dbname", "", "mongo database name")
	fs.StringVar(&migratePath, "m", defaultMigratePath, "path to migrations")
	fs.StringVar(&secret, "secret", "", "token signing secret")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	host = cmp.Or(getenv("SERVER_HOST"), host)
	p := cmp.Or(getenv("PORT"), strconv.Itoa(port))
	port, err := strconv.Atoi(p)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", p, err)
	}
	if d := getenv("DEBUG"); d != "" {
		if debug, err = strconv.ParseBool(d); err != nil {
			return nil, fmt.Errorf("invalid DEBUG value %q: %w", d, err)
		}
	}

	store = strings.ToLower(cmp.Or(getenv("STORE_DRIVER"), store))
	switch store {
	case StoreMongo:
		dbDsn = cmp.Or(getenv("MONGODB_URI"), dbDsn, defaultDBDsn)
	case StorePostgres:
		dbDsn = cmp.Or(getenv("DB_DSN"), dbDsn)
	case StoreMemory:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	dbName = cmp.Or(getenv("DB_NAME"), dbName, dbNameFromURI(dbDsn), defaultDBName)
	migratePath = cmp.Or(getenv("MIGRATE_PATH"), migratePath)

	secret = cmp.Or(getenv("JWT_SECRET"), secret)
	var secretDefault bool
	if secret == "" {
		if !debug {
			return nil, ErrMissingSecret
		}
		secret, secretDefault = FallbackSecret, true
	}

	return &Config{
		Addr:          fmt.Sprintf("%s:%d", host, port),
		Debug:         debug,
		Store:         store,
		DBDsn:         dbDsn,
		DBName:        dbName,
		MigratePath:   migratePath,
		JWTSecret:     secret,
		SecretDefault: secretDefault,
	}, nil
}

func dbNameFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
