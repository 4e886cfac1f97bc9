package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/azaliaz/bookstore/internal/config"
	"github.com/azaliaz/bookstore/internal/logger"
	"github.com/azaliaz/bookstore/internal/server"
	"github.com/azaliaz/bookstore/internal/storage"
)

type store interface {
	server.Storage
	Close(ctx context.Context) error
}

func main() {

	cfg, err := config.ReadConfig()
	if err != nil {
		log.Fatal(err)
	}
	log := logger.Get(cfg.Debug)
	if cfg.SecretDefault {
		log.Warn().Msg("JWT_SECRET is not set; using the built-in debug secret")
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		<-c

		log.Debug().Msg("ctx cancel; catch os signal")
		cancel()
	}()

	log.Debug().Str("addr", cfg.Addr).Str("store", cfg.Store).Bool("debug", cfg.Debug).Send()

	var stor store
	switch cfg.Store {
	case config.StoreMongo:
		stor, err = storage.NewMongo(ctx, cfg.DBDsn, cfg.DBName)
	case config.StorePostgres:
		if err = storage.Migrations(cfg.DBDsn, cfg.MigratePath); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		stor, err = storage.NewDB(ctx, cfg.DBDsn)
	default:
		stor = storage.New()
	}
	if err != nil {
		log.Error().Err(err).Str("store", cfg.Store).Msg("connecting to data base failed; falling back to memory")
		stor = storage.New()
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := stor.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("closing storage failed")
		}
	}()

	serv := server.New(*cfg, stor)
	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serv.Run(gCtx)
	})
	group.Go(func() error {
		<-gCtx.Done()
		return serv.ShutdownServer()
	})

	if err = group.Wait(); err != nil {
		log.Info().Str("stoping reason", err.Error()).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
