package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"    // loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/tablebook/tablebook/internal/config"
	"github.com/tablebook/tablebook/internal/handler"
	"github.com/tablebook/tablebook/internal/kv"
	"github.com/tablebook/tablebook/internal/repository"
	"github.com/tablebook/tablebook/internal/router"
	"github.com/tablebook/tablebook/internal/sampledata"
	"github.com/tablebook/tablebook/internal/session"
	"github.com/tablebook/tablebook/internal/state"
	"github.com/tablebook/tablebook/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional; the environment wins
	cfg := config.Load()
	ctx := context.Background()

	// Pick the durable medium: Redis when configured and reachable,
	// otherwise the file-backed store under the data directory.
	var medium kv.Store
	if rdb := config.NewRedisClient(); rdb != nil {
		medium = kv.NewRedisStore(rdb, "tablebook")
		log.Printf("storage medium: redis")
	} else {
		fs, err := kv.NewFileStore(cfg.DataDir, cfg.StorageQuota)
		if err != nil {
			log.Fatalf("open file store: %v", err)
		}
		medium = fs
		log.Printf("storage medium: file (%s)", cfg.DataDir)
	}

	store := storage.New(medium)
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("initialize store: %v", err)
	}

	reservations := repository.NewReservationRepo(store)
	users := repository.NewUserRepo(store)
	sessions := session.NewStore(ctx, medium, users)
	source := sampledata.NewClient(cfg.SampleAPIURL, cfg.SampleTimeout, cfg.SampleLimit)
	resState := state.NewReservationState(ctx, reservations, source)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, sessions), cfg.JWTSecret)
	router.RegisterReservations(e, handler.NewReservationHandler(resState, sessions), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
