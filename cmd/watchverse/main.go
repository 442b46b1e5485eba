package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"watchverse/config"
	"watchverse/handlers"
	"watchverse/internal/database"
	"watchverse/internal/metrics"
	"watchverse/services/auth"
	"watchverse/services/catalog"
	"watchverse/services/profiles"
	"watchverse/services/relations"
	"watchverse/services/reviews"
	"watchverse/services/session"
	"watchverse/utils"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[main] invalid config: %v", err)
	}

	var logWriter io.Writer = os.Stdout
	if cfg.Log.File != "" {
		logWriter = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		log.SetOutput(logWriter)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logWriter, nil)))

	db, err := database.NewDB(database.Config{DatabasePath: cfg.Database.Path})
	if err != nil {
		log.Fatalf("[main] open database: %v", err)
	}
	defer db.Close()
	conn := db.Connection()

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey,
		cfg.Catalog.CacheSize, cfg.Catalog.CacheTTL)

	avatarStore, err := profiles.NewAvatarStore(afero.NewOsFs(), cfg.Storage.AvatarDir)
	if err != nil {
		log.Fatalf("[main] avatar store: %v", err)
	}
	profileSvc := profiles.NewService(conn, avatarStore, profiles.LogSender{}, cfg.Server.BaseURL)

	relationRepo := relations.NewRepository(conn)
	gateway := relations.NewGateway(conn)
	gateway.OnChange(func(string) { metrics.CountRelationChange() })
	reviewSvc := reviews.NewService(conn)

	authSvc, err := auth.NewService(cfg.Auth, cfg.Server, profileSvc)
	if err != nil {
		log.Fatalf("[main] auth service: %v", err)
	}
	resolver := session.NewResolver(profileSvc)

	pages := handlers.NewPages(catalogClient, relationRepo, reviewSvc, resolver)
	mutations := handlers.NewMutations(gateway, resolver)
	account := handlers.NewAccount(profileSvc, resolver)

	router := utils.NewRouter()
	authMiddleware := authSvc.Middleware()
	router.Use(authMiddleware.Trace)

	router.HandleFunc("/", pages.Home).Methods(http.MethodGet)
	router.HandleFunc("/search", pages.Search).Methods(http.MethodGet)
	router.HandleFunc("/watchlist", pages.Watchlist).Methods(http.MethodGet)
	router.HandleFunc("/watched", pages.Watched).Methods(http.MethodGet)
	router.HandleFunc("/my-lists", pages.MyLists).Methods(http.MethodGet)
	router.HandleFunc("/{mediaType:movies|series}", pages.Listing).Methods(http.MethodGet)
	router.HandleFunc("/{mediaType:movie|tv}/{id:[0-9]+}", pages.Detail).Methods(http.MethodGet)

	router.HandleFunc("/api/rows/{mediaType}/{genreID:[0-9]+}", pages.GenreRow).Methods(http.MethodGet)
	router.HandleFunc("/api/status", mutations.SetStatus).Methods(http.MethodPost)
	router.HandleFunc("/api/review", mutations.UpsertRating).Methods(http.MethodPost)
	router.HandleFunc("/api/review/delete", mutations.DeleteRating).Methods(http.MethodPost)

	router.HandleFunc("/profile", account.EditForm).Methods(http.MethodGet)
	router.HandleFunc("/profile/edit", account.EditForm).Methods(http.MethodGet)
	router.HandleFunc("/profile", account.EditSubmit).Methods(http.MethodPost)
	router.HandleFunc("/profile/password-reset", account.RequestReset).Methods(http.MethodPost)

	// Specific auth pages first; everything else under /auth/ belongs to
	// the session service (login, logout, user info).
	router.HandleFunc("/auth", account.AuthPage).Methods(http.MethodGet)
	router.HandleFunc("/auth/signup", account.Signup).Methods(http.MethodPost)
	router.HandleFunc("/auth/forgot-password", account.ForgotPassword).Methods(http.MethodPost)
	router.HandleFunc("/auth/update-password", account.UpdatePasswordForm).Methods(http.MethodGet)
	router.HandleFunc("/auth/update-password", account.UpdatePasswordSubmit).Methods(http.MethodPost)

	authRoutes, avatarRoutes := authSvc.Handlers()
	router.PathPrefix("/auth/").Handler(authRoutes)
	router.PathPrefix("/avatar/").Handler(avatarRoutes)

	router.PathPrefix("/static/").Handler(handlers.StaticHandler())
	router.PathPrefix("/avatars/").Handler(http.StripPrefix("/avatars/",
		http.FileServer(afero.NewHttpFs(avatarStore.Fs()).Dir("/"))))

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
