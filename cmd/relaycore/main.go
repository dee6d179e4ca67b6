package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/relaycore/relaycore/config"
	"github.com/relaycore/relaycore/handlers"
	"github.com/relaycore/relaycore/internal/memstore"
	"github.com/relaycore/relaycore/models"
	"github.com/relaycore/relaycore/services/dedup"
	"github.com/relaycore/relaycore/services/livetv"
	"github.com/relaycore/relaycore/services/rank"
	"github.com/relaycore/relaycore/services/ratelimit"
	"github.com/relaycore/relaycore/services/releasecache"
	"github.com/relaycore/relaycore/services/search"
	"github.com/relaycore/relaycore/services/status"
	"github.com/relaycore/relaycore/services/usenet"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("relaycore backend starting...")

	configPath := os.Getenv("RELAYCORE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(settings.Log.File), 0o755); err != nil {
			log.Printf("warning: could not create log directory: %v", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSizeMB,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAgeDays,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// --- search orchestration core ---
	tracker := status.NewTracker(30*time.Second, 30*time.Minute)
	limits := ratelimit.NewRegistry(settings.RateLimit.IndexerRequestsPerMinute, settings.RateLimit.HostRequestsPerMinute, settings.RateLimit.BurstSize)
	cache := releasecache.New(settings.Cache.Capacity, settings.Cache.CacheTTL())
	stop := make(chan struct{})
	go cache.RunSweeper(time.Duration(settings.Cache.SweepInterval)*time.Second, stop)

	orchestrator := &search.Orchestrator{
		Tracker: tracker,
		Limits:  limits,
		Cache:   cache,
		Dedup:   dedup.New(),
		Ranker:  rank.New(rank.DefaultWeights()),
	}
	_ = orchestrator // registered drivers are supplied by an external indexer-driver collaborator (out of scope here)

	// --- live-TV streaming core ---
	accounts := memstore.NewAccounts(toLiveAccounts(settings.LiveTV.Accounts))
	lineups := memstore.NewLineups()
	providers := map[models.ProviderKind]livetv.Provider{
		models.ProviderStalker: livetv.NewStalkerProvider(),
		models.ProviderXStream: livetv.NewXStreamProvider(),
		models.ProviderM3U:     livetv.NewM3UProvider(),
		models.ProviderIPTVOrg: livetv.NewIPTVOrgProvider(),
	}
	resolver := livetv.NewResolver(accounts, providers)
	go resolver.URLs.RunSweeper(stop)

	liveTVHandler := &handlers.LiveTVHandler{
		Lineups:  lineups,
		Resolver: resolver,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}

	// --- usenet streaming core ---
	var nntpProviders []usenet.ProviderConfig
	for _, up := range settings.Usenet {
		if !up.Enabled {
			continue
		}
		nntpProviders = append(nntpProviders, usenet.ProviderConfig{
			Name:           up.Name,
			Host:           up.Host,
			Port:           up.Port,
			TLS:            up.TLS,
			Username:       up.Username,
			Password:       up.Password,
			MaxConnections: maxInt(up.MaxConnections, 1),
		})
	}
	if len(nntpProviders) == 0 {
		log.Printf("warning: no usenet providers configured; usenet streaming will be disabled")
	}
	var nntpManager *usenet.Manager
	var nntpPool *usenet.Pool
	if len(nntpProviders) > 0 {
		nntpPool, err = usenet.NewPool(nntpProviders)
		if err != nil {
			log.Printf("warning: failed to initialize usenet nntp pool: %v", err)
			nntpPool = nil
		} else {
			nntpManager = usenet.NewManager(nntpPool)
		}
	}
	mounts := memstore.NewMounts()
	usenetService := usenet.NewService(mounts, nntpManager)
	usenetHandler := &handlers.UsenetHandler{Service: usenetService}

	r := handlers.NewRouter(liveTVHandler, usenetHandler)
	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      withCommonMiddleware(r),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("shutdown signal received, cleaning up...")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if nntpPool != nil {
		nntpPool.Quit()
	}

	log.Println("shutdown complete")
}

func withCommonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func toLiveAccounts(entries []config.LiveAccountEntry) []models.LiveAccount {
	out := make([]models.LiveAccount, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.LiveAccount{
			ID:           e.ID,
			ProviderType: models.ProviderKind(e.ProviderType),
			PortalURL:    e.PortalURL,
			MAC:          e.MAC,
			Username:     e.Username,
			Password:     e.Password,
		})
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
