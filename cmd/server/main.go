package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"terrainview.dev/internal/api"
	"terrainview.dev/internal/bus"
	"terrainview.dev/internal/config"
	"terrainview.dev/internal/persistence/indexdb"
	persistlog "terrainview.dev/internal/persistence/log"
	"terrainview.dev/internal/registry"
	"terrainview.dev/internal/transport/ws"
)

func main() {
	var (
		addr           = flag.String("addr", "", "http listen address (overrides config)")
		configPath     = flag.String("config", "./server.yaml", "config file path")
		distDir        = flag.String("dist", "", "frontend dist directory (overrides config)")
		mapsDir        = flag.String("maps", "", "maps directory (overrides config)")
		dataDir        = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB      = flag.Bool("disable_db", false, "disable the sqlite event index")
		disableJournal = flag.Bool("disable_journal", false, "disable the JSONL event journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("config not found (%s); using defaults", *configPath)
		} else {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *distDir != "" {
		cfg.DistDir = *distDir
	}
	if *mapsDir != "" {
		cfg.MapsDir = *mapsDir
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *disableDB {
		cfg.EventIndex = false
	}
	if *disableJournal {
		cfg.Journal = false
	}

	if _, err := os.Stat(cfg.DistDir); err != nil {
		logger.Printf("warning: dist dir %s not found; run the frontend build first", cfg.DistDir)
	}

	b := bus.New(cfg.EventQueue)
	store := registry.NewStore(b, logger)

	apiSrv, err := api.NewServer(store, cfg.MapsDir, logger)
	if err != nil {
		logger.Fatalf("api: %v", err)
	}
	wsSrv := ws.NewServer(store, time.Duration(cfg.WriteTimeoutMs)*time.Millisecond, logger)

	ctx, cancel := signalContext()
	defer cancel()

	var journal *persistlog.EventLogger
	if cfg.Journal {
		journal = persistlog.NewEventLogger(cfg.DataDir)
		defer journal.Close()
	}
	var idx *indexdb.EventIndex
	if cfg.EventIndex {
		idx, err = indexdb.Open(filepath.Join(cfg.DataDir, "events.db"), logger)
		if err != nil {
			logger.Fatalf("open event index: %v", err)
		}
		defer idx.Close()
	}

	// Tap: a dedicated subscription mirrors every published update
	// into the journal and the index. Teardown order matters: the tap
	// must finish draining before the journal and index close, so the
	// defer blocks on tapDone.
	tap := b.Subscribe()
	tapDone := make(chan struct{})
	defer func() {
		tap.Close()
		<-tapDone
	}()
	go func() {
		defer close(tapDone)
		for u := range tap.C() {
			if journal != nil {
				if err := journal.WriteUpdate(u); err != nil {
					logger.Printf("journal: %v", err)
				}
			}
			idx.RecordUpdate(u)
		}
	}()

	mux := newMux(cfg, logger, store, b, apiSrv, wsSrv, idx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.CORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newMux(cfg config.Config, logger *log.Logger, store *registry.Store, b *bus.Bus, apiSrv *api.Server, wsSrv *ws.Server, idx *indexdb.EventIndex) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP terrainview_players Current number of players.\n")
		fmt.Fprintf(rw, "# TYPE terrainview_players gauge\n")
		fmt.Fprintf(rw, "terrainview_players %d\n", store.Len())

		fmt.Fprintf(rw, "# HELP terrainview_subscribers Current number of attached subscribers.\n")
		fmt.Fprintf(rw, "# TYPE terrainview_subscribers gauge\n")
		fmt.Fprintf(rw, "terrainview_subscribers %d\n", b.Subscribers())

		fmt.Fprintf(rw, "# HELP terrainview_events_published_total Total updates published on the bus.\n")
		fmt.Fprintf(rw, "# TYPE terrainview_events_published_total counter\n")
		fmt.Fprintf(rw, "terrainview_events_published_total %d\n", b.Published())

		fmt.Fprintf(rw, "# HELP terrainview_events_dropped_total Total updates dropped on slow subscriber queues.\n")
		fmt.Fprintf(rw, "# TYPE terrainview_events_dropped_total counter\n")
		fmt.Fprintf(rw, "terrainview_events_dropped_total %d\n", b.Dropped())

		if idx != nil {
			fmt.Fprintf(rw, "# HELP terrainview_index_dropped_total Total updates not indexed because the index queue was saturated.\n")
			fmt.Fprintf(rw, "# TYPE terrainview_index_dropped_total counter\n")
			fmt.Fprintf(rw, "terrainview_index_dropped_total %d\n", idx.DroppedTotal())
		}
	})
	if idx != nil {
		// Local-only admin endpoint over the read-model index.
		mux.HandleFunc("/admin/v1/events/recent", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := idx.Recent(r.Context(), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rows)
		})
	}

	apiSrv.Register(mux)
	mux.HandleFunc("/ws", wsSrv.Handler())
	mux.Handle("/maps/", http.StripPrefix("/maps/", http.FileServer(http.Dir(cfg.MapsDir))))
	mux.Handle("/", http.FileServer(http.Dir(cfg.DistDir)))
	return mux
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
