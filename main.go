package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"layout-server/catalog"
	"layout-server/config"
	"layout-server/core"
	catalogapi "layout-server/handlers/api/catalog"
	"layout-server/handlers/api/checkpoints"
	"layout-server/handlers/api/workspaces"
	"layout-server/handlers/websocket"
	authMiddleware "layout-server/middleware"
	"layout-server/session"
	"layout-server/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type roomEntry struct {
	ID    string `json:"id"`
	Users int    `json:"users"`
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
		return opts
	}

	opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
		parsed, err := url.Parse(origin)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return false
		}
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
		return false
	}
	return opts
}

// handleRooms lists the caller's workspaces that have sockets connected.
func handleRooms(hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := make([]roomEntry, 0)
		for id, users := range hub.ActiveRooms(authMiddleware.OwnerID(r.Context())) {
			rooms = append(rooms, roomEntry{ID: id, Users: users})
		}
		sort.Slice(rooms, func(i, j int) bool {
			if rooms[i].Users == rooms[j].Users {
				return rooms[i].ID < rooms[j].ID
			}
			return rooms[i].Users > rooms[j].Users
		})

		render.JSON(w, r, rooms)
	}
}

func setupRouter(cfg config.Config, store core.WorkspaceStore, products *catalog.Catalog, sessions *session.Manager, hub *websocket.Hub) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(cors.Handler(corsOptions(cfg.CORSOrigins)))

	secret := []byte(cfg.JWTSecret)
	checkpointStore, hasCheckpoints := store.(core.CheckpointStore)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogapi.HandleListProducts(products))
			r.Get("/{productId}", catalogapi.HandleGetProduct(products))
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(secret))

			var extensions []func(chi.Router)
			if hasCheckpoints {
				extensions = append(extensions, checkpoints.WorkspaceRoutes(checkpointStore, sessions))
				r.Route("/checkpoints", func(r chi.Router) {
					checkpoints.Mount(r, checkpointStore, sessions)
				})
				logrus.Info("Checkpoint API routes registered")
			} else {
				logrus.Warn("Checkpoint API not available - requires SQLite storage")
			}

			r.Route("/workspaces", func(r chi.Router) {
				workspaces.Mount(r, store, sessions, products, extensions...)
			})
		})
	})

	r.With(authMiddleware.AuthJWT(secret)).Get("/api/rooms", handleRooms(hub))

	return r
}

func waitForShutdown(hub *websocket.Hub) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)

	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down")
	hub.Server().Close(nil)
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	cfg := config.Load()

	logLevel := flag.String("loglevel", cfg.LogLevel, "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", cfg.ListenAddr, "Set the server listen address")
	tokenSubject := flag.String("token", "", "Print a bearer token for this owner id and exit")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *tokenSubject != "" {
		if cfg.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
			os.Exit(1)
		}
		token, err := authMiddleware.CreateJWT([]byte(cfg.JWTSecret), *tokenSubject, *tokenSubject, 24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	products, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		logrus.WithField("path", cfg.CatalogPath).Fatal(err)
	}

	store := stores.GetStore(cfg)
	hub := websocket.NewHub([]byte(cfg.JWTSecret), cfg.CORSOrigins...)
	sessions := session.NewManager(store, hub)

	r := setupRouter(cfg, store, products, sessions, hub)
	r.Handle("/socket.io/", hub.Server().ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(hub)
}
