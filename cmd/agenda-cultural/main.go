package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/culturaviva/cv-services/agenda-cultural/internal/app"
	"github.com/culturaviva/cv-services/agenda-cultural/internal/commands"
	"github.com/culturaviva/cv-services/agenda-cultural/internal/registry"
)

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var indexHTML []byte

//go:embed static/admin.html
var adminHTML []byte

func main() {
	// Check for subcommands
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		commands.HashPassword(os.Args[2:])
		return
	}

	// .env is optional; deployments usually set real environment variables
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML settings file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	flag.BoolVar(&app.AdminMode, "admin", false, "Enable admin mode (default is serve mode)")
	flag.Parse()

	settings, err := app.LoadSettings(*configPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *port != 0 {
		settings.Port = *port
	}
	app.ApplySettings(settings)

	// Make embedded files available to app package
	app.StaticFiles = staticFiles
	app.IndexHTML = indexHTML
	app.AdminHTML = adminHTML
	if err := app.InitTemplates(); err != nil {
		log.Fatalf("Failed to parse page templates: %v", err)
	}

	// Load and validate auth credentials (if admin mode)
	if app.AdminMode {
		if err := app.LoadAuthCredentials(); err != nil {
			log.Fatalf("Failed to load auth credentials: %v", err)
		}
	}

	// Load the event catalog (with tmp check in admin mode)
	var loadErr error
	if app.AdminMode {
		loadErr = app.LoadCatalogWithTmpCheck()
	} else {
		loadErr = app.LoadCatalog()
	}
	if loadErr != nil {
		log.Fatalf("Failed to load event catalog: %v", loadErr)
	}

	// Participant registry is optional: without it the enrollment API
	// answers 503 and the service runs catalog-only.
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		reg, err := registry.Connect(context.Background(), dsn)
		if err != nil {
			log.Fatalf("Failed to connect participant registry: %v", err)
		}
		defer reg.Close()
		app.Registry = reg
		log.Printf("✅ Participant registry connected")
	} else {
		log.Printf("DATABASE_URL not set, enrollment API disabled")
	}

	// Setup routes
	http.HandleFunc("/", app.ServeIndex)
	http.HandleFunc(app.FeedPath, app.ServeFeed)
	http.HandleFunc("/api/config", app.GetConfig)
	http.HandleFunc("/api/download", app.HandleDownload)
	http.HandleFunc("/api/subscribe", app.HandleSubscribe)
	http.HandleFunc("/api/usuarios", app.HandleRegisterUser)
	http.HandleFunc("/api/inscricoes", app.HandleEnrollments)
	http.HandleFunc("/api/inscricoes/cancel", app.HandleCancel)
	http.HandleFunc("/api/checkin", app.HandleCheckIn)
	http.HandleFunc("/api/avaliacoes", app.HandleRatings)
	http.HandleFunc("/api/report", app.HandleReport)
	http.HandleFunc("/api/stats/categorias", app.HandleCategoryStats)
	http.Handle("/metrics", app.MetricsHandler())
	http.HandleFunc("/healthz", app.HandleHealthz)

	// Admin mode routes (protected with Basic Auth)
	if app.AdminMode {
		http.HandleFunc("/admin", app.RequireAuth(app.ServeAdmin))
		http.HandleFunc("/api/events/add", app.RequireAuth(app.AddEvent))
		http.HandleFunc("/api/events/delete", app.RequireAuth(app.DeleteEvent))
		http.HandleFunc("/api/events/reschedule", app.RequireAuth(app.RescheduleEvent))
		http.HandleFunc("/api/catalog/commit", app.RequireAuth(app.HandleCatalogCommit))
		http.HandleFunc("/api/catalog/revert", app.RequireAuth(app.HandleCatalogRevert))
		http.HandleFunc("/api/catalog/status", app.RequireAuth(app.HandleCatalogStatus))
		http.HandleFunc("/api/refresh", app.RequireAuth(app.HandleRefresh))
	}

	// Serve static files
	http.Handle("/static/", http.FileServer(http.FS(staticFiles)))

	mode := app.ModeServe
	if app.AdminMode {
		mode = app.ModeAdmin
	}

	// Bind before bootstrapping: the default feed URL points back at this
	// process, so the listener must exist before the first fetch.
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", settings.Port))
	if err != nil {
		log.Fatal(err)
	}

	feedURL := settings.FeedURL
	if feedURL == "" {
		feedURL = fmt.Sprintf("http://127.0.0.1:%d%s", settings.Port, app.FeedPath)
	}
	app.FeedLoader = app.NewLoader(feedURL, app.EventGrid)
	app.Bootstrap(app.FeedLoader)

	log.Printf("Starting Agenda Cultural in %s mode on http://localhost:%d", mode, settings.Port)
	log.Printf("Catalog file: %s", app.CatalogFile)
	log.Printf("Events feed: %s", feedURL)
	if err := http.Serve(ln, nil); err != nil {
		log.Fatal(err)
	}
}
