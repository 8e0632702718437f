package app

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Constants
const (
	DefaultCatalogFile = "data/events.json"
	BackupDir          = "backup"
	BackupSuffix       = ".backup"
	TmpSuffix          = ".tmp.json"
	FilePermissions    = 0644

	// Feed wire contract
	FeedPath          = "/data/events.json"
	DateLayout        = "2006-01-02T15:04:05"
	DisplayDateLayout = "02/01/2006 15:04"

	// Error messages
	ErrAdminModeDisabled    = "Admin mode disabled"
	ErrInvalidDateFormat    = "Invalid date format"
	ErrInvalidCategory      = "Invalid category"
	ErrInvalidFormat        = "Invalid format"
	ErrInternalServer       = "Internal server error"
	ErrFailedToSave         = "Failed to save catalog"
	ErrFailedToGenerateJSON = "Failed to generate JSON"
	ErrEventNotFound        = "Event not found"
	ErrRegistryUnavailable  = "Participant registry unavailable"

	// Mode strings
	ModeServe = "serve"
	ModeAdmin = "admin"

	// ICS defaults
	DefaultICSProductID = "-//CulturaViva//AgendaCultural//PT-BR"
	DefaultICSTimezone  = "America/Sao_Paulo"
)

// Settings is the YAML configuration file (config.yaml).
type Settings struct {
	Port    int    `yaml:"port"`     // listen port, default 8080
	FeedURL string `yaml:"feed_url"` // full URL of the published feed; empty = own listener
	Catalog string `yaml:"catalog"`  // path of the catalog file
	ICS     struct {
		ProductID string `yaml:"product_id"`
		Timezone  string `yaml:"timezone"`
	} `yaml:"ics"`
}

// LoadSettings reads the YAML settings file. A missing file is not an
// error: defaults apply.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(b, &s); err != nil {
			return s, err
		}
	} else if !os.IsNotExist(err) {
		return s, err
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.Catalog == "" {
		s.Catalog = DefaultCatalogFile
	}
	if s.ICS.ProductID == "" {
		s.ICS.ProductID = DefaultICSProductID
	}
	if s.ICS.Timezone == "" {
		s.ICS.Timezone = DefaultICSTimezone
	}
	return s, nil
}

// ApplySettings installs the loaded settings into package state.
func ApplySettings(s Settings) {
	if !filepath.IsAbs(s.Catalog) {
		if cwd, err := os.Getwd(); err == nil {
			s.Catalog = filepath.Join(cwd, s.Catalog)
		}
	}
	CatalogFile = s.Catalog
	ICSProductID = s.ICS.ProductID
	ICSTimezone = s.ICS.Timezone
}

// Global variables
var (
	CatalogFile  = DefaultCatalogFile
	Catalog      []EventRecord
	CatalogMutex sync.RWMutex
	AdminMode    bool

	ICSProductID = DefaultICSProductID
	ICSTimezone  = DefaultICSTimezone

	// EventGrid is the container region for rendered event cards.
	EventGrid = NewGrid()

	// FeedLoader performs feed fetches; set by main, re-run by /api/refresh.
	FeedLoader *Loader

	// Registry backs the enrollment API; nil runs the service catalog-only.
	Registry EnrollmentStore

	// Embedded files (set by main)
	StaticFiles interface{}
	IndexHTML   []byte
	AdminHTML   []byte
)

// CategoryLabels maps category codes to their display names.
var CategoryLabels = map[string]string{
	"musica":        "Música",
	"teatro":        "Teatro",
	"artes_visuais": "Artes Visuais",
	"danca":         "Dança",
	"literatura":    "Literatura",
	"cinema":        "Cinema",
}

func init() {
	// Resolve the catalog path against the working directory
	if cwd, err := os.Getwd(); err == nil {
		CatalogFile = filepath.Join(cwd, DefaultCatalogFile)
	}
}
