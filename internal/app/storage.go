package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LoadCatalog loads the event catalog from the main file.
func LoadCatalog() error {
	return loadCatalogFromFile(CatalogFile)
}

// loadCatalogFromFile loads the catalog from a specific file.
func loadCatalogFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	var events []EventRecord
	if err := json.Unmarshal(data, &events); err != nil {
		return err
	}

	CatalogMutex.Lock()
	Catalog = events
	CatalogMutex.Unlock()

	return nil
}

// SaveCatalog saves the catalog to the main file.
func SaveCatalog() error {
	CatalogMutex.RLock()
	defer CatalogMutex.RUnlock()
	return saveCatalogLocked()
}

// saveCatalogLocked saves the catalog without locking (caller must hold lock)
func saveCatalogLocked() error {
	data, err := json.MarshalIndent(Catalog, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first, then rename into place
	tmpFile := CatalogFile + TmpSuffix
	if err := os.WriteFile(tmpFile, data, FilePermissions); err != nil {
		return err
	}
	return os.Rename(tmpFile, CatalogFile)
}

// saveTmpCatalog saves the current catalog to the tmp file (auto-save for admin mode)
func saveTmpCatalog() error {
	CatalogMutex.RLock()
	data, err := json.MarshalIndent(Catalog, "", "  ")
	CatalogMutex.RUnlock()
	if err != nil {
		return err
	}

	tmpFile := CatalogFile + TmpSuffix
	return os.WriteFile(tmpFile, data, FilePermissions)
}

// LoadCatalogWithTmpCheck loads the catalog from the tmp file if one exists,
// otherwise from the main file.
func LoadCatalogWithTmpCheck() error {
	tmpFile := CatalogFile + TmpSuffix

	if _, err := os.Stat(tmpFile); err == nil {
		log.Printf("⚠️  Found temporary catalog file: %s (loading unsaved changes)", tmpFile)
		return loadCatalogFromFile(tmpFile)
	}

	return LoadCatalog()
}

// CommitCatalog commits tmp changes: creates a backup and makes tmp the new main
func CommitCatalog() error {
	CatalogMutex.Lock()
	defer CatalogMutex.Unlock()

	tmpFile := CatalogFile + TmpSuffix

	if _, err := os.Stat(tmpFile); os.IsNotExist(err) {
		return fmt.Errorf("no temporary changes to commit")
	}

	// Ensure backup directory exists
	backupDirPath := filepath.Join(filepath.Dir(CatalogFile), BackupDir)
	if err := os.MkdirAll(backupDirPath, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Create backup of current catalog (if exists)
	if _, err := os.Stat(CatalogFile); err == nil {
		timestamp := time.Now().Unix()
		backupFile := filepath.Join(backupDirPath, fmt.Sprintf("%d_events.json%s", timestamp, BackupSuffix))
		if err := os.Rename(CatalogFile, backupFile); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("✅ Backup created: %s", backupFile)
	}

	// Make tmp file the new main file
	if err := os.Rename(tmpFile, CatalogFile); err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}

	log.Printf("✅ Changes committed to %s", CatalogFile)
	return nil
}

// RevertCatalog discards tmp changes and reloads from the main file.
func RevertCatalog() error {
	tmpFile := CatalogFile + TmpSuffix

	if _, err := os.Stat(tmpFile); os.IsNotExist(err) {
		return fmt.Errorf("no temporary changes to revert")
	}

	if err := os.Remove(tmpFile); err != nil {
		return fmt.Errorf("failed to remove tmp file: %w", err)
	}

	if err := LoadCatalog(); err != nil {
		return fmt.Errorf("failed to reload catalog: %w", err)
	}

	log.Printf("✅ Changes reverted, reloaded from %s", CatalogFile)
	return nil
}

// HasTmpCatalog checks if a temporary catalog file exists.
func HasTmpCatalog() bool {
	tmpFile := CatalogFile + TmpSuffix
	_, err := os.Stat(tmpFile)
	return err == nil
}

// UpdateCatalogEvent applies fn to the record with the given title and
// persists the catalog. Returns false if no such event exists.
func UpdateCatalogEvent(titulo string, fn func(*EventRecord)) bool {
	CatalogMutex.Lock()
	defer CatalogMutex.Unlock()

	for i := range Catalog {
		if Catalog[i].Title == titulo {
			fn(&Catalog[i])
			if err := saveCatalogLocked(); err != nil {
				log.Printf("Error saving catalog: %v", err)
			}
			return true
		}
	}
	return false
}

// FindCatalogEvent returns a copy of the record with the given title.
func FindCatalogEvent(titulo string) (EventRecord, bool) {
	CatalogMutex.RLock()
	defer CatalogMutex.RUnlock()

	for _, ev := range Catalog {
		if ev.Title == titulo {
			return ev, true
		}
	}
	return EventRecord{}, false
}

// CatalogEvents returns a copy of the catalog, optionally filtered by
// category code.
func CatalogEvents(categoria string) []EventRecord {
	CatalogMutex.RLock()
	defer CatalogMutex.RUnlock()

	events := make([]EventRecord, 0, len(Catalog))
	for _, ev := range Catalog {
		if categoria != "" && ev.Category != categoria {
			continue
		}
		events = append(events, ev)
	}
	return events
}
