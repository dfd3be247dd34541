// Package definition scans a directory of SQL query definitions and
// classifies each file by whether a remote query id is embedded in its name.
//
// The filename is the durable record of a binding: once the remote service
// assigns an id, the file is renamed from {base}.sql to {base}___{id}.sql
// and never renamed again.
package definition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dune-sync/internal/domain"
)

// Inventory is the classified content of a queries directory.
type Inventory struct {
	Unbound   []domain.Definition // non-empty files without an id, SQL loaded
	Bound     []domain.Definition // files with an id, SQL not loaded
	Malformed []domain.Definition
	Empty     []domain.Definition // unbound files with whitespace-only bodies
}

// ByID returns the first bound definition for id. Entries are in
// lexical filename order, so the result is stable across runs.
func (inv *Inventory) ByID(id domain.QueryID) (domain.Definition, bool) {
	for _, d := range inv.Bound {
		if d.ID == id {
			return d, true
		}
	}
	return domain.Definition{}, false
}

// Scanner reads definitions from a single directory.
type Scanner struct {
	dir    string
	logger *slog.Logger
}

// NewScanner creates a Scanner for dir. A nil logger uses slog.Default().
func NewScanner(dir string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{dir: dir, logger: logger}
}

// Scan classifies every *.sql file in the directory. It does not modify the
// filesystem. Unreadable unbound files are logged and left out.
func (s *Scanner) Scan() (*Inventory, error) {
	return s.scan(true)
}

// ScanBound lists only the bound definitions, without reading any file
// content. Unbound files are ignored and, since a full Scan reports them,
// duplicates and malformed names are logged at debug level only.
func (s *Scanner) ScanBound() (*Inventory, error) {
	return s.scan(false)
}

func (s *Scanner) scan(full bool) (*Inventory, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read queries directory %s: %w", s.dir, err)
	}

	level := slog.LevelWarn
	if !full {
		level = slog.LevelDebug
	}

	inv := &Inventory{}
	seen := make(map[domain.QueryID]string)
	for _, entry := range entries {
		if entry.IsDir() || !IsDefinitionFile(entry.Name()) {
			continue
		}

		def := s.classify(entry.Name())
		switch def.Status {
		case domain.Bound:
			if first, dup := seen[def.ID]; dup {
				s.logger.Log(context.Background(), level, "duplicate query id in filenames; using first match",
					"query_id", def.ID, "file", def.FileName, "using", first)
				continue
			}
			seen[def.ID] = def.FileName
			inv.Bound = append(inv.Bound, def)
		case domain.Malformed:
			s.logger.Log(context.Background(), level, "skipping file with unparseable query id suffix", "file", def.FileName)
			inv.Malformed = append(inv.Malformed, def)
		default:
			if !full {
				continue
			}
			sql, err := ReadSQL(def.Path)
			if err != nil {
				s.logger.Error("skipping unreadable file", "file", def.FileName, "error", err)
				continue
			}
			if strings.TrimSpace(sql) == "" {
				s.logger.Info("skipping empty file", "file", def.FileName)
				inv.Empty = append(inv.Empty, def)
				continue
			}
			def.SQL = sql
			inv.Unbound = append(inv.Unbound, def)
		}
	}
	return inv, nil
}

func (s *Scanner) classify(name string) domain.Definition {
	base, id, status := ParseFilename(name)
	return domain.Definition{
		Path:        filepath.Join(s.dir, name),
		FileName:    name,
		BaseName:    base,
		DisplayName: DisplayName(base),
		Status:      status,
		ID:          id,
	}
}

// Rename renames an unbound definition so its filename embeds id and returns
// the updated definition. The target must not already exist.
func (s *Scanner) Rename(def domain.Definition, id domain.QueryID) (domain.Definition, error) {
	if def.Status != domain.Unbound {
		return def, domain.ErrValidation("file %s is already %s", def.FileName, def.Status)
	}
	newName := FormatFilename(def.BaseName, id)
	newPath := filepath.Join(filepath.Dir(def.Path), newName)
	if _, err := os.Stat(newPath); err == nil {
		return def, domain.ErrValidation("cannot rename %s: %s already exists", def.FileName, newName)
	}
	if err := os.Rename(def.Path, newPath); err != nil {
		return def, fmt.Errorf("rename %s to %s: %w", def.FileName, newName, err)
	}

	def.Path = newPath
	def.FileName = newName
	def.Status = domain.Bound
	def.ID = id
	return def, nil
}

// ReadSQL returns the content of a definition file.
func ReadSQL(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the scanned directory
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}
