// Package snapshot dumps every entity set the dashboard reads into one
// xz-compressed JSON document.
package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
)

const FormatVersion = 1

type Snapshot struct {
	Version      int                   `json:"version"`
	TakenAt      time.Time             `json:"takenAt"`
	Source       string                `json:"source,omitempty"`
	Agents       []backend.Agent       `json:"usuarios"`
	Projects     []backend.Project     `json:"proyectos"`
	Teams        []backend.Team        `json:"equipos"`
	Prospects    []backend.Prospect    `json:"prospectos"`
	AllProspects []backend.Prospect    `json:"todoProspectos"`
	Clients      []backend.ClientRow   `json:"clientes"`
	Reservations []backend.Reservation `json:"reservas"`
	Contracts    []backend.Contract    `json:"contratos"`
	Extensions   []backend.Extension   `json:"prorrogas"`
}

// Count is one line of a snapshot summary.
type Count struct {
	Kind  catalog.Kind
	Total int
}

func (s Snapshot) Counts() []Count {
	return []Count{
		{catalog.Users, len(s.Agents)},
		{catalog.Projects, len(s.Projects)},
		{catalog.Teams, len(s.Teams)},
		{catalog.Prospects, len(s.Prospects)},
		{catalog.AllProspects, len(s.AllProspects)},
		{catalog.Clients, len(s.Clients)},
		{catalog.Reservations, len(s.Reservations)},
		{catalog.Contracts, len(s.Contracts)},
		{catalog.Extensions, len(s.Extensions)},
	}
}

// Take loads every catalog set and copies it into a snapshot.
func Take(ctx context.Context, cat *catalog.Catalog, source string, now time.Time) (Snapshot, error) {
	if err := cat.Load(ctx, catalog.AllKinds...); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return Snapshot{
		Version:      FormatVersion,
		TakenAt:      now.UTC(),
		Source:       source,
		Agents:       cat.Agents,
		Projects:     cat.Projects,
		Teams:        cat.Teams,
		Prospects:    cat.Prospects,
		AllProspects: cat.AllProspects,
		Clients:      cat.Clients,
		Reservations: cat.Reservations,
		Contracts:    cat.Contracts,
		Extensions:   cat.Extensions,
	}, nil
}

func Write(w io.Writer, s Snapshot) error {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot: open xz: %w", err)
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = zw.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return zw.Close()
}

func Read(r io.Reader) (Snapshot, error) {
	zr, err := xz.NewReader(bufio.NewReader(r))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: open xz: %w", err)
	}
	var s Snapshot
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	if s.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("snapshot: unsupported version %d", s.Version)
	}
	return s, nil
}

// FileName is "lotdesk-YYYYMMDD-HHMMSS.json.xz".
func FileName(now time.Time) string {
	return "lotdesk-" + now.UTC().Format("20060102-150405") + ".json.xz"
}

// WriteFile writes the snapshot atomically into dir and returns its path.
func WriteFile(dir string, s Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(s.TakenAt))
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, s); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
