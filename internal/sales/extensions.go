package sales

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/imaging"
	"github.com/phillip-england/lotdesk/internal/listing"
)

const (
	ExtensionPending  = "pendiente"
	ExtensionApproved = "aprobado"
	ExtensionRejected = "rechazado"

	// ExtensionWindow is how many days past fechaLimite the deadline shows.
	ExtensionWindow = 30
	// DefaultExtraDays prefills the approval form.
	DefaultExtraDays = 7
)

type ExtensionRow struct {
	backend.Extension
	ClienteNombre       string
	AsesorNombre        string
	AdministradorNombre string
	// FechaLimiteExtendida is fechaLimite plus the extension window.
	FechaLimiteExtendida string
	CanReview            bool
}

func (r ExtensionRow) DescripcionLabel() string {
	if strings.TrimSpace(r.Descripcion) == "" {
		return "Sin descripción"
	}
	return r.Descripcion
}

type ExtensionFilter struct {
	Search string
	Estado string
	Asesor string
	Fechas listing.DateRange
}

func (f ExtensionFilter) Match(r ExtensionRow) bool {
	return listing.MatchesText(f.Search, r.ClienteNombre, r.AsesorNombre, r.Descripcion) &&
		listing.MatchesSelect(f.Estado, r.Estado) &&
		listing.MatchesSelect(f.Asesor, r.Agent().String()) &&
		f.Fechas.Contains(r.FechaSolicitud)
}

func (d *Desk) extensionRow(e backend.Extension) ExtensionRow {
	if strings.TrimSpace(e.Estado) == "" {
		e.Estado = ExtensionPending
	}
	row := ExtensionRow{
		Extension:            e,
		ClienteNombre:        "Cliente no encontrado",
		AsesorNombre:         "Asesor no encontrado",
		AdministradorNombre:  "Pendiente",
		FechaLimiteExtendida: listing.AddDays(e.FechaLimite, ExtensionWindow),
		CanReview:            d.user.IsAdmin() && e.Estado == ExtensionPending,
	}
	if p, ok := d.cat.Prospect(e.ClienteID); ok {
		row.ClienteNombre = p.FullName()
	}
	if a, ok := d.cat.Agent(e.Agent()); ok {
		row.AsesorNombre = a.FullName()
	}
	if !e.AdministradorID.Empty() {
		if a, ok := d.cat.Agent(e.AdministradorID); ok {
			row.AdministradorNombre = a.FullName()
		}
	}
	return row
}

// Extensions lists prórroga requests, newest request first. Agents only see
// their own.
func (d *Desk) Extensions(ctx context.Context, f ExtensionFilter) ([]ExtensionRow, error) {
	if err := d.cat.Load(ctx, catalog.Extensions, catalog.Users, catalog.Prospects); err != nil {
		return nil, err
	}
	rows := make([]ExtensionRow, 0, len(d.cat.Extensions))
	for _, e := range d.cat.Extensions {
		if d.user.IsAgent() && !d.owns(e.Agent()) {
			continue
		}
		rows = append(rows, d.extensionRow(e))
	}
	rows = listing.Filter(rows, f.Match)
	return listing.SortBy(rows, listing.DateKey(func(r ExtensionRow) string { return r.FechaSolicitud }), true), nil
}

// ExtensionForm is the agent's request for more time on an old prospect.
type ExtensionForm struct {
	ClienteID   backend.ID
	Motivo      string
	ImagenURL   string
	FechaLimite string
	// Evidence is a raw photo upload. When set it replaces ImagenURL.
	Evidence []byte
}

// RequestExtension asks for a prórroga on a prospect in the antiguo band.
// The deadline defaults to the prospect's registration date.
func (d *Desk) RequestExtension(ctx context.Context, f ExtensionForm) (backend.Result, error) {
	motivo := strings.TrimSpace(f.Motivo)
	if motivo == "" {
		return backend.Result{}, invalid("Debe ingresar el motivo de la prórroga")
	}
	row, err := d.findProspect(ctx, f.ClienteID)
	if err != nil {
		return backend.Result{}, err
	}
	if !row.Actions.RequestExtension {
		return backend.Result{}, forbidden("Solo se puede solicitar prórroga para prospectos antiguos")
	}
	fecha := strings.TrimSpace(f.FechaLimite)
	if fecha == "" {
		fecha = row.Fecha
	}
	imagen := strings.TrimSpace(f.ImagenURL)
	if len(f.Evidence) > 0 {
		if imagen, err = imaging.EvidenceDataURL(f.Evidence); err != nil {
			return backend.Result{}, invalid(err.Error())
		}
	}
	return d.api().RequestExtension(ctx, backend.ExtensionRequest{
		ClienteID:   f.ClienteID,
		Descripcion: motivo,
		ImagenURL:   imagen,
		FechaLimite: fecha,
	})
}

type ReviewForm struct {
	Estado     string
	DiasExtra  string
	Comentario string
}

func (f ReviewForm) parse() (backend.ExtensionReview, error) {
	review := backend.ExtensionReview{Estado: f.Estado, Comentario: strings.TrimSpace(f.Comentario)}
	switch f.Estado {
	case ExtensionApproved:
		days, err := strconv.Atoi(strings.TrimSpace(f.DiasExtra))
		if err != nil || days <= 0 {
			return review, invalid("Ingrese un número válido de días extra")
		}
		review.DiasExtra = days
	case ExtensionRejected:
	default:
		return review, invalid("Seleccione una acción")
	}
	return review, nil
}

func (d *Desk) pendingExtension(ctx context.Context, id backend.ID) error {
	if err := d.cat.Load(ctx, catalog.Extensions); err != nil {
		return err
	}
	return d.checkPending(id)
}

// checkPending expects the extensions to be loaded already.
func (d *Desk) checkPending(id backend.ID) error {
	for _, e := range d.cat.Extensions {
		if e.ID != id {
			continue
		}
		if e.Estado != "" && e.Estado != ExtensionPending {
			return invalid("La solicitud ya fue revisada")
		}
		return nil
	}
	return ErrNotFound
}

// ReviewExtension approves or rejects one pending request. Admin only.
func (d *Desk) ReviewExtension(ctx context.Context, id backend.ID, f ReviewForm) (backend.Result, error) {
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden revisar prórrogas")
	}
	review, err := f.parse()
	if err != nil {
		return backend.Result{}, err
	}
	if err := d.pendingExtension(ctx, id); err != nil {
		return backend.Result{}, err
	}
	return d.api().ReviewExtension(ctx, id, review)
}

// BulkOutcome reports a bulk review per request id.
type BulkOutcome struct {
	Succeeded []backend.ID
	Failed    map[backend.ID]string
}

func (o BulkOutcome) Summary(estado string) string {
	verb := "aprobadas"
	if estado == ExtensionRejected {
		verb = "rechazadas"
	}
	msg := fmt.Sprintf("%d prórrogas %s correctamente", len(o.Succeeded), verb)
	if len(o.Failed) > 0 {
		msg += fmt.Sprintf(", %d con error", len(o.Failed))
	}
	return msg
}

// ReviewExtensions applies the same decision to every distinct pending id
// concurrently. Ids that are unknown or already reviewed land in Failed
// without reaching the backend. Individual failures are collected instead
// of aborting the batch.
func (d *Desk) ReviewExtensions(ctx context.Context, ids []backend.ID, f ReviewForm, concurrency int) (BulkOutcome, error) {
	out := BulkOutcome{Failed: map[backend.ID]string{}}
	if !d.user.IsAdmin() {
		return out, forbidden("Solo los administradores pueden revisar prórrogas")
	}
	if len(ids) == 0 {
		return out, invalid("Seleccione al menos una prórroga")
	}
	review, err := f.parse()
	if err != nil {
		return out, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if err := d.cat.Load(ctx, catalog.Extensions); err != nil {
		return out, err
	}

	seen := make(map[backend.ID]struct{}, len(ids))
	pending := make([]backend.ID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := d.checkPending(id); err != nil {
			out.Failed[id] = Message(err, "Solicitud no disponible")
			continue
		}
		pending = append(pending, id)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range pending {
		id := id
		g.Go(func() error {
			_, err := d.api().ReviewExtension(gctx, id, review)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed[id] = err.Error()
				return nil
			}
			out.Succeeded = append(out.Succeeded, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	sort.Slice(out.Succeeded, func(i, j int) bool { return out.Succeeded[i] < out.Succeeded[j] })
	return out, nil
}
