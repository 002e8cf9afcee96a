package dashboardapp

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/export"
	"github.com/phillip-england/lotdesk/internal/listing"
	"github.com/phillip-england/lotdesk/internal/middleware"
	"github.com/phillip-england/lotdesk/internal/sales"
)

// exporter builds the table for one module from the same filters its page
// reads, so a download always matches what is on screen minus pagination.
type exporter func(r *http.Request, desk *sales.Desk) (export.Table, error)

func exportProspects(r *http.Request, desk *sales.Desk) (export.Table, error) {
	f := prospectFilter(r)
	rows, err := desk.Prospects(r.Context(), f)
	if err != nil {
		return export.Table{}, err
	}
	return sales.ProspectsTable(rows, desk.ProspectFilterSummary(f)), nil
}

func exportClients(r *http.Request, desk *sales.Desk) (export.Table, error) {
	f := clientFilter(r)
	groups, err := desk.Clients(r.Context(), f)
	if err != nil {
		return export.Table{}, err
	}
	return sales.ClientsTable(groups, desk.ClientFilterSummary(f)), nil
}

func exportAgents(r *http.Request, desk *sales.Desk) (export.Table, error) {
	f := agentFilter(r)
	agents, err := desk.Agents(r.Context(), f)
	if err != nil {
		return export.Table{}, err
	}
	return sales.AgentsTable(agents, desk.AgentFilterSummary(f)), nil
}

func exportContracts(r *http.Request, desk *sales.Desk) (export.Table, error) {
	f := contractFilter(r)
	rows, err := desk.Contracts(r.Context(), f)
	if err != nil {
		return export.Table{}, err
	}
	return sales.ContractsTable(rows, desk.ContractFilterSummary(f)), nil
}

func exportTeams(r *http.Request, desk *sales.Desk) (export.Table, error) {
	rows, err := desk.Teams(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		return export.Table{}, err
	}
	return sales.TeamsTable(rows), nil
}

func exportExtensions(r *http.Request, desk *sales.Desk) (export.Table, error) {
	f := extensionFilter(r)
	rows, err := desk.Extensions(r.Context(), f)
	if err != nil {
		return export.Table{}, err
	}
	return sales.ExtensionsTable(rows, desk.ExtensionFilterSummary(f)), nil
}

func exportReservations(r *http.Request, desk *sales.Desk) (export.Table, error) {
	f := reservationFilter(r)
	rows, err := desk.Reservations(r.Context(), f)
	if err != nil {
		return export.Table{}, err
	}
	if r.URL.Query().Get("orden") == "invertido" {
		rows = listing.Reverse(rows)
	}
	return sales.ReservationsTable(rows, desk.ReservationFilterSummary(f)), nil
}

func exportRanking(r *http.Request, desk *sales.Desk) (export.Table, error) {
	view, err := desk.Ranking(r.Context(), rankingQuery(r))
	if err != nil {
		return export.Table{}, err
	}
	return sales.RankingTable(view, desk.RankingFilterSummary(view.Query)), nil
}

func (s *Server) exportRoute(build exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := chi.URLParam(r, "format")
		back := "/dashboard"
		if mod, ok := moduleOf(r); ok {
			back = "/" + mod
		}
		contentType, ok := export.ContentType(format)
		if !ok {
			redirectError(w, r, back, "Formato de exportación no soportado")
			return
		}
		desk := deskFrom(r)
		table, err := build(r, desk)
		if err != nil {
			s.fail(w, r, err, back, "No se pudo exportar")
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, table, desk.Now()); err != nil {
			if errors.Is(err, export.ErrEmpty) {
				redirectError(w, r, back, export.ErrEmpty.Error())
				return
			}
			s.logger.Error("export failed",
				zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
				zap.String("table", table.Name),
				zap.String("format", format),
				zap.Error(err),
			)
			redirectError(w, r, back, "No se pudo generar el archivo")
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(table.Name, format, desk.Now())+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = w.Write(buf.Bytes())
	}
}

// moduleOf is the first path segment, which names the module being exported.
func moduleOf(r *http.Request) (string, bool) {
	path := r.URL.Path
	if len(path) < 2 {
		return "", false
	}
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			return path[1:i], true
		}
	}
	return "", false
}
