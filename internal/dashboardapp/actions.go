package dashboardapp

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/imaging"
	"github.com/phillip-england/lotdesk/internal/importer"
	"github.com/phillip-england/lotdesk/internal/sales"
)

// parseForm reads urlencoded and multipart bodies alike.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

func idParam(r *http.Request) backend.ID {
	return backend.ID(strings.TrimSpace(chi.URLParam(r, "id")))
}

// done flashes the backend's message when it sent one, otherwise fallback.
func done(w http.ResponseWriter, r *http.Request, back string, res backend.Result, fallback string) {
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = fallback
	}
	redirectMessage(w, r, back, msg)
}

// action wraps a mutation handler with form parsing and the shared
// success and failure redirects.
func (s *Server) action(fallbackBack, okMessage, failMessage string, run func(r *http.Request, desk *sales.Desk) (backend.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			redirectError(w, r, fallbackBack, "Formulario inválido")
			return
		}
		back := returnPath(r, fallbackBack)
		res, err := run(r, deskFrom(r))
		if err != nil {
			s.fail(w, r, err, back, failMessage)
			return
		}
		done(w, r, back, res, okMessage)
	}
}

func prospectForm(r *http.Request) sales.ProspectForm {
	return sales.ProspectForm{
		Nombre:   r.FormValue("nombre"),
		Apellido: r.FormValue("apellido"),
		Celular:  r.FormValue("celular"),
	}
}

func (s *Server) createProspect(w http.ResponseWriter, r *http.Request) {
	s.action("/prospectos", "Prospecto registrado", "No se pudo registrar el prospecto",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.CreateProspect(r.Context(), prospectForm(r))
		})(w, r)
}

func (s *Server) updateProspect(w http.ResponseWriter, r *http.Request) {
	s.action("/prospectos", "Prospecto actualizado", "No se pudo actualizar el prospecto",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.UpdateProspect(r.Context(), idParam(r), prospectForm(r))
		})(w, r)
}

func (s *Server) changeProspectAgent(w http.ResponseWriter, r *http.Request) {
	s.action("/prospectos", "Agente actualizado", "No se pudo cambiar el agente",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.ChangeProspectAgent(r.Context(), idParam(r), backend.ID(strings.TrimSpace(r.FormValue("agente"))))
		})(w, r)
}

func (s *Server) setFollowUp(w http.ResponseWriter, r *http.Request) {
	s.action("/prospectos", "Seguimiento actualizado", "No se pudo actualizar el seguimiento",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.SetFollowUp(r.Context(), idParam(r), r.FormValue("seguimiento"))
		})(w, r)
}

func (s *Server) registerContract(w http.ResponseWriter, r *http.Request) {
	s.action("/prospectos", "Contrato registrado", "No se pudo registrar el contrato",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.RegisterContract(r.Context(), idParam(r), sales.ContractForm{
				Proyecto:   r.FormValue("proyecto"),
				Lote:       r.FormValue("lote"),
				Manzano:    r.FormValue("manzano"),
				FechaFirma: r.FormValue("fechaFirma"),
				MetodoPago: r.FormValue("metodoPago"),
				Monto:      r.FormValue("monto"),
			})
		})(w, r)
}

// readUpload returns the named file's bytes, or nil when none was sent.
func readUpload(r *http.Request, field string, limit int64) ([]byte, string, error) {
	if r.MultipartForm == nil {
		return nil, "", nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)
	if header.Size == 0 {
		return nil, "", nil
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func (s *Server) requestExtension(w http.ResponseWriter, r *http.Request) {
	s.action("/prospectos", "Prórroga solicitada", "No se pudo solicitar la prórroga",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			evidence, _, err := readUpload(r, "evidencia", imaging.MaxUploadBytes)
			if err != nil {
				return backend.Result{}, &sales.ValidationError{Message: "No se pudo leer la imagen adjunta"}
			}
			return desk.RequestExtension(r.Context(), sales.ExtensionForm{
				ClienteID:   idParam(r),
				Motivo:      r.FormValue("motivo"),
				ImagenURL:   r.FormValue("imagenUrl"),
				FechaLimite: r.FormValue("fechaLimite"),
				Evidence:    evidence,
			})
		})(w, r)
}

func (s *Server) importProspects(w http.ResponseWriter, r *http.Request) {
	const back = "/prospectos"
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		redirectError(w, r, back, "Seleccione un archivo Excel para importar")
		return
	}
	data, name, err := readUpload(r, "archivo", maxUploadBytes)
	if err != nil || data == nil {
		redirectError(w, r, back, "Seleccione un archivo Excel para importar")
		return
	}
	rows, err := importer.ReadRows(bytes.NewReader(data), name)
	if err != nil {
		redirectError(w, r, back, err.Error())
		return
	}
	outcome, err := deskFrom(r).ImportProspects(r.Context(), rows)
	if err != nil {
		s.fail(w, r, err, back, "No se pudo importar el archivo")
		return
	}
	if outcome.Created == 0 {
		redirectError(w, r, back, outcome.Summary())
		return
	}
	redirectMessage(w, r, back, outcome.Summary())
}

func (s *Server) wallContract(w http.ResponseWriter, r *http.Request) {
	s.action("/clientes", "Muralla registrada", "No se pudo registrar la muralla",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.WallContract(r.Context(), sales.WallForm{
				ContratoID: backend.ID(strings.TrimSpace(r.FormValue("contratoId"))),
				MetodoPago: r.FormValue("metodoPago"),
				Monto:      r.FormValue("monto"),
			})
		})(w, r)
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	s.action("/equipos", "Equipo creado", "No se pudo crear el equipo",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.CreateTeam(r.Context(), sales.TeamForm{
				Nombre:   r.FormValue("nombre"),
				Miembros: r.Form["miembros"],
			})
		})(w, r)
}

func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	s.action("/equipos", "Equipo eliminado", "No se pudo eliminar el equipo",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.DeleteTeam(r.Context(), idParam(r), r.FormValue("confirmar") == "si")
		})(w, r)
}

func reviewForm(r *http.Request) sales.ReviewForm {
	return sales.ReviewForm{
		Estado:     r.FormValue("estado"),
		DiasExtra:  r.FormValue("diasExtra"),
		Comentario: r.FormValue("comentario"),
	}
}

func (s *Server) reviewExtension(w http.ResponseWriter, r *http.Request) {
	s.action("/prorrogas", "Prórroga revisada", "No se pudo revisar la prórroga",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.ReviewExtension(r.Context(), idParam(r), reviewForm(r))
		})(w, r)
}

func (s *Server) reviewExtensions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectError(w, r, "/prorrogas", "Formulario inválido")
		return
	}
	back := returnPath(r, "/prorrogas")
	ids := make([]backend.ID, 0, len(r.Form["ids"]))
	for _, id := range r.Form["ids"] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, backend.ID(id))
		}
	}
	form := reviewForm(r)
	outcome, err := deskFrom(r).ReviewExtensions(r.Context(), ids, form, s.cfg.Backend.Concurrency)
	if err != nil {
		s.fail(w, r, err, back, "No se pudieron revisar las prórrogas")
		return
	}
	if len(outcome.Failed) > 0 {
		redirectError(w, r, back, outcome.Summary(form.Estado))
		return
	}
	redirectMessage(w, r, back, outcome.Summary(form.Estado))
}

func reservationBack(r *http.Request) string {
	return "/reservas/" + chi.URLParam(r, "id")
}

func (s *Server) editLot(w http.ResponseWriter, r *http.Request) {
	s.action(reservationBack(r), "Lote actualizado", "No se pudo actualizar el lote",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.EditLot(r.Context(), idParam(r), r.FormValue("manzano"), r.FormValue("nroTerreno"))
		})(w, r)
}

// extendReservation handles the ampliar form: the fixed spans extend the
// reservation, a custom span schedules the signing instead.
func (s *Server) extendReservation(w http.ResponseWriter, r *http.Request) {
	s.action(reservationBack(r), "Reserva ampliada", "No se pudo ampliar la reserva",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			choice := strings.TrimSpace(r.FormValue("dias"))
			if choice == "otro" {
				days, err := sales.ParseDays(r.FormValue("diasPersonalizados"))
				if err != nil {
					return backend.Result{}, err
				}
				return desk.ScheduleSigning(r.Context(), idParam(r), days)
			}
			days, err := sales.ParseDays(choice)
			if err != nil {
				return backend.Result{}, err
			}
			return desk.Extend(r.Context(), idParam(r), days)
		})(w, r)
}

func (s *Server) signReservation(w http.ResponseWriter, r *http.Request) {
	s.action(reservationBack(r), "Reserva firmada", "No se pudo firmar la reserva",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.Sign(r.Context(), idParam(r), r.FormValue("metodoPago"), r.FormValue("monto"))
		})(w, r)
}

func (s *Server) declineReservation(w http.ResponseWriter, r *http.Request) {
	s.action(reservationBack(r), "Reserva declinada", "No se pudo declinar la reserva",
		func(r *http.Request, desk *sales.Desk) (backend.Result, error) {
			return desk.Decline(r.Context(), idParam(r), r.FormValue("accion"))
		})(w, r)
}
