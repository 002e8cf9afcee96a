package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/importer"
)

type ImportOutcome struct {
	Created int
	Skipped []importer.Skipped
}

func (o ImportOutcome) Summary() string {
	msg := fmt.Sprintf("%d prospectos importados", o.Created)
	if len(o.Skipped) > 0 {
		msg += fmt.Sprintf(", %d filas omitidas", len(o.Skipped))
	}
	return msg
}

// ImportProspects creates the parsed rows one by one in sheet order, owned
// by the signed-in agent. Rows the backend rejects are reported as skipped;
// an expired session or a cancelled context stops the import.
func (d *Desk) ImportProspects(ctx context.Context, rows [][]string) (ImportOutcome, error) {
	var out ImportOutcome
	if d.user.IsAdmin() {
		return out, forbidden("Solo los agentes pueden importar prospectos")
	}
	prospects, skipped, err := importer.ParseProspects(rows)
	if err != nil {
		return out, invalid(err.Error())
	}
	out.Skipped = skipped
	if len(prospects) == 0 {
		return out, invalid("El archivo no tiene filas válidas para importar")
	}

	for _, p := range prospects {
		form := ProspectForm{Nombre: p.Nombre, Apellido: p.Apellido, Celular: p.Celular}
		if _, err := d.CreateProspect(ctx, form); err != nil {
			if errors.Is(err, backend.ErrSessionExpired) || ctx.Err() != nil {
				return out, err
			}
			out.Skipped = append(out.Skipped, importer.Skipped{Line: p.Line, Reason: Message(err, "error al crear")})
			continue
		}
		out.Created++
	}
	return out, nil
}
