package sales

import (
	"context"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

const (
	RankingByAgent = "asesor"
	RankingByTeam  = "equipo"

	rankingTop = 5
)

type RankingView struct {
	Query backend.RankingQuery
	Items []backend.RankingItem
	Share []Share
	Total float64
}

// Share is one slice of the montoTotal distribution chart.
type Share struct {
	Label   string
	Amount  float64
	Percent float64
}

// RankingShares splits items into the first five by position plus an
// "Otros" slice for the rest. Otros is present whenever items is not empty.
func RankingShares(items []backend.RankingItem) ([]Share, float64) {
	if len(items) == 0 {
		return nil, 0
	}
	var total float64
	for _, it := range items {
		total += it.MontoTotal.Float()
	}
	pct := func(v float64) float64 {
		if total == 0 {
			return 0
		}
		return v / total * 100
	}

	top := items
	if len(top) > rankingTop {
		top = items[:rankingTop]
	}
	out := make([]Share, 0, len(top)+1)
	for _, it := range top {
		name := strings.TrimSpace(it.Nombre)
		if name == "" {
			name = "Sin nombre"
		}
		out = append(out, Share{Label: name, Amount: it.MontoTotal.Float(), Percent: pct(it.MontoTotal.Float())})
	}
	var others float64
	for _, it := range items[len(top):] {
		others += it.MontoTotal.Float()
	}
	out = append(out, Share{Label: "Otros", Amount: others, Percent: pct(others)})
	return out, total
}

// Ranking fetches the sales ranking for q. An unknown tipoRanking falls back
// to the per-agent list.
func (d *Desk) Ranking(ctx context.Context, q backend.RankingQuery) (RankingView, error) {
	if q.TipoRanking != RankingByTeam {
		q.TipoRanking = RankingByAgent
	}
	if strings.TrimSpace(q.Proyecto) == "" {
		q.Proyecto = listing.DefaultFilter
	}
	if err := d.cat.Load(ctx, catalog.Projects); err != nil {
		return RankingView{}, err
	}
	ranking, err := d.api().Ranking(ctx, q)
	if err != nil {
		return RankingView{}, err
	}
	items := ranking.PorAsesor
	if q.TipoRanking == RankingByTeam {
		items = ranking.PorEquipo
	}
	share, total := RankingShares(items)
	return RankingView{Query: q, Items: items, Share: share, Total: total}, nil
}

func (d *Desk) RankingFilterSummary(q backend.RankingQuery) []string {
	var out []string
	r := listing.DateRange{From: q.FechaInicio, To: q.FechaFin}
	if r.Active() {
		out = append(out, "Fechas: "+r.Summary())
	}
	if listing.Selected(q.Proyecto) {
		out = append(out, "Proyecto: "+d.cat.ProjectName(backend.ID(q.Proyecto)))
	}
	if q.TipoRanking == RankingByTeam {
		out = append(out, "Ranking por equipo")
	} else {
		out = append(out, "Ranking por asesor")
	}
	return out
}
