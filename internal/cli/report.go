package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/cache"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/sales"
	"github.com/phillip-england/lotdesk/internal/session"
	"github.com/phillip-england/lotdesk/internal/snapshot"
)

// login holds the backend credentials a report command signs in with.
// Empty flags fall back to LOTDESK_EMAIL and LOTDESK_PASSWORD.
type login struct {
	email    string
	password string
}

func (l *login) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.email, "email", "", "backend user email (default $LOTDESK_EMAIL)")
	cmd.Flags().StringVar(&l.password, "password", "", "backend user password (default $LOTDESK_PASSWORD)")
}

func (l login) credentials() (session.Credentials, error) {
	creds := session.Credentials{
		Email:    strings.TrimSpace(l.email),
		Password: l.password,
	}
	if creds.Email == "" {
		creds.Email = strings.TrimSpace(os.Getenv("LOTDESK_EMAIL"))
	}
	if creds.Password == "" {
		creds.Password = os.Getenv("LOTDESK_PASSWORD")
	}
	if creds.Email == "" || creds.Password == "" {
		return creds, errors.New("email and password are required")
	}
	return creds, nil
}

// signIn validates the credentials against the backend and returns the
// caller's view.
func (g *globals) signIn(ctx context.Context, cfg config.Config, logger *zap.Logger, l login) (*backend.UserClient, session.User, error) {
	creds, err := l.credentials()
	if err != nil {
		return nil, session.User{}, g.out.Error("Faltan credenciales", err.Error(),
			"Use --email y --password", "O defina LOTDESK_EMAIL y LOTDESK_PASSWORD")
	}
	api := newBackend(cfg, cache.NewMemory(), logger)
	user, err := api.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, session.User{}, g.out.Error("No se pudo iniciar sesión", err.Error(),
			"Verifique que el backend esté en "+cfg.Backend.BaseURL)
	}
	return api.As(creds), user, nil
}

type rankingOptions struct {
	login
	desde    string
	hasta    string
	proyecto string
	tipo     string
}

func newRankingCommand(g *globals) *cobra.Command {
	opts := rankingOptions{}
	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Print the sales ranking as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.environment()
			if err != nil {
				return err
			}
			defer syncLogger(logger)
			ctx := commandContext(cmd)

			api, _, err := g.signIn(ctx, cfg, logger, opts.login)
			if err != nil {
				return err
			}
			ranking, err := api.Ranking(ctx, backend.RankingQuery{
				FechaInicio: opts.desde,
				FechaFin:    opts.hasta,
				Proyecto:    opts.proyecto,
				TipoRanking: opts.tipo,
			})
			if err != nil {
				return g.out.Error("No se pudo obtener el ranking", err.Error())
			}
			items := ranking.PorAsesor
			if opts.tipo == "equipo" {
				items = ranking.PorEquipo
			}
			if len(items) == 0 {
				g.out.Warning("No hay ventas en el periodo seleccionado")
				return nil
			}
			return renderRanking(g.out.Out, items)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.desde, "desde", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.hasta, "hasta", "", "end date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.proyecto, "proyecto", "", "project id or name")
	cmd.Flags().StringVar(&opts.tipo, "tipo", "asesor", "asesor or equipo")
	return cmd
}

func renderRanking(w io.Writer, items []backend.RankingItem) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Nombre", "Ventas", "Ventas reales", "Monto total", "Promedio")
	for _, item := range items {
		if err := table.Append([]string{
			fmt.Sprint(item.Posicion),
			item.Nombre,
			fmt.Sprint(item.Cantidad),
			fmt.Sprint(item.CantidadReal),
			sales.Money(item.MontoTotal.Float()),
			sales.Money(item.Promedio.Float()),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

type snapshotOptions struct {
	login
	dir string
}

func newSnapshotCommand(g *globals) *cobra.Command {
	opts := snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Download every entity set into an xz-compressed JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.environment()
			if err != nil {
				return err
			}
			defer syncLogger(logger)
			ctx := commandContext(cmd)

			api, user, err := g.signIn(ctx, cfg, logger, opts.login)
			if err != nil {
				return err
			}
			g.out.Step("Descargando datos como %s", user.FullName())
			snap, err := snapshot.Take(ctx, catalog.New(api, cfg.Backend.Concurrency), cfg.Backend.BaseURL, time.Now())
			if err != nil {
				return g.out.Error("No se pudo descargar la información", err.Error())
			}
			path, err := snapshot.WriteFile(opts.dir, snap)
			if err != nil {
				return g.out.Error("No se pudo guardar el respaldo", err.Error())
			}
			for _, c := range snap.Counts() {
				g.out.Info("  %-16s %d", c.Kind, c.Total)
			}
			g.out.Success("Respaldo guardado en %s", path)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.dir, "dir", "snapshots", "output directory")
	return cmd
}
