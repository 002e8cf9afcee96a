package cli

import (
	"github.com/spf13/cobra"

	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/envutil"
	"github.com/phillip-england/lotdesk/internal/security"
)

type setupOptions struct {
	force      bool
	backendURL string
	adminEmail string
	agentEmail string
}

func newSetupCommand(g *globals) *cobra.Command {
	opts := setupOptions{}
	defaults := config.Defaults()
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env with a session secret and devapi users",
		Long: `Write a .env for the dashboard and the development backend.

Generates the session secret and random passwords for the devapi admin and
agent users. Refuses to replace an existing file unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSetup(g, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing .env")
	cmd.Flags().StringVar(&opts.backendURL, "backend-url", defaults.Backend.BaseURL, "sales backend base URL")
	cmd.Flags().StringVar(&opts.adminEmail, "admin-email", defaults.DevAPI.AdminEmail, "devapi admin email")
	cmd.Flags().StringVar(&opts.agentEmail, "agent-email", defaults.DevAPI.AgentEmail, "devapi agent email")
	return cmd
}

// setupValues generates the secrets and returns the .env contents.
func setupValues(opts setupOptions) (map[string]string, error) {
	defaults := config.Defaults()
	secret, err := security.RandomSecret(32)
	if err != nil {
		return nil, err
	}
	adminPassword, err := security.RandomSecret(12)
	if err != nil {
		return nil, err
	}
	agentPassword, err := security.RandomSecret(12)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"LOTDESK_SESSION_SECRET":        secret,
		"API_BASE_URL":                  opts.backendURL,
		"CLIENT_ADDR":                   defaults.Dashboard.Addr,
		"API_ADDR":                      defaults.DevAPI.Addr,
		"LOTDESK_DEVAPI_DB_PATH":        "data/" + defaults.DevAPI.DBPath,
		"LOTDESK_DEVAPI_ADMIN_EMAIL":    opts.adminEmail,
		"LOTDESK_DEVAPI_ADMIN_PASSWORD": adminPassword,
		"LOTDESK_DEVAPI_AGENT_EMAIL":    opts.agentEmail,
		"LOTDESK_DEVAPI_AGENT_PASSWORD": agentPassword,
	}, nil
}

func runSetup(g *globals, opts setupOptions) error {
	values, err := setupValues(opts)
	if err != nil {
		return g.out.Error("No se pudieron generar las claves", err.Error())
	}
	if err := envutil.WriteDotEnv(g.envPath, values, opts.force); err != nil {
		return g.out.Error("No se pudo escribir "+g.envPath, err.Error(),
			"Use --force para reemplazar el archivo existente")
	}
	g.out.Success("Archivo %s creado", g.envPath)
	g.out.Info("  admin:  %s / %s", values["LOTDESK_DEVAPI_ADMIN_EMAIL"], values["LOTDESK_DEVAPI_ADMIN_PASSWORD"])
	g.out.Info("  agente: %s / %s", values["LOTDESK_DEVAPI_AGENT_EMAIL"], values["LOTDESK_DEVAPI_AGENT_PASSWORD"])
	g.out.Step("Siguiente paso: lotdesk run all")
	return nil
}
