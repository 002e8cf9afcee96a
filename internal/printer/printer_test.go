package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func plain(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestStatusLines(t *testing.T) {
	plain(t)
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Success("snapshot escrito en %s", "/tmp/x")
	p.Warning("sin prórrogas")
	p.Step("descargando")
	p.Info("%d registros", 3)

	assert.Equal(t, "✓ snapshot escrito en /tmp/x\n! sin prórrogas\n→ descargando\n3 registros\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestError(t *testing.T) {
	plain(t)
	var errOut bytes.Buffer
	p := New(&bytes.Buffer{}, &errOut)

	err := p.Error("No se pudo iniciar sesión", "credenciales inválidas", "revise LOTDESK_EMAIL", "revise LOTDESK_PASSWORD")
	assert.EqualError(t, err, "No se pudo iniciar sesión")
	assert.Equal(t, "No se pudo iniciar sesión\n\ncredenciales inválidas\n\nIntente:\n  1. revise LOTDESK_EMAIL\n  2. revise LOTDESK_PASSWORD\n", errOut.String())

	errOut.Reset()
	_ = p.Error("falló", "")
	assert.Equal(t, "falló\n", errOut.String())
}
