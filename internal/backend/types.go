package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a backend identifier. The API mixes numeric and string ids, so both
// decode into the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers, which is what the backend
// expects in request bodies.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }
func (id ID) Empty() bool    { return id == "" }

// Amount decodes a money value sent either as a JSON number or as a decimal
// string.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("decode amount %q: %w", s, err)
		}
		*a = Amount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) Float() float64 { return float64(a) }

// Text decodes any JSON scalar as a string. Lot numbers, phone numbers and
// waiting times arrive as numbers or strings depending on the record.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

func (t Text) String() string { return string(t) }

// Flag decodes booleans the backend sometimes sends as 0/1 or "true".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "1", "si", "sí":
		*f = true
	default:
		*f = false
	}
	return nil
}

type Agent struct {
	ID                 ID     `json:"id"`
	Nombre             string `json:"nombre"`
	Apellido           string `json:"apellido"`
	Telefono           Text   `json:"telefono"`
	Email              string `json:"email,omitempty"`
	Rol                string `json:"rol"`
	Equipo             string `json:"equipo"`
	EquipoID           ID     `json:"equipoId,omitempty"`
	CantidadProspectos int    `json:"cantidadProspectos"`
	CantidadContratos  int    `json:"cantidadContratos"`
}

func (a Agent) FullName() string {
	return strings.TrimSpace(a.Nombre + " " + a.Apellido)
}

type Project struct {
	ID     ID     `json:"id"`
	Nombre string `json:"nombre"`
}

type Prospect struct {
	ID          ID     `json:"id"`
	Nombre      string `json:"nombre"`
	Apellido    string `json:"apellido"`
	Celular     Text   `json:"celular"`
	Fecha       string `json:"fecha"`
	AgenteID    ID     `json:"agenteId"`
	Seguimiento string `json:"seguimiento"`
}

func (p Prospect) FullName() string {
	return strings.TrimSpace(p.Nombre + " " + p.Apellido)
}

// ClientRow is one signed contract line from /clientes. A person appears
// once per contract.
type ClientRow struct {
	ClienteID  ID     `json:"clienteId"`
	Nombre     string `json:"nombre"`
	Apellido   string `json:"apellido"`
	Telefono   Text   `json:"telefono"`
	Proyecto   string `json:"proyecto"`
	AsesorID   ID     `json:"asesorId"`
	Asesor     string `json:"asesor,omitempty"`
	Equipo     string `json:"equipo"`
	Amurallado Flag   `json:"amurallado"`
	FechaFirma string `json:"fechaFirma"`
	FechaPago  string `json:"fechaPago,omitempty"`
	ContratoID ID     `json:"contratoId"`
	Manzano    Text   `json:"manzano"`
	NroTerreno Text   `json:"nroTerreno"`
}

type Contract struct {
	ID         ID     `json:"id"`
	ClienteID  ID     `json:"clienteId"`
	AsesorID   ID     `json:"asesorId"`
	EquipoID   ID     `json:"equipoId"`
	ProyectoID ID     `json:"proyectoId"`
	Manzano    Text   `json:"manzano"`
	NroTerreno Text   `json:"nroTerreno"`
	Tipo       string `json:"tipo"`
	MetodoPago string `json:"metodoPago"`
	Monto      Amount `json:"monto"`
	FechaFirma string `json:"fechaFirma"`
	CreatedAt  string `json:"createdAt,omitempty"`
	Amurallado Flag   `json:"-"`
}

// UnmarshalJSON accepts both the Amurallado and amurallado spellings.
func (c *Contract) UnmarshalJSON(data []byte) error {
	type plain Contract
	var aux struct {
		plain
		Upper *Flag `json:"Amurallado"`
		Lower *Flag `json:"amurallado"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Contract(aux.plain)
	c.Amurallado = Flag((aux.Upper != nil && bool(*aux.Upper)) || (aux.Lower != nil && bool(*aux.Lower)))
	return nil
}

func (c Contract) MarshalJSON() ([]byte, error) {
	type plain Contract
	return json.Marshal(struct {
		plain
		Amurallado bool `json:"Amurallado"`
	}{plain(c), bool(c.Amurallado)})
}

type Member struct {
	ID       ID     `json:"id"`
	Nombre   string `json:"nombre,omitempty"`
	Apellido string `json:"apellido,omitempty"`
	Telefono Text   `json:"telefono,omitempty"`
}

// Members decodes team members sent as an array of ids, an array of member
// objects, or a comma separated id string.
type Members []Member

func (m *Members) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		var out Members
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, Member{ID: ID(part)})
			}
		}
		*m = out
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode miembros: %w", err)
	}
	out := make(Members, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var member Member
			if err := json.Unmarshal(item, &member); err != nil {
				return err
			}
			out = append(out, member)
			continue
		}
		var id ID
		if err := json.Unmarshal(item, &id); err != nil {
			return err
		}
		if !id.Empty() {
			out = append(out, Member{ID: id})
		}
	}
	*m = out
	return nil
}

func (m Members) IDs() []ID {
	out := make([]ID, 0, len(m))
	for _, member := range m {
		out = append(out, member.ID)
	}
	return out
}

type Team struct {
	ID       ID      `json:"id"`
	Nombre   string  `json:"nombre"`
	Miembros Members `json:"miembros"`
}

type Reservation struct {
	ID            ID     `json:"id"`
	ClienteID     ID     `json:"clienteId"`
	AsesorID      ID     `json:"asesorId"`
	ProyectoID    ID     `json:"proyectoId"`
	Manzano       Text   `json:"manzano"`
	NroTerreno    Text   `json:"nroTerreno"`
	FechaReserva  string `json:"fechaReserva"`
	HoraReserva   string `json:"horaReserva"`
	MetodoPago    string `json:"metodoPago"`
	MontoReserva  Amount `json:"montoReserva"`
	TiempoEspera  Text   `json:"tiempoEspera"`
	Estado        string `json:"estado"`
	Observaciones string `json:"observaciones"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

type Extension struct {
	ID                  ID     `json:"id"`
	ClienteID           ID     `json:"clienteId"`
	AgenteID            ID     `json:"agenteId"`
	AsesorID            ID     `json:"asesorId,omitempty"`
	AdministradorID     ID     `json:"administradorId"`
	Descripcion         string `json:"descripcion"`
	Estado              string `json:"estado"`
	FechaSolicitud      string `json:"fechaSolicitud"`
	FechaLimite         string `json:"fechaLimite"`
	FechaLimiteOriginal string `json:"fechaLimiteOriginal,omitempty"`
	FechaResolucion     string `json:"fechaResolucion,omitempty"`
	Comentario          string `json:"comentario,omitempty"`
	Imagen              string `json:"imagen,omitempty"`
	ImagenURL           string `json:"imagenUrl,omitempty"`
}

// Agent returns whichever of agenteId or asesorId the backend filled in.
func (e Extension) Agent() ID {
	if !e.AgenteID.Empty() {
		return e.AgenteID
	}
	return e.AsesorID
}

func (e Extension) Image() string {
	if e.ImagenURL != "" {
		return e.ImagenURL
	}
	return e.Imagen
}

type RankingItem struct {
	Posicion     int    `json:"posicion"`
	Nombre       string `json:"nombre"`
	Cantidad     int    `json:"cantidad"`
	MontoTotal   Amount `json:"montoTotal"`
	CantidadReal int    `json:"cantidadReal"`
	Promedio     Amount `json:"promedio,omitempty"`
}

type Ranking struct {
	PorAsesor []RankingItem `json:"porAsesor"`
	PorEquipo []RankingItem `json:"porEquipo"`
}

type RankingQuery struct {
	FechaInicio string
	FechaFin    string
	Proyecto    string
	TipoRanking string
}

// Dashboard is the aggregate returned by GET /dashboard.
type Dashboard struct {
	Estadisticas       DashboardStats     `json:"estadisticas"`
	Graficos           Charts             `json:"graficos"`
	RendimientoAgentes []AgentPerformance `json:"rendimientoAgentes"`
	ActividadReciente  []Activity         `json:"actividadReciente"`
	DatosRaw           json.RawMessage    `json:"datosRaw,omitempty"`
}

type DashboardStats struct {
	TotalProspectos int `json:"totalProspectos"`
	TotalClientes   int `json:"totalClientes"`
	TotalReservas   int `json:"totalReservas"`
	TotalContratos  int `json:"totalContratos"`
}

type Charts struct {
	ProgresoMensual   MonthlyProgress `json:"progresoMensual"`
	EstadosProspectos Breakdown       `json:"estadosProspectos"`
	ReservasPorEstado Breakdown       `json:"reservasPorEstado"`
}

type Series struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

type MonthlyProgress struct {
	Labels   []string `json:"labels"`
	Datasets []Series `json:"datasets"`
}

type Slice struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Breakdown is an ordered label/count list. It decodes from a plain
// {"label": count} object (keeping key order) or from a chart payload with
// labels and datasets[0].data.
type Breakdown []Slice

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	if data[0] == '[' {
		var slices []Slice
		if err := json.Unmarshal(data, &slices); err != nil {
			return err
		}
		*b = slices
		return nil
	}

	var chart struct {
		Labels   []string `json:"labels"`
		Datasets []struct {
			Data []int `json:"data"`
		} `json:"datasets"`
	}
	if err := json.Unmarshal(data, &chart); err == nil && len(chart.Labels) > 0 && len(chart.Datasets) > 0 {
		out := make(Breakdown, 0, len(chart.Labels))
		for i, label := range chart.Labels {
			count := 0
			if i < len(chart.Datasets[0].Data) {
				count = chart.Datasets[0].Data[i]
			}
			out = append(out, Slice{Label: label, Count: count})
		}
		*b = out
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode breakdown: %w", err)
	}
	var out Breakdown
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode breakdown: %w", err)
		}
		label, _ := tok.(string)
		var count float64
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("decode breakdown %q: %w", label, err)
		}
		out = append(out, Slice{Label: label, Count: int(count)})
	}
	*b = out
	return nil
}

func (b Breakdown) Total() int {
	total := 0
	for _, s := range b {
		total += s.Count
	}
	return total
}

type AgentPerformance struct {
	ID         ID     `json:"id"`
	Nombre     string `json:"nombre"`
	Apellido   string `json:"apellido"`
	Rol        string `json:"rol"`
	Prospectos int    `json:"prospectos"`
	Clientes   int    `json:"clientes"`
	Conversion int    `json:"conversion"`
}

type Activity struct {
	Tipo        string `json:"tipo"`
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
	Fecha       string `json:"fecha"`
	Icono       string `json:"icono"`
	Color       string `json:"color"`
}
