package lora

import "fmt"

type ConnState string

const (
	StateOnline  ConnState = "online"
	StateOffline ConnState = "offline"
)

type GatewayState string

const (
	GatewayOK         GatewayState = "ok"
	GatewayDown       GatewayState = "caido"
	GatewayRestarting GatewayState = "reiniciando"
)

type Relays struct {
	Motor1  bool `json:"releMotor1"`
	Motor2  bool `json:"releMotor2"`
	Gateway bool `json:"releGateway"`
	Valve   bool `json:"releValvula"`
}

type Gateway struct {
	Alias string       `json:"alias"`
	IP    string       `json:"ip"`
	State GatewayState `json:"estado"`
}

// Actuator is one Lora unit as reported by the backend.
type Actuator struct {
	ID           string       `json:"id"`
	Alias        string       `json:"alias"`
	IP           string       `json:"ip"`
	Latitude     float64      `json:"latitud"`
	Longitude    float64      `json:"longitud"`
	State        ConnState    `json:"estado"`
	MotorOn      bool         `json:"motorEncendido"`
	Relays       Relays       `json:"relays"`
	GatewayState GatewayState `json:"estadoGateway"`
	Gateway      Gateway      `json:"gateway"`
}

// GatewayStatus prefers the top-level gateway state and treats a missing one as down.
func (a Actuator) GatewayStatus() GatewayState {
	if a.GatewayState != "" {
		return a.GatewayState
	}
	if a.Gateway.State != "" {
		return a.Gateway.State
	}
	return GatewayDown
}

type Action string

const (
	ActionPowerOn        Action = "encender"
	ActionPowerOff       Action = "apagar"
	ActionRestartGateway Action = "reiniciar"
)

func ParseAction(s string) (Action, error) {
	switch s {
	case "encender", "on", "power-on":
		return ActionPowerOn, nil
	case "apagar", "off", "power-off":
		return ActionPowerOff, nil
	case "reiniciar", "restart", "restart-gateway":
		return ActionRestartGateway, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

func (a Action) endpoint() string {
	switch a {
	case ActionPowerOn:
		return "encender-motor"
	case ActionPowerOff:
		return "apagar-motor"
	case ActionRestartGateway:
		return "reiniciar-gateway"
	default:
		return ""
	}
}

// Past is the participle used in success messages ("encendido").
func (a Action) Past() string {
	switch a {
	case ActionPowerOn:
		return "encendido"
	case ActionPowerOff:
		return "apagado"
	case ActionRestartGateway:
		return "reiniciado"
	default:
		return string(a)
	}
}

type GroupMember struct {
	Actuator Actuator `json:"actuador"`
}

type Group struct {
	ID      string        `json:"id"`
	Name    string        `json:"nombre"`
	Members []GroupMember `json:"GrupoActuador"`
}

func (g Group) MemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.Actuator.ID)
	}
	return ids
}

type NewGroup struct {
	Name      string   `json:"nombre"`
	CompanyID string   `json:"empresaId"`
	LoraIDs   []string `json:"loraIds"`
}

type Frequency string

const (
	FrequencyOnce     Frequency = "una_vez"
	FrequencyDaily    Frequency = "diario"
	FrequencyWeekdays Frequency = "dias_especificos"
)

type Schedule struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"grupoId"`
	Start     string    `json:"horaInicio"`
	End       string    `json:"horaFin"`
	Frequency Frequency `json:"frecuencia"`
	Days      []string  `json:"dias"`
	Active    bool      `json:"activo"`
	CreatedAt string    `json:"createdAt"`
}

type NewSchedule struct {
	GroupID   string    `json:"grupoId"`
	Start     string    `json:"horaInicio"`
	End       string    `json:"horaFin"`
	Frequency Frequency `json:"frecuencia"`
	Days      []string  `json:"dias,omitempty"`
}
