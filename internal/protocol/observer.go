package protocol

// SUBSCRIBE (observer -> server). First message on the observer socket; may
// be re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id,omitempty"`
	Format          string `json:"format,omitempty"`
	// FieldEvery sends the full influence grid every N ticks; 0 disables it.
	FieldEvery int `json:"field_every,omitempty"`
}

// STATE (server -> observer), sent every tick.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest,omitempty"`

	Units   []UnitState  `json:"units"`
	Cities  []CityState  `json:"cities"`
	Flips   []CityFlip   `json:"flips,omitempty"`
	Spawns  []SpawnInfo  `json:"spawns,omitempty"`
	Deaths  []string     `json:"deaths,omitempty"`
	Field   *FieldState  `json:"field,omitempty"`
	Outcome OutcomeState `json:"outcome"`
}

type UnitState struct {
	ID         string     `json:"id"`
	Team       string     `json:"team"`
	Type       string     `json:"type"`
	Pos        [2]float64 `json:"pos"`
	Rotation   float64    `json:"rotation"`
	Health     float64    `json:"health"`
	MaxHealth  float64    `json:"max_health"`
	Morale     float64    `json:"morale"`
	Attacking  bool       `json:"attacking,omitempty"`
	Moving     bool       `json:"moving,omitempty"`
	Unsupplied bool       `json:"unsupplied,omitempty"`
}

type CityState struct {
	ID     string  `json:"id"`
	Owner  string  `json:"owner"`
	Anchor [2]int  `json:"anchor"`
	Stock  float64 `json:"stock"`
}

type CityFlip struct {
	City string `json:"city"`
	From string `json:"from"`
	To   string `json:"to"`
}

type SpawnInfo struct {
	City   string `json:"city"`
	UnitID string `json:"unit_id"`
	Team   string `json:"team"`
}

type FieldState struct {
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Revision uint64    `json:"revision"`
	Scores   []float64 `json:"scores"`
}

type OutcomeState struct {
	BlueUnits  int    `json:"blue_units"`
	RedUnits   int    `json:"red_units"`
	BlueCities int    `json:"blue_cities"`
	RedCities  int    `json:"red_cities"`
	Winner     string `json:"winner,omitempty"`
}
