package tuning

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the flat set of numeric knobs the battle core reads every tick.
// Values are clamped by Clamp before they reach the simulation.
type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Influence InfluenceTuning `yaml:"influence"`
	Morale    MoraleTuning    `yaml:"morale"`
	Combat    CombatTuning    `yaml:"combat"`
	Movement  MovementTuning  `yaml:"movement"`
	Supply    SupplyTuning    `yaml:"supply"`

	UnitTypes map[string]UnitType `yaml:"unit_types"`
}

type InfluenceTuning struct {
	MaxAbsScore             float64 `yaml:"max_abs_score"`
	DecayRate               float64 `yaml:"decay_rate"`
	LowMagnitudeDecayBoost  float64 `yaml:"low_magnitude_decay_boost"`
	HighMagnitudeDecayBoost float64 `yaml:"high_magnitude_decay_boost"`
	DecayEpsilon            float64 `yaml:"decay_epsilon"`

	AccumulationRate    float64 `yaml:"accumulation_rate"`
	InfluenceRadius     int     `yaml:"influence_radius"`
	UnitPowerMultiplier float64 `yaml:"unit_power_multiplier"`
	CityPower           float64 `yaml:"city_power"`
	BlockedSupplyPower  float64 `yaml:"blocked_supply_power"`

	ContestRadius    float64 `yaml:"contest_radius"`
	ContestFloor     float64 `yaml:"contest_floor"`
	StaticEnemyAlpha float64 `yaml:"static_enemy_alpha"`

	NeutralLow  float64 `yaml:"neutral_low"`
	NeutralHigh float64 `yaml:"neutral_high"`

	CoreRadius    int     `yaml:"core_radius"`
	UnitFloor     float64 `yaml:"unit_floor"`
	CoreFloor     float64 `yaml:"core_floor"`
	CityCoreFloor float64 `yaml:"city_core_floor"`

	CapThreshold      float64 `yaml:"cap_threshold"`
	GateUnits         bool    `yaml:"gate_units"`
	GateCities        bool    `yaml:"gate_cities"`
	GateBlockedSupply bool    `yaml:"gate_blocked_supply"`
}

type MoraleTuning struct {
	SampleRadius      int     `yaml:"sample_radius"`
	MaxScore          float64 `yaml:"max_score"`
	FriendlyExponent  float64 `yaml:"friendly_exponent"`
	HostileExponent   float64 `yaml:"hostile_exponent"`
	HillBonusPerGrade float64 `yaml:"hill_bonus_per_grade"`
	SlopeBonus        float64 `yaml:"slope_bonus"`
	UnsuppliedPenalty float64 `yaml:"unsupplied_penalty"`
}

type CombatTuning struct {
	ContactDistance       float64 `yaml:"contact_distance"`
	BaseDPS               float64 `yaml:"base_dps"`
	FacingToleranceDeg    float64 `yaml:"facing_tolerance_deg"`
	TurnRateDegPerSec     float64 `yaml:"turn_rate_deg_per_sec"`
	EngageGrace           float64 `yaml:"engage_grace"`
	MoraleDamageScale     float64 `yaml:"morale_damage_scale"`
	MoraleMitigationScale float64 `yaml:"morale_mitigation_scale"`
}

type MovementTuning struct {
	UnitSpeed              float64            `yaml:"unit_speed"`
	TurnRateDegPerSec      float64            `yaml:"turn_rate_deg_per_sec"`
	FacingToleranceDeg     float64            `yaml:"facing_tolerance_deg"`
	TerrainTransitionPause float64            `yaml:"terrain_transition_pause"`
	MaxExpansions          int                `yaml:"max_expansions"`
	MaxWaypoints           int                `yaml:"max_waypoints"`
	TerrainCosts           map[string]float64 `yaml:"terrain_costs"`
}

type SupplyTuning struct {
	GenerationInterval float64 `yaml:"generation_interval"`
	PerUnitThreshold   float64 `yaml:"per_unit_threshold"`
	SeverThreshold     float64 `yaml:"sever_threshold"`
	SpawnSearchRadius  int     `yaml:"spawn_search_radius"`
	SpawnUnitType      string  `yaml:"spawn_unit_type"`

	DepotTravelTime    float64 `yaml:"depot_travel_time"`
	DepotTripSize      float64 `yaml:"depot_trip_size"`
	DepotMaxStock      float64 `yaml:"depot_max_stock"`
	DepotPulseInterval float64 `yaml:"depot_pulse_interval"`
	DepotPulseCost     float64 `yaml:"depot_pulse_cost"`
	DepotPulseRadius   float64 `yaml:"depot_pulse_radius"`
	DepotPulseHeal     float64 `yaml:"depot_pulse_heal"`

	UnitLineRefreshTicks int `yaml:"unit_line_refresh_ticks"`
}

// UnitType carries the per-type multipliers applied by combat and influence.
type UnitType struct {
	MaxHealth  float64 `yaml:"max_health"`
	Damage     float64 `yaml:"damage"`
	Mitigation float64 `yaml:"mitigation"`
	Power      float64 `yaml:"power"`
	Speed      float64 `yaml:"speed"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Clamp()
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         10,
		SnapshotEveryTicks: 3000,
		Influence: InfluenceTuning{
			MaxAbsScore:             100,
			DecayRate:               0.15,
			LowMagnitudeDecayBoost:  0.6,
			HighMagnitudeDecayBoost: 0.4,
			DecayEpsilon:            0.05,
			AccumulationRate:        1.0,
			InfluenceRadius:         8,
			UnitPowerMultiplier:     0.5,
			CityPower:               60,
			BlockedSupplyPower:      15,
			ContestRadius:           6,
			ContestFloor:            0.25,
			StaticEnemyAlpha:        0.02,
			NeutralLow:              0.55,
			NeutralHigh:             0.7,
			CoreRadius:              1,
			UnitFloor:               40,
			CoreFloor:               25,
			CityCoreFloor:           35,
			CapThreshold:            0.95,
			GateUnits:               false,
			GateCities:              true,
			GateBlockedSupply:       true,
		},
		Morale: MoraleTuning{
			SampleRadius:      3,
			MaxScore:          100,
			FriendlyExponent:  0.8,
			HostileExponent:   1.3,
			HillBonusPerGrade: 2,
			SlopeBonus:        4,
			UnsuppliedPenalty: 10,
		},
		Combat: CombatTuning{
			ContactDistance:       1.25,
			BaseDPS:               10,
			FacingToleranceDeg:    45,
			TurnRateDegPerSec:     120,
			EngageGrace:           0.5,
			MoraleDamageScale:     0.5,
			MoraleMitigationScale: 0.3,
		},
		Movement: MovementTuning{
			UnitSpeed:              2,
			TurnRateDegPerSec:      180,
			FacingToleranceDeg:     10,
			TerrainTransitionPause: 0.3,
			MaxExpansions:          4000,
			MaxWaypoints:           32,
			TerrainCosts: map[string]float64{
				"plains": 1,
				"road":   0.5,
				"forest": 1.6,
				"hill":   1.4,
				"water":  3,
			},
		},
		Supply: SupplyTuning{
			GenerationInterval:   10,
			PerUnitThreshold:     10,
			SeverThreshold:       0.2,
			SpawnSearchRadius:    4,
			SpawnUnitType:        "infantry",
			DepotTravelTime:      5,
			DepotTripSize:        2,
			DepotMaxStock:        20,
			DepotPulseInterval:   4,
			DepotPulseCost:       1,
			DepotPulseRadius:     3,
			DepotPulseHeal:       5,
			UnitLineRefreshTicks: 5,
		},
		UnitTypes: map[string]UnitType{
			"infantry": {MaxHealth: 100, Damage: 1, Mitigation: 1, Power: 1, Speed: 1},
			"cavalry":  {MaxHealth: 80, Damage: 1.2, Mitigation: 0.9, Power: 1.1, Speed: 1.6},
			"pike":     {MaxHealth: 120, Damage: 0.9, Mitigation: 0.8, Power: 1.2, Speed: 0.8},
		},
	}
}

// minDecayRate keeps every cell's decay strictly positive so the field
// settles back to neutral whatever the boosts are.
const minDecayRate = 0.001

// Clamp pulls every knob back into a range the core can use safely.
// Non-finite values fall back to the defaults.
func (t *Tuning) Clamp() {
	d := Defaults()

	t.TickRateHz = clampInt(t.TickRateHz, 1, 120)
	if t.SnapshotEveryTicks < 0 {
		t.SnapshotEveryTicks = 0
	}

	in := &t.Influence
	in.MaxAbsScore = clampF(in.MaxAbsScore, 1, 1e6, d.Influence.MaxAbsScore)
	in.DecayRate = clampF(in.DecayRate, minDecayRate, 50, d.Influence.DecayRate)
	in.LowMagnitudeDecayBoost = clampF(in.LowMagnitudeDecayBoost, 0, 50, d.Influence.LowMagnitudeDecayBoost)
	in.HighMagnitudeDecayBoost = clampF(in.HighMagnitudeDecayBoost, 0, 50, d.Influence.HighMagnitudeDecayBoost)
	in.DecayEpsilon = clampF(in.DecayEpsilon, 1e-9, in.MaxAbsScore, d.Influence.DecayEpsilon)
	in.AccumulationRate = clampF(in.AccumulationRate, 0, 1e3, d.Influence.AccumulationRate)
	in.InfluenceRadius = clampInt(in.InfluenceRadius, 0, 64)
	in.UnitPowerMultiplier = clampF(in.UnitPowerMultiplier, 0, 1e3, d.Influence.UnitPowerMultiplier)
	in.CityPower = clampF(in.CityPower, 0, 1e6, d.Influence.CityPower)
	in.BlockedSupplyPower = clampF(in.BlockedSupplyPower, 0, 1e6, d.Influence.BlockedSupplyPower)
	in.ContestRadius = clampF(in.ContestRadius, 0, 64, d.Influence.ContestRadius)
	in.ContestFloor = clampF(in.ContestFloor, 0, 1, d.Influence.ContestFloor)
	in.StaticEnemyAlpha = clampF(in.StaticEnemyAlpha, 0, 10, d.Influence.StaticEnemyAlpha)
	in.NeutralLow = clampF(in.NeutralLow, 0.5, 1, d.Influence.NeutralLow)
	in.NeutralHigh = clampF(in.NeutralHigh, in.NeutralLow, 1, d.Influence.NeutralHigh)
	in.CoreRadius = clampInt(in.CoreRadius, 0, 16)
	in.UnitFloor = clampF(in.UnitFloor, 0, in.MaxAbsScore, d.Influence.UnitFloor)
	in.CoreFloor = clampF(in.CoreFloor, 0, in.MaxAbsScore, d.Influence.CoreFloor)
	in.CityCoreFloor = clampF(in.CityCoreFloor, 0, in.MaxAbsScore, d.Influence.CityCoreFloor)
	in.CapThreshold = clampF(in.CapThreshold, 0, 1, d.Influence.CapThreshold)

	m := &t.Morale
	m.SampleRadius = clampInt(m.SampleRadius, 0, 16)
	m.MaxScore = clampF(m.MaxScore, 1, 1e4, d.Morale.MaxScore)
	m.FriendlyExponent = clampF(m.FriendlyExponent, 0.05, 10, d.Morale.FriendlyExponent)
	m.HostileExponent = clampF(m.HostileExponent, 0.05, 10, d.Morale.HostileExponent)
	m.HillBonusPerGrade = clampF(m.HillBonusPerGrade, -1e3, 1e3, d.Morale.HillBonusPerGrade)
	m.SlopeBonus = clampF(m.SlopeBonus, -1e3, 1e3, d.Morale.SlopeBonus)
	m.UnsuppliedPenalty = clampF(m.UnsuppliedPenalty, 0, m.MaxScore, d.Morale.UnsuppliedPenalty)

	c := &t.Combat
	c.ContactDistance = clampF(c.ContactDistance, 0, 16, d.Combat.ContactDistance)
	c.BaseDPS = clampF(c.BaseDPS, 0, 1e4, d.Combat.BaseDPS)
	c.FacingToleranceDeg = clampF(c.FacingToleranceDeg, 0, 180, d.Combat.FacingToleranceDeg)
	c.TurnRateDegPerSec = clampF(c.TurnRateDegPerSec, 0, 3600, d.Combat.TurnRateDegPerSec)
	c.EngageGrace = clampF(c.EngageGrace, 0, 60, d.Combat.EngageGrace)
	c.MoraleDamageScale = clampF(c.MoraleDamageScale, 0, 10, d.Combat.MoraleDamageScale)
	c.MoraleMitigationScale = clampF(c.MoraleMitigationScale, 0, 1, d.Combat.MoraleMitigationScale)

	mv := &t.Movement
	mv.UnitSpeed = clampF(mv.UnitSpeed, 0, 100, d.Movement.UnitSpeed)
	mv.TurnRateDegPerSec = clampF(mv.TurnRateDegPerSec, 0, 3600, d.Movement.TurnRateDegPerSec)
	mv.FacingToleranceDeg = clampF(mv.FacingToleranceDeg, 0, 180, d.Movement.FacingToleranceDeg)
	mv.TerrainTransitionPause = clampF(mv.TerrainTransitionPause, 0, 60, d.Movement.TerrainTransitionPause)
	mv.MaxExpansions = clampInt(mv.MaxExpansions, 1, 1_000_000)
	mv.MaxWaypoints = clampInt(mv.MaxWaypoints, 1, 1024)
	if mv.TerrainCosts == nil {
		mv.TerrainCosts = d.Movement.TerrainCosts
	}
	for k, v := range mv.TerrainCosts {
		mv.TerrainCosts[k] = clampF(v, 0.05, 1e3, 1)
	}

	s := &t.Supply
	s.GenerationInterval = clampF(s.GenerationInterval, 0.01, 1e5, d.Supply.GenerationInterval)
	s.PerUnitThreshold = clampF(s.PerUnitThreshold, 1, 1e5, d.Supply.PerUnitThreshold)
	s.SeverThreshold = clampF(s.SeverThreshold, 0, 1, d.Supply.SeverThreshold)
	s.SpawnSearchRadius = clampInt(s.SpawnSearchRadius, 0, 32)
	if s.SpawnUnitType == "" {
		s.SpawnUnitType = d.Supply.SpawnUnitType
	}
	s.DepotTravelTime = clampF(s.DepotTravelTime, 0.01, 1e5, d.Supply.DepotTravelTime)
	s.DepotTripSize = clampF(s.DepotTripSize, 0, 1e5, d.Supply.DepotTripSize)
	s.DepotMaxStock = clampF(s.DepotMaxStock, 0, 1e6, d.Supply.DepotMaxStock)
	s.DepotPulseInterval = clampF(s.DepotPulseInterval, 0.01, 1e5, d.Supply.DepotPulseInterval)
	s.DepotPulseCost = clampF(s.DepotPulseCost, 0, 1e5, d.Supply.DepotPulseCost)
	s.DepotPulseRadius = clampF(s.DepotPulseRadius, 0, 64, d.Supply.DepotPulseRadius)
	s.DepotPulseHeal = clampF(s.DepotPulseHeal, 0, 1e5, d.Supply.DepotPulseHeal)
	s.UnitLineRefreshTicks = clampInt(s.UnitLineRefreshTicks, 1, 1000)

	if len(t.UnitTypes) == 0 {
		t.UnitTypes = d.UnitTypes
	}
	for k, ut := range t.UnitTypes {
		ut.MaxHealth = clampF(ut.MaxHealth, 1, 1e6, 100)
		ut.Damage = clampF(ut.Damage, 0, 100, 1)
		ut.Mitigation = clampF(ut.Mitigation, 0, 100, 1)
		ut.Power = clampF(ut.Power, 0, 100, 1)
		ut.Speed = clampF(ut.Speed, 0, 100, 1)
		t.UnitTypes[k] = ut
	}
}

// Type returns the multipliers for a unit type; unknown tags use neutral ones.
func (t *Tuning) Type(tag string) UnitType {
	if ut, ok := t.UnitTypes[tag]; ok {
		return ut
	}
	return UnitType{MaxHealth: 100, Damage: 1, Mitigation: 1, Power: 1, Speed: 1}
}

func clampF(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
