package models

// Default signal values used when a caller leaves a signal unset.
const (
	DefaultSignalValue   = 0.5
	DefaultPressureValue = 0.0
)

// PrioritySignals holds the seven normalized inputs to priority scoring.
// All values are in [0,1].
type PrioritySignals struct {
	Impact                float64 `json:"impact" yaml:"impact"`
	Risk                  float64 `json:"risk" yaml:"risk"`
	Uncertainty           float64 `json:"uncertainty" yaml:"uncertainty"`
	Novelty               float64 `json:"novelty" yaml:"novelty"`
	ContradictionPressure float64 `json:"contradiction_pressure" yaml:"contradiction_pressure"`
	GovernancePressure    float64 `json:"governance_pressure" yaml:"governance_pressure"`
	Effort                float64 `json:"effort" yaml:"effort"`
}

// SignalInput carries caller-supplied signals. Nil fields take the documented
// defaults: 0.5 for impact, risk, uncertainty, novelty and effort, 0 for the
// two pressure signals.
type SignalInput struct {
	Impact                *float64 `json:"impact,omitempty" yaml:"impact,omitempty"`
	Risk                  *float64 `json:"risk,omitempty" yaml:"risk,omitempty"`
	Uncertainty           *float64 `json:"uncertainty,omitempty" yaml:"uncertainty,omitempty"`
	Novelty               *float64 `json:"novelty,omitempty" yaml:"novelty,omitempty"`
	ContradictionPressure *float64 `json:"contradiction_pressure,omitempty" yaml:"contradiction_pressure,omitempty"`
	GovernancePressure    *float64 `json:"governance_pressure,omitempty" yaml:"governance_pressure,omitempty"`
	Effort                *float64 `json:"effort,omitempty" yaml:"effort,omitempty"`
}

// Float returns a pointer to v, for building a SignalInput inline.
func Float(v float64) *float64 {
	return &v
}

// NewPrioritySignals resolves defaults and clamps every value into [0,1].
func NewPrioritySignals(in SignalInput) PrioritySignals {
	return PrioritySignals{
		Impact:                resolveSignal(in.Impact, DefaultSignalValue),
		Risk:                  resolveSignal(in.Risk, DefaultSignalValue),
		Uncertainty:           resolveSignal(in.Uncertainty, DefaultSignalValue),
		Novelty:               resolveSignal(in.Novelty, DefaultSignalValue),
		ContradictionPressure: resolveSignal(in.ContradictionPressure, DefaultPressureValue),
		GovernancePressure:    resolveSignal(in.GovernancePressure, DefaultPressureValue),
		Effort:                resolveSignal(in.Effort, DefaultSignalValue),
	}
}

// Vector returns the signals in canonical order, matching PriorityWeights.Vector.
func (s PrioritySignals) Vector() []float64 {
	return []float64{
		s.Impact,
		s.Risk,
		s.Uncertainty,
		s.Novelty,
		s.ContradictionPressure,
		s.GovernancePressure,
		s.Effort,
	}
}

func resolveSignal(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return Clamp01(*v)
}

// Clamp01 clamps v into [0,1]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PriorityWeights holds one weight per signal. Effort is negative by default
// so cheap items score higher.
type PriorityWeights struct {
	Impact                float64 `json:"impact" mapstructure:"impact"`
	Risk                  float64 `json:"risk" mapstructure:"risk"`
	Uncertainty           float64 `json:"uncertainty" mapstructure:"uncertainty"`
	Novelty               float64 `json:"novelty" mapstructure:"novelty"`
	ContradictionPressure float64 `json:"contradiction_pressure" mapstructure:"contradiction_pressure"`
	GovernancePressure    float64 `json:"governance_pressure" mapstructure:"governance_pressure"`
	Effort                float64 `json:"effort" mapstructure:"effort"`
}

// DefaultPriorityWeights returns the built-in weighting.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		Impact:                0.25,
		Risk:                  0.20,
		Uncertainty:           0.15,
		Novelty:               0.10,
		ContradictionPressure: 0.10,
		GovernancePressure:    0.10,
		Effort:                -0.10,
	}
}

// Vector returns the weights in canonical order, matching PrioritySignals.Vector.
func (w PriorityWeights) Vector() []float64 {
	return []float64{
		w.Impact,
		w.Risk,
		w.Uncertainty,
		w.Novelty,
		w.ContradictionPressure,
		w.GovernancePressure,
		w.Effort,
	}
}

// WeightOverrides carries a partial update to PriorityWeights. Nil fields are
// left unchanged.
type WeightOverrides struct {
	Impact                *float64
	Risk                  *float64
	Uncertainty           *float64
	Novelty               *float64
	ContradictionPressure *float64
	GovernancePressure    *float64
	Effort                *float64
}

// Apply returns w with every non-nil override applied.
func (o WeightOverrides) Apply(w PriorityWeights) PriorityWeights {
	set := func(dst *float64, v *float64) {
		if v != nil && *v == *v {
			*dst = *v
		}
	}
	set(&w.Impact, o.Impact)
	set(&w.Risk, o.Risk)
	set(&w.Uncertainty, o.Uncertainty)
	set(&w.Novelty, o.Novelty)
	set(&w.ContradictionPressure, o.ContradictionPressure)
	set(&w.GovernancePressure, o.GovernancePressure)
	set(&w.Effort, o.Effort)
	return w
}

// WeightOverridesFromMap builds overrides from loosely keyed input, such as
// an admin request or a config section. Unknown keys are ignored.
func WeightOverridesFromMap(m map[string]float64) WeightOverrides {
	var o WeightOverrides
	for key, v := range m {
		v := v
		switch key {
		case "impact":
			o.Impact = &v
		case "risk":
			o.Risk = &v
		case "uncertainty":
			o.Uncertainty = &v
		case "novelty":
			o.Novelty = &v
		case "contradiction_pressure", "contradictionPressure":
			o.ContradictionPressure = &v
		case "governance_pressure", "governancePressure":
			o.GovernancePressure = &v
		case "effort":
			o.Effort = &v
		}
	}
	return o
}
