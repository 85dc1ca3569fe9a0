package models

// Role is the specialty a worker brings to a team.
type Role string

const (
	RoleBuilder     Role = "builder"
	RoleCritic      Role = "critic"
	RoleAdversary   Role = "adversary"
	RoleSynthesizer Role = "synthesizer"
	RoleHistorian   Role = "historian"
	RoleAuditor     Role = "auditor"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleBuilder, RoleCritic, RoleAdversary, RoleSynthesizer, RoleHistorian, RoleAuditor:
		return true
	default:
		return false
	}
}

// Worker is a read-only reference to a worker owned by the reputation registry.
type Worker struct {
	// ID is the worker's stable identifier.
	ID string `json:"id" yaml:"id"`
	// Role is the worker's specialty.
	Role Role `json:"role" yaml:"role"`
	// Credibility is the externally maintained reputation score; higher ranks first.
	Credibility float64 `json:"credibility" yaml:"credibility"`
}
