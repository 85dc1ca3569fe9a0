package scheduler

import (
	"sort"

	"github.com/ShayCichocki/attention/pkg/models"
)

// MaxTeamSize caps the number of workers bound to one allocation.
const MaxTeamSize = 3

// AffinityTable maps each work item type to the roles eligible to lead it.
type AffinityTable map[models.WorkItemType][]models.Role

// DefaultAffinity is the built-in role affinity table.
func DefaultAffinity() AffinityTable {
	return AffinityTable{
		models.WorkTypeContradiction:      {models.RoleCritic, models.RoleSynthesizer},
		models.WorkTypeLowConfidence:      {models.RoleAuditor, models.RoleBuilder},
		models.WorkTypeUserPrompt:         {models.RoleBuilder, models.RoleSynthesizer},
		models.WorkTypeProposalCritique:   {models.RoleCritic, models.RoleAdversary},
		models.WorkTypeMissingEdges:       {models.RoleBuilder, models.RoleSynthesizer},
		models.WorkTypeArtifactValidation: {models.RoleAuditor, models.RoleCritic, models.RoleBuilder},
		models.WorkTypeHotNode:            {models.RoleBuilder, models.RoleHistorian},
		models.WorkTypeSynthesisNeeded:    {models.RoleSynthesizer, models.RoleBuilder},
		models.WorkTypePatternRefresh:     {models.RoleHistorian, models.RoleAuditor},
		models.WorkTypeGovernanceBacklog:  {models.RoleAuditor, models.RoleHistorian},
	}
}

// RolesFor returns the eligible roles for t, or builder when t is unmapped.
func (a AffinityTable) RolesFor(t models.WorkItemType) []models.Role {
	if roles, ok := a[t]; ok && len(roles) > 0 {
		return roles
	}
	return []models.Role{models.RoleBuilder}
}

// recruitsCritic lists the types that add a critic or adversary to the team.
func recruitsCritic(t models.WorkItemType) bool {
	switch t {
	case models.WorkTypeContradiction, models.WorkTypeProposalCritique, models.WorkTypeLowConfidence:
		return true
	}
	return false
}

// recruitsSynthesizer lists the types that add a synthesizer to the team.
func recruitsSynthesizer(t models.WorkItemType) bool {
	switch t {
	case models.WorkTypeSynthesisNeeded, models.WorkTypeMissingEdges:
		return true
	}
	return false
}

// rankByCredibility sorts workers by descending credibility, ties by id.
func rankByCredibility(workers []models.Worker) {
	sort.SliceStable(workers, func(i, j int) bool {
		if workers[i].Credibility != workers[j].Credibility {
			return workers[i].Credibility > workers[j].Credibility
		}
		return workers[i].ID < workers[j].ID
	})
}

// formTeam picks a team for item from the active workers. The primary is the
// most credible worker holding an eligible role; a critic or synthesizer is
// added on a best-effort basis for the types that call for one. It returns
// nil when no eligible primary exists.
func formTeam(item *models.WorkItem, affinity AffinityTable, active []models.Worker, logger *DebugLogger) []models.Worker {
	eligibleRoles := affinity.RolesFor(item.Type)

	var eligible []models.Worker
	for _, w := range active {
		if hasRole(eligibleRoles, w.Role) {
			eligible = append(eligible, w)
		}
	}
	if len(eligible) == 0 {
		logger.Log("[affinity] no worker with roles %v for item %s (%s)", eligibleRoles, item.ID, item.Type)
		return nil
	}
	rankByCredibility(eligible)

	team := []models.Worker{eligible[0]}
	if recruitsCritic(item.Type) {
		if w, ok := bestWithRole(active, team, models.RoleCritic, models.RoleAdversary); ok {
			team = append(team, w)
		}
	}
	if recruitsSynthesizer(item.Type) && len(team) < MaxTeamSize {
		if w, ok := bestWithRole(active, team, models.RoleSynthesizer); ok {
			team = append(team, w)
		}
	}
	return team
}

// bestWithRole returns the most credible worker holding one of roles who is
// not already on the team.
func bestWithRole(active, team []models.Worker, roles ...models.Role) (models.Worker, bool) {
	var candidates []models.Worker
	for _, w := range active {
		if hasRole(roles, w.Role) && !onTeam(team, w.ID) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return models.Worker{}, false
	}
	rankByCredibility(candidates)
	return candidates[0], true
}

func hasRole(roles []models.Role, r models.Role) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}

func onTeam(team []models.Worker, id string) bool {
	for _, w := range team {
		if w.ID == id {
			return true
		}
	}
	return false
}
