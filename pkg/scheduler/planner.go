package scheduler

import "github.com/arnavshah/covers-scheduler-api/pkg/models"

// Ratios maps a role to the number of covers one staff member of that role serves
type Ratios map[models.Role]int

// DefaultRatios is the covers-per-head table used in production
var DefaultRatios = Ratios{
	models.RoleWaiter:  20,
	models.RoleChef:    50,
	models.RoleCleaner: 80,
}

// Planner converts a covers forecast into per-role headcount
type Planner struct {
	ratios Ratios
}

// NewPlanner creates a planner over the given ratio table
func NewPlanner(ratios Ratios) *Planner {
	table := make(Ratios, len(ratios))
	for role, ratio := range ratios {
		table[role] = ratio
	}
	return &Planner{ratios: table}
}

// Plan returns ceil(covers / ratio) for every role in the table
func (p *Planner) Plan(covers int) models.StaffDemand {
	if covers < 0 {
		covers = 0
	}
	demand := make(models.StaffDemand, len(p.ratios))
	for role, ratio := range p.ratios {
		if ratio <= 0 {
			continue
		}
		demand[role] = (covers + ratio - 1) / ratio
	}
	return demand
}
