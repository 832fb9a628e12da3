package director

import (
	"github.com/maestrohq/maestro/pkg/models"
)

// RouteEntry is one phase of the static category routing: a squad, the
// skills to run, and why.
type RouteEntry struct {
	Squad     models.Squad
	Skills    []string
	Parallel  bool
	Rationale string
}

// measurePhase closes every route: measurement is always the final phase
// regardless of category.
var measurePhase = RouteEntry{
	Squad:     models.SquadMeasure,
	Skills:    []string{"analytics-report"},
	Rationale: "measure outcomes of the work above",
}

// routingTable maps goal categories to ordered squad/skill sequences. The
// decomposer turns these into plan phases.
var routingTable = map[models.GoalCategory][]RouteEntry{
	models.GoalCategoryStrategic: {
		{Squad: models.SquadStrategy, Skills: []string{"competitor-analysis"},
			Rationale: "ground strategy in the competitive landscape"},
		{Squad: models.SquadStrategy, Skills: []string{"positioning", "brand-strategy"}, Parallel: true,
			Rationale: "positioning and brand narrative build on the landscape"},
		{Squad: models.SquadStrategy, Skills: []string{"launch-plan"},
			Rationale: "sequence the launch once strategy is settled"},
	},
	models.GoalCategoryContent: {
		{Squad: models.SquadStrategy, Skills: []string{"positioning"},
			Rationale: "content needs an agreed angle first"},
		{Squad: models.SquadCreative, Skills: []string{"copywriting", "social-calendar", "email-campaign"}, Parallel: true,
			Rationale: "produce the content batch across channels"},
	},
	models.GoalCategoryOptimization: {
		{Squad: models.SquadConvert, Skills: []string{"seo-audit", "page-cro"}, Parallel: true,
			Rationale: "audit organic and on-page conversion together"},
		{Squad: models.SquadConvert, Skills: []string{"paid-ads-brief"},
			Rationale: "paid spend follows the audit findings"},
	},
	models.GoalCategoryRetention: {
		{Squad: models.SquadActivate, Skills: []string{"onboarding-flow"},
			Rationale: "fix activation before lifecycle nudges"},
		{Squad: models.SquadActivate, Skills: []string{"lifecycle-email"},
			Rationale: "lifecycle program builds on the onboarding flow"},
	},
	models.GoalCategoryCompetitive: {
		{Squad: models.SquadStrategy, Skills: []string{"competitor-analysis"},
			Rationale: "map the competitor move"},
		{Squad: models.SquadStrategy, Skills: []string{"positioning"},
			Rationale: "counter-position against it"},
	},
	models.GoalCategoryMeasurement: {
		{Squad: models.SquadMeasure, Skills: []string{"weekly-metrics"},
			Rationale: "produce the metrics digest"},
	},
}

// pipelineTemplates names the pipeline template recorded on plans for
// categories that have a matching declarative pipeline.
var pipelineTemplates = map[models.GoalCategory]string{
	models.GoalCategoryContent: "content-wave",
}

// routeFor returns the routing entries for a category with the measure
// phase appended, skipping it when the route already ends in the measure
// squad.
func routeFor(category models.GoalCategory) []RouteEntry {
	route := routingTable[category]
	if len(route) > 0 && route[len(route)-1].Squad == models.SquadMeasure {
		return route
	}
	out := make([]RouteEntry, 0, len(route)+1)
	out = append(out, route...)
	out = append(out, measurePhase)
	return out
}
