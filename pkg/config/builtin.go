package config

import (
	"sync"

	"github.com/maestrohq/maestro/pkg/models"
)

// BuiltinConfig holds all built-in configuration data.
// This provides a working marketing department out of the box: squads,
// skills with embedded manifests, and a few pipeline templates. User
// configuration overrides entries with the same name.
type BuiltinConfig struct {
	Skills    map[string]SkillConfig
	Squads    map[string]SquadConfig
	Pipelines map[string]PipelineConfig
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Skills:    initBuiltinSkills(),
		Squads:    initBuiltinSquads(),
		Pipelines: initBuiltinPipelines(),
	}
}

func initBuiltinSquads() map[string]SquadConfig {
	return map[string]SquadConfig{
		string(models.SquadStrategy): {
			Description: "Positioning, brand, launch, and competitive strategy",
			ModelTier:   models.ModelTierOpus,
		},
		string(models.SquadCreative): {
			Description: "Copy, campaigns, and content calendars",
			ModelTier:   models.ModelTierSonnet,
		},
		string(models.SquadConvert): {
			Description: "Landing pages, SEO, and paid acquisition",
			ModelTier:   models.ModelTierSonnet,
		},
		string(models.SquadActivate): {
			Description: "Lifecycle, onboarding, and retention programs",
			ModelTier:   models.ModelTierSonnet,
		},
		string(models.SquadMeasure): {
			Description: "Analytics, reporting, and experiment readouts",
			ModelTier:   models.ModelTierSonnet,
		},
	}
}

func initBuiltinSkills() map[string]SkillConfig {
	return map[string]SkillConfig{
		"product-marketing-context": {
			Description:  "Builds the shared product marketing context document",
			Foundation:   true,
			SystemPrompt: manifestProductContext,
		},
		"brand-strategy": {
			Description:    "Brand narrative, voice, and messaging pillars",
			Squad:          string(models.SquadStrategy),
			SystemPrompt:   manifestBrandStrategy,
			ReferenceFiles: []string{"context/product-marketing-context.md"},
		},
		"positioning": {
			Description:    "Market positioning and differentiation statements",
			Squad:          string(models.SquadStrategy),
			SystemPrompt:   manifestPositioning,
			ReferenceFiles: []string{"context/product-marketing-context.md"},
			DependsOn:      []string{"competitor-analysis"},
		},
		"competitor-analysis": {
			Description:    "Competitive landscape and counter-positioning",
			Squad:          string(models.SquadStrategy),
			SystemPrompt:   manifestCompetitorAnalysis,
			ReferenceFiles: []string{"context/product-marketing-context.md"},
		},
		"launch-plan": {
			Description:    "Launch sequencing across channels and squads",
			Squad:          string(models.SquadStrategy),
			SystemPrompt:   manifestLaunchPlan,
			ReferenceFiles: []string{"context/product-marketing-context.md"},
		},
		"copywriting": {
			Description:    "Long- and short-form marketing copy",
			Squad:          string(models.SquadCreative),
			SystemPrompt:   manifestCopywriting,
			ReferenceFiles: []string{"context/product-marketing-context.md"},
			DependsOn:      []string{"page-cro"},
		},
		"social-calendar": {
			Description:  "Channel-specific social content calendars",
			Squad:        string(models.SquadCreative),
			SystemPrompt: manifestSocialCalendar,
		},
		"email-campaign": {
			Description:  "Campaign email sequences with subject variants",
			Squad:        string(models.SquadCreative),
			SystemPrompt: manifestEmailCampaign,
		},
		"page-cro": {
			Description:  "Landing page conversion audits and rewrites",
			Squad:        string(models.SquadConvert),
			SystemPrompt: manifestPageCRO,
			DependsOn:    []string{"copywriting"},
		},
		"seo-audit": {
			Description:  "Technical and content SEO audits",
			Squad:        string(models.SquadConvert),
			SystemPrompt: manifestSEOAudit,
		},
		"paid-ads-brief": {
			Description:  "Paid acquisition briefs and ad variants",
			Squad:        string(models.SquadConvert),
			SystemPrompt: manifestPaidAdsBrief,
		},
		"lifecycle-email": {
			Description:  "Behavior-triggered lifecycle email programs",
			Squad:        string(models.SquadActivate),
			SystemPrompt: manifestLifecycleEmail,
		},
		"onboarding-flow": {
			Description:  "Activation and onboarding flow design",
			Squad:        string(models.SquadActivate),
			SystemPrompt: manifestOnboardingFlow,
		},
		"analytics-report": {
			Description:  "Campaign and funnel performance readouts",
			Squad:        string(models.SquadMeasure),
			SystemPrompt: manifestAnalyticsReport,
		},
		"weekly-metrics": {
			Description:  "Weekly marketing metrics digest",
			Squad:        string(models.SquadMeasure),
			SystemPrompt: manifestWeeklyMetrics,
		},
	}
}

func initBuiltinPipelines() map[string]PipelineConfig {
	return map[string]PipelineConfig{
		"content-wave": {
			Description: "Positioning-led content batch with director review",
			Steps: []PipelineStepConfig{
				{Type: models.StepTypeSequential, Skill: "positioning"},
				{Type: models.StepTypeParallel, Skills: []string{"copywriting", "social-calendar"}},
				{Type: models.StepTypeReview, Reviewer: "director"},
				{Type: models.StepTypeSequential, Skill: "analytics-report"},
			},
		},
		"launch": {
			Description: "Full launch: plan, parallel assets, review, readout",
			Steps: []PipelineStepConfig{
				{Type: models.StepTypeSequential, Skill: "launch-plan"},
				{Type: models.StepTypeParallel, Skills: []string{"copywriting", "email-campaign", "page-cro"}},
				{Type: models.StepTypeReview, Reviewer: "director"},
				{Type: models.StepTypeSequential, Skill: "analytics-report"},
			},
		},
		"competitor-response": {
			Description: "React to a competitor move with refreshed positioning",
			Steps: []PipelineStepConfig{
				{Type: models.StepTypeSequential, Skill: "competitor-analysis"},
				{Type: models.StepTypeSequential, Skill: "positioning"},
				{Type: models.StepTypeReview, Reviewer: "director"},
			},
		},
		"weekly-review": {
			Description: "Scheduled weekly metrics digest",
			Steps: []PipelineStepConfig{
				{Type: models.StepTypeSequential, Skill: "weekly-metrics"},
			},
		},
	}
}

const manifestProductContext = `# Product Marketing Context

You are the foundation researcher for a marketing department. Produce the
single shared context document every other skill reads: product summary,
audience segments, value propositions, proof points, tone guidance, and
current priorities. Be factual and cite inputs; do not invent metrics.
Structure the document with H2 sections so downstream skills can quote it.`

const manifestBrandStrategy = `# Brand Strategy

You craft brand narrative and messaging architecture. Deliver: narrative
arc, three messaging pillars with proof points, voice and tone rules, and
do/don't examples. Anchor every claim in the product marketing context.`

const manifestPositioning = `# Positioning

You write market positioning. Deliver a positioning statement (for/who/
unlike/our product), three differentiators ranked by defensibility, and
objection handling. Quote competitor intel when provided as input.`

const manifestCompetitorAnalysis = `# Competitor Analysis

You analyze competitive moves. Deliver: a landscape table, the three most
material threats, recommended counter-positioning, and watch items with
suggested triggers. Stick to observable facts from the inputs.`

const manifestLaunchPlan = `# Launch Plan

You sequence launches. Deliver a phased plan across channels with owners,
dependencies, entry/exit criteria per phase, and a risk register. Flag any
asset the plan requires that no input provides.`

const manifestCopywriting = `# Copywriting

You write conversion-oriented marketing copy. Match the voice rules in the
product marketing context. Deliver headline options, body copy, and CTAs,
each tagged with the funnel stage it serves. Keep claims verifiable.`

const manifestSocialCalendar = `# Social Calendar

You plan social content. Deliver a two-week calendar per channel with
hooks, formats, and repurposing notes. Respect channel-native conventions
and the brand voice rules.`

const manifestEmailCampaign = `# Email Campaign

You design campaign email sequences. Deliver per email: goal, audience,
subject variants, preview text, body outline, and CTA. Note suppression
and frequency rules.`

const manifestPageCRO = `# Page CRO

You audit and rewrite landing pages for conversion. Deliver: friction
audit ranked by expected impact, rewritten hero section, and an experiment
plan with success metrics. Coordinate copy changes with the copywriting
output when it is provided as input.`

const manifestSEOAudit = `# SEO Audit

You run technical and content SEO audits. Deliver: crawl findings ranked
by severity, content gap analysis with target queries, and a remediation
backlog sized S/M/L.`

const manifestPaidAdsBrief = `# Paid Ads Brief

You brief paid acquisition. Deliver: audience and platform plan, budget
split rationale, three ad concepts with variants, and the measurement
plan including negative signals to watch.`

const manifestLifecycleEmail = `# Lifecycle Email

You design behavior-triggered lifecycle programs. Deliver: trigger map,
per-message goal and outline, exit conditions, and the metrics that prove
each message earns its place.`

const manifestOnboardingFlow = `# Onboarding Flow

You design activation flows. Deliver: milestone map from signup to first
value, friction inventory, and per-step interventions with expected lift
and instrumentation notes.`

const manifestAnalyticsReport = `# Analytics Report

You write performance readouts. Deliver: headline results vs. targets,
funnel breakdown, three insights with supporting numbers, and recommended
actions ranked by confidence. Never present a number without its source.`

const manifestWeeklyMetrics = `# Weekly Metrics

You produce the weekly marketing digest: KPI table with week-over-week
deltas, anomalies worth attention, and a short narrative. Keep it under
one page.`
