package intent

import (
	"regexp"

	"github.com/avvvet/rhoai-intent/internal/models"
)

// rule selects an action when any of its patterns matches.
type rule struct {
	action   models.Action
	patterns []*regexp.Regexp
}

// compile builds case-insensitive, unanchored matchers.
func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// classificationRules is scanned top to bottom and the first rule with a
// matching pattern wins. The verbs "create", "start", "stop" and "delete"
// appear in several domains, so the order encodes which reading takes
// priority: pipelines before notebooks, notebook control before notebook
// creation, projects and monitoring before the generic model verbs, model
// mutations before status, status before list.
var classificationRules = []rule{
	{models.ActionCreatePipeline, compile(
		`\bcreate\b.*\bpipeline\b`,
		`\bset\s+up\b.*\bpipeline\b`,
		`\bbuild\b.*\bpipeline\b`,
		`\bpipeline\b.*\bto\b.*\b(?:preprocess|transform|analyze)\b`,
	)},
	{models.ActionUpdatePipeline, compile(
		`\bupdate\b.*\bpipeline\b`,
		`\bchange\b.*\bpipeline\b`,
		`\bmodify\b.*\bpipeline\b`,
		`\bpipeline\b.*\bschedule\b`,
	)},
	{models.ActionListPipelineRuns, compile(
		`\bpipeline\s+runs\b`,
		`\bruns\s+(?:of|for)\b.*\bpipeline\b`,
		`\brun\s+history\b`,
	)},
	{models.ActionListPipelines, compile(
		`\blist\b.*\bpipelines?\b`,
		`\bshow\b.*\bpipelines?\b`,
		`\bwhat\b.*\bpipelines?\b`,
		`\ball\b.*\bpipelines?\b`,
	)},
	{models.ActionStopNotebook, compile(
		`\bstop\b\s+(?:the|my)\s+[a-z0-9\-]+`,
		`\bstop\b.*\bnotebook\b`,
		`\bshut\s*down\b.*\bnotebook\b`,
		`\bpause\b.*\bnotebook\b`,
	)},
	{models.ActionStartNotebook, compile(
		`\bstart\b\s+(?:the|my)\s+[a-z0-9\-]+`,
		`\bresume\b.*\bnotebook\b`,
		`\brestart\b.*\bnotebook\b`,
	)},
	{models.ActionCreateNotebook, compile(
		`\bcreate\b.*\bnotebook\b`,
		`\blaunch\b.*\b(?:a|an|new)\s+notebook\b`,
		`\bstart\b.*\b(?:a|an|new)\s+notebook\b`,
		`\bnotebook\b.*\bwith\b`,
	)},
	{models.ActionDeleteNotebook, compile(
		`\bdelete\b.*\bnotebook\b`,
		`\bremove\b.*\bnotebook\b`,
		`\bdrop\b.*\bnotebook\b`,
	)},
	{models.ActionListNotebooks, compile(
		`\blist\b.*\bnotebooks?\b`,
		`\bshow\b.*\bnotebooks?\b`,
		`\bwhat\b.*\bnotebooks?\b`,
		`\ball\b.*\bnotebooks?\b`,
	)},
	{models.ActionGetProjectResources, compile(
		`\bhow\s+much\b.*\busing\b`,
		`\bresource\s+usage\b.*\bfor\b`,
		`\bresource\s+consumption\b`,
		`\bshow\b.*\bresource.*\busage\b`,
		`\bwhat.*\busing\b`,
	)},
	{models.ActionAddUserToProject, compile(
		`\badd\s+(?:user\s+)?[\w@.\-]+\s+to\b`,
		`\bgive\s+[\w@.\-]+\s+access\b`,
		`\badd\s+[\w@.\-]+.*\bproject\b`,
		`\bgrant\s+[\w@.\-]+\b`,
	)},
	{models.ActionListProjects, compile(
		`\blist\b.*\bprojects?\b`,
		`\bshow\b.*\bprojects?\b`,
		`\ball\b.*\bprojects?\b`,
		`\bwhat\s+projects?\b`,
	)},
	{models.ActionCreateProject, compile(
		`\bcreate\b.*\bproject\b`,
		`\bnew\s+project\b`,
		`\blaunch\b.*\bproject\b`,
	)},
	{models.ActionAnalyzeLogs, compile(
		`\bwhy\b.*\bfailing\b`,
		`\bshow\b.*\blogs\b`,
		`\blogs?\b.*\bfor\b`,
		`\bwhat\s+errors\b`,
		`\berrors\b.*\bexperiencing\b`,
		`\banalyze\b.*\blogs\b`,
	)},
	{models.ActionCompareMetrics, compile(
		`\bcompare\b.*\bperformance\b`,
		`\bcompare\b.*\bmetrics\b`,
		`\bperformance\b.*\bcompare\b`,
		`\bcompare\b.*\bto\b.*\b(?:yesterday|today|week|month)\b`,
		`\bhow\s+does\b.*\bcompare\b`,
		`\bperformance\s+comparison\b`,
		`\bcomparison\b.*\bfor\b`,
	)},
	{models.ActionDiagnosePerformance, compile(
		`\bcpu\-bound\b`,
		`\bmemory\-bound\b`,
		`\bhigh\s+latency\b`,
		`\bdiagnose\b.*\bperformance\b`,
		`\bperformance\s+issues\b`,
		`\bwhy\b.*\b(?:slow|latency)\b`,
	)},
	{models.ActionGetPredictionDistribution, compile(
		`\bprediction\s+distribution\b`,
		`\bdistribution\s+of\s+predictions\b`,
		`\bprediction\s+statistics\b`,
		`\bshow\b.*\bdistribution\b`,
		`\bget\b.*\bstatistics\b`,
	)},
	{models.ActionDeployModel, compile(
		`\bdeploy\b`,
		`\bcreate\b.*\b(?:model|called)\b`,
		`\blaunch\b`,
		`\bstart\b`,
	)},
	{models.ActionScaleModel, compile(
		`\bscale\b`,
		`\bincrease\b.*\b(?:to|replicas?|instances?)\b`,
		`\bdecrease\b`,
		`\bscale\b.*\b(?:up|down|to)\b`,
	)},
	{models.ActionDeleteModel, compile(
		`\bdelete\b`,
		`\bremove\b`,
		`\bdrop\b`,
		`\bstop\b`,
	)},
	{models.ActionGetStatus, compile(
		`\bstatus\b`,
		`\bis\b.*\brunning\b`,
		`\bcheck\b.*\bmodel\b`,
		`\bshow\b\s+(?:me\s+)?(?:the\s+)?[a-z0-9\-]+(?:\s+model|\s+status)`,
	)},
	{models.ActionListModels, compile(
		`\blist\b.*\bmodels?\b`,
		`\bshow\b.*\ball\b`,
		`\bwhat\b.*\bmodels\b`,
		`\ball\b.*\bmodels?\b`,
	)},
}

// fallbackAction is returned when no rule matches. It is read-only.
const fallbackAction = models.ActionListModels

// Classify maps an utterance to exactly one action. The second return value
// is false when no rule matched and the fallback was used.
func Classify(query string) (models.Action, bool) {
	for _, r := range classificationRules {
		for _, p := range r.patterns {
			if p.MatchString(query) {
				return r.action, true
			}
		}
	}
	return fallbackAction, false
}

// Actions lists every action the classifier can produce, in priority order.
func Actions() []models.Action {
	out := make([]models.Action, 0, len(classificationRules))
	for _, r := range classificationRules {
		out = append(out, r.action)
	}
	return out
}
