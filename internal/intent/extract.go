package intent

import (
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/avvvet/rhoai-intent/internal/models"
)

// Extractors run against the lowercased utterance. Each cascade is ordered
// most specific first; for every pattern only the leftmost match is
// considered, and a stopword capture moves on to the next pattern.

type stopwords map[string]struct{}

func words(ws ...string) stopwords {
	s := make(stopwords, len(ws))
	for _, w := range ws {
		s[w] = struct{}{}
	}
	return s
}

func (s stopwords) has(w string) bool {
	_, ok := s[w]
	return ok
}

func mustAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// firstCapture returns the first group-1 capture that reject does not veto.
func firstCapture(text string, patterns []*regexp.Regexp, reject func(string) bool) string {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if reject != nil && reject(m[1]) {
			continue
		}
		return m[1]
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var (
	modelNamePatterns = mustAll(
		`(?:model\s+called\s+|called\s+)([a-z0-9\-]+)`,
		`(?:scale\s+(?:up|down)\s+)([a-z0-9\-]+)`,
		`(?:deploy|create|delete|remove|scale|increase|decrease)\s+(?:my\s+|the\s+)?([a-z0-9\-]+)`,
		`\bstatus\s+of\s+(?:my\s+|the\s+)?([a-z0-9\-]+)`,
		`(?:my|the|is|does)\s+([a-z0-9\-]+)\s+(?:failing|showing|experiencing)`,
		`(?:logs|errors)\s+(?:of\s+)?(?:for\s+)?(?:my\s+|the\s+)?([a-z0-9\-]+)`,
		`(?:does|how)\s+([a-z0-9\-]+)\s+(?:performance|metrics)`,
		`(?:is|does)\s+(?:my\s+|the\s+)?([a-z0-9\-]+)\s+(?:cpu|memory)\-bound`,
		`(?:performance|metrics)\s+of\s+(?:my\s+|the\s+)?([a-z0-9\-]+)`,
		`(?:of\s+)?(?:predictions|statistics)\s+for\s+(?:my\s+|the\s+)?([a-z0-9\-]+)`,
		`(?:comparison|compare)\s+for\s+([a-z0-9\-]+)`,
		`(?:for|with)\s+([a-z0-9\-]+)\s+(?:over|model)`,
		`(?:diagnose)\s+(?:performance\s+)?(?:issues\s+)?(?:with\s+)?(?:my\s+|the\s+)?([a-z0-9\-]+)`,
		`([a-z0-9\-]+)\s+model`,
		`([a-z0-9\-]+)\s+(?:to|in)\s+`,
	)
	modelNameStopwords = words("a", "an", "the", "my", "me", "model", "to", "with", "from", "for", "replicas", "instances", "up", "down")

	namespacePatterns = mustAll(
		`in\s+([a-z0-9\-]+)\s+namespace`,
		`namespace\s+([a-z0-9\-]+)`,
		`in\s+the\s+([a-z0-9\-]+)\s+(?:namespace|project|environment)`,
	)

	replicaPatterns = mustAll(
		`(\d+)\s+replicas?`,
		`to\s+(\d+)\s+(?:replicas?|instances?)?`,
		`(\d+)\s+instances?`,
		`with\s+(\d+)\s+replicas?`,
	)
	replicaWordPatterns = mustAll(
		`to\s+(zero|one|two|three|four|five|six|seven|eight|nine|ten)\s+replicas?`,
		`\b(zero|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:replicas?|instances?)\b`,
	)

	storageURIPattern = regexp.MustCompile(`(?i)((?:s3|gs|https?)://[^\s]+)`)

	pipelineNamePatterns = mustAll(
		`pipeline\s+called\s+([a-z0-9\-]+)`,
		`called\s+([a-z0-9\-]+)`,
		`(?:create|build|set\s+up)\s+(?:a\s+)?(?:pipeline\s+)?([a-z0-9\-]+)`,
		`([a-z0-9\-]+)\s+pipeline`,
	)
	pipelineNameStopwords = words("a", "an", "the", "my", "pipeline", "data", "to", "for", "from")

	pipelineRunsPatterns = mustAll(
		`runs\s+(?:of|for)\s+(?:the\s+|my\s+)?(?:pipeline\s+)?([a-z0-9\-]+)`,
		`history\s+(?:of|for)\s+(?:the\s+|my\s+)?(?:pipeline\s+)?([a-z0-9\-]+)`,
		`([a-z0-9\-]+)\s+pipeline\s+runs`,
	)
	pipelineRunsStopwords = words("a", "an", "the", "my", "pipeline", "to", "for", "from", "show", "list", "all", "me")

	schedulePatterns = mustAll(
		`every\s+(\d+\s+(?:hours|hour|minutes|minute|days|day))`,
		`(hourly|daily|weekly|monthly)`,
		`to\s+run\s+(every\s+[^\s]+(?:\s+[^\s]+)?)`,
		`schedule\s+(?:to\s+)?(.+?)(?:\s+to|\s+for|$)`,
	)

	notebookNamePatterns = mustAll(
		`notebook\s+called\s+([a-z0-9\-]+)`,
		`called\s+([a-z0-9\-]+)`,
		`(?:create|launch|start|stop|delete|remove)\s+(?:a|an|the|my)?\s*(?:notebook\s+)?([a-z0-9\-]+)`,
		`([a-z0-9\-]+)\s+notebook`,
	)
	notebookNameStopwords = words("a", "an", "the", "my", "notebook", "python", "jupyter", "to", "for", "from", "with")

	memoryPatterns = mustAll(
		`(\d+)\s*(?:gb|g)\s+(?:of\s+)?(?:ram|memory)`,
		`(?:with|using)\s+(\d+)\s*(?:gb|gi|mi|g)\b`,
		`(\d+)\s*(?:gb|gi|mi|g)\b(?:\s+(?:ram|memory))?`,
	)
	mebibyteToken = regexp.MustCompile(`\d+\s*mi\b`)

	cpuPatterns = mustAll(
		`(\d+)\s*(?:cpus|cpu|cores|core)`,
		`(\d+)\s*-\s*core`,
		`(?:with|using)\s+(\d+)\s+(?:cpu|core)`,
	)

	gpuCountPatterns = mustAll(
		`(\d+)\s*(?:gpus|gpu)`,
		`(?:with|using)\s+(\d+)\s+gpu`,
	)
	gpuDisabledPattern = regexp.MustCompile(`\bno\s+gpus?\b|\bwithout\s+(?:a\s+)?gpus?\b`)
	gpuEnabledPattern  = regexp.MustCompile(`\bgpu\s+support\b|\bwith\s+(?:a\s+)?gpu\b|\bgpu\s+enabled\b`)

	explicitImagePattern = regexp.MustCompile(`(?i)(?:image\s+)?([a-z0-9\-\.]+(?:/[a-z0-9\-\._]+)+:[a-z0-9\-\._]+)`)

	projectNamePatterns = mustAll(
		`project\s+called\s+([a-z0-9\-]+)`,
		`project\s+named\s+([a-z0-9\-]+)`,
		`called\s+([a-z0-9\-]+)`,
		`named\s+([a-z0-9\-]+)`,
		`(?:to|for|of)\s+(?:the\s+)?([a-z0-9\-]+)(?:\s+project)?`,
		`([a-z0-9\-]+)\s+(?:project|using|access)`,
		`(?:create|for)\s+(?:the\s+)?([a-z0-9\-]+)(?:\s+(?:team|project))?`,
	)
	projectNameStopwords = words("a", "an", "the", "my", "project", "team", "to", "for", "from", "with", "access", "user")

	usernamePatterns = mustAll(
		`(?:add|give|grant)\s+(?:user\s+)?([\w@.\-]+)`,
		`user\s+([\w@.\-]+)`,
		`(\w+@\w+\.\w+)`,
	)
	usernameStopwords = words("access", "to", "permissions", "user")

	memoryLimitPatterns = mustAll(
		`(\d+)\s*(?:gb|g)\s+(?:of\s+)?(?:memory|ram)(?:\s+limit)?`,
		`(?:with|limit)\s+(\d+)\s*(?:gb|gi|g)\b`,
		`(\d+)\s*(?:gb|gi|g)\b(?:\s+(?:memory|ram))?\s+(?:limit|quota)?`,
	)

	cpuLimitPatterns = mustAll(
		`(\d+)\s*(?:cpus|cpu|cores|core)(?:\s+limit)?`,
		`(?:and|with)\s+(\d+)\s*(?:cpu|core)`,
		`cpu\s+(?:limit|quota)\s+(?:of\s+)?(\d+)`,
	)

	timeRangePatterns = mustAll(
		`(last\s+week)`,
		`(last\s+month)`,
		`(yesterday)`,
		`(today)`,
		`(past\s+week)`,
		`(past\s+month)`,
		`(last\s+\d+\s+(?:days?|weeks?|months?))`,
		`(?:over|for)\s+the\s+(last\s+(?:week|month|day))`,
	)
)

// numberWords maps English number words to their value.
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// imageKeyword maps a framework keyword to a default notebook image.
type imageKeyword struct {
	keyword *regexp.Regexp
	image   string
}

var imageKeywords = []imageKeyword{
	{regexp.MustCompile(`\btensorflow\b`), "tensorflow/tensorflow:latest-jupyter"},
	{regexp.MustCompile(`\bpytorch\b`), "pytorch/pytorch:latest"},
	{regexp.MustCompile(`\bpython\b`), "jupyter/scipy-notebook:latest"},
	{regexp.MustCompile(`\bdata\s*science\b`), "jupyter/datascience-notebook:latest"},
	{regexp.MustCompile(`\br\b`), "jupyter/r-notebook:latest"},
	{regexp.MustCompile(`\bjulia\b`), "jupyter/julia-notebook:latest"},
}

// roleFamily maps keywords to a cluster role name.
type roleFamily struct {
	role     string
	keywords *regexp.Regexp
}

var roleFamilies = []roleFamily{
	{"edit", regexp.MustCompile(`\b(?:edit|editor|write|contributor)\b`)},
	{"view", regexp.MustCompile(`\b(?:view|read|viewer|readonly|read-only)\b`)},
	{"admin", regexp.MustCompile(`\b(?:admin|administrator|owner)\b`)},
}

func extractModelName(q string) string {
	return firstCapture(q, modelNamePatterns, func(s string) bool {
		return modelNameStopwords.has(s) || isDigits(s)
	})
}

func extractNamespace(q string) string {
	return firstCapture(q, namespacePatterns, nil)
}

// extractReplicas accepts digits and number words zero..ten. Digits that
// do not fit an int32 are kept verbatim as a string so validation rejects
// them instead of seeing a wrapped value.
func extractReplicas(q string) *intstr.IntOrString {
	if s := firstCapture(q, replicaPatterns, nil); s != "" {
		if n, ok := parseReplicas(s); ok {
			return models.IntReplicas(n)
		}
		v := intstr.FromString(s)
		return &v
	}
	if w := firstCapture(q, replicaWordPatterns, nil); w != "" {
		if n, ok := numberWords[w]; ok {
			return models.IntReplicas(n)
		}
	}
	return nil
}

func parseReplicas(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func extractStorageURI(q string) string {
	if m := storageURIPattern.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	return ""
}

func extractPipelineName(q string) string {
	return firstCapture(q, pipelineNamePatterns, pipelineNameStopwords.has)
}

func extractPipelineRunsName(q string) string {
	return firstCapture(q, pipelineRunsPatterns, pipelineRunsStopwords.has)
}

func extractSchedule(q string) string {
	return strings.TrimSpace(firstCapture(q, schedulePatterns, nil))
}

func extractNotebookName(q string) string {
	return firstCapture(q, notebookNamePatterns, notebookNameStopwords.has)
}

// extractMemory normalizes to Kubernetes quantities: Gi unless the amount is
// written in mebibytes.
func extractMemory(q string) string {
	n := firstCapture(q, memoryPatterns, nil)
	if n == "" {
		return ""
	}
	if mebibyteToken.MatchString(q) {
		return n + "Mi"
	}
	return n + "Gi"
}

func extractCPU(q string) string {
	return firstCapture(q, cpuPatterns, nil)
}

// extractGPU returns an explicit count, 0 for "no GPU", 1 for "GPU
// support", or false when the utterance says nothing about GPUs.
func extractGPU(q string) (int, bool) {
	if s := firstCapture(q, gpuCountPatterns, nil); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	if gpuDisabledPattern.MatchString(q) {
		return 0, true
	}
	if gpuEnabledPattern.MatchString(q) {
		return 1, true
	}
	return 0, false
}

func extractImage(raw string) string {
	if m := explicitImagePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	q := strings.ToLower(raw)
	for _, k := range imageKeywords {
		if k.keyword.MatchString(q) {
			return k.image
		}
	}
	return ""
}

func extractProjectName(q string) string {
	return firstCapture(q, projectNamePatterns, projectNameStopwords.has)
}

func extractUsername(q string) string {
	u := firstCapture(q, usernamePatterns, func(s string) bool {
		return usernameStopwords.has(strings.TrimRight(s, "."))
	})
	return strings.TrimRight(u, ".")
}

func extractMemoryLimit(q string) string {
	if n := firstCapture(q, memoryLimitPatterns, nil); n != "" {
		return n + "Gi"
	}
	return ""
}

func extractCPULimit(q string) string {
	return firstCapture(q, cpuLimitPatterns, nil)
}

func extractRole(q string) string {
	for _, f := range roleFamilies {
		if f.keywords.MatchString(q) {
			return f.role
		}
	}
	return ""
}

func extractTimeRange(q string) string {
	return firstCapture(q, timeRangePatterns, nil)
}

// extractParameters runs the extractors that apply to action.
func extractParameters(query string, action models.Action) models.Parameters {
	q := strings.ToLower(query)
	var p models.Parameters

	switch action {
	case models.ActionDeployModel, models.ActionScaleModel, models.ActionDeleteModel, models.ActionGetStatus,
		models.ActionAnalyzeLogs, models.ActionCompareMetrics, models.ActionDiagnosePerformance, models.ActionGetPredictionDistribution:
		p.ModelName = extractModelName(q)
	case models.ActionCreatePipeline, models.ActionUpdatePipeline:
		p.PipelineName = extractPipelineName(q)
	case models.ActionListPipelineRuns:
		p.PipelineName = extractPipelineRunsName(q)
	case models.ActionCreateNotebook, models.ActionStartNotebook, models.ActionStopNotebook, models.ActionDeleteNotebook:
		p.NotebookName = extractNotebookName(q)
	}

	p.Namespace = extractNamespace(q)

	switch action {
	case models.ActionCreateNotebook:
		p.Memory = extractMemory(q)
		p.CPU = extractCPU(q)
		if n, ok := extractGPU(q); ok {
			p.GPU = models.IntPtr(n)
		}
		p.Image = extractImage(query)
	case models.ActionStopNotebook:
		p.Action = "stop"
	case models.ActionStartNotebook:
		p.Action = "start"
	case models.ActionDeployModel:
		p.Replicas = extractReplicas(q)
		// URIs are case sensitive, so they are read from the raw text.
		p.StorageURI = extractStorageURI(query)
	case models.ActionScaleModel:
		p.Replicas = extractReplicas(q)
	case models.ActionUpdatePipeline:
		p.Schedule = extractSchedule(q)
	case models.ActionCreateProject:
		p.ProjectName = extractProjectName(q)
		p.MemoryLimit = extractMemoryLimit(q)
		p.CPULimit = extractCPULimit(q)
	case models.ActionAddUserToProject:
		p.Username = extractUsername(q)
		p.ProjectName = extractProjectName(q)
		p.Role = extractRole(q)
	case models.ActionGetProjectResources:
		p.ProjectName = extractProjectName(q)
	}

	if action.IsMonitoring() {
		p.TimeRange = extractTimeRange(q)
	}

	return p
}
