// Package prompts renders the agent's replies.
package prompts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/monitoring"
)

const FallbackMessage = "I didn't understand your request clearly. Could you please rephrase what you'd like me to do in OpenShift AI?"

// ConfirmationNote is stored in the session when an operation waits for
// confirmation.
const ConfirmationNote = "This operation requires confirmation. Please confirm to proceed."

// listPreview is how many names a list reply spells out.
const listPreview = 3

func Pending(action models.Action) string {
	return fmt.Sprintf("This operation requires confirmation. Would you like to proceed with %s?", action)
}

func Failure(message string) string {
	return "Operation failed: " + message
}

func Confirmed(op models.OperationType, name string) string {
	return fmt.Sprintf("Successfully completed %s operation on '%s'.", op, name)
}

// Reply renders the outcome of an executed action.
func Reply(action models.Action, result *models.ExecutionResult) string {
	if result.Status != models.StatusSuccess {
		return Failure(result.ErrorMessage)
	}
	return Success(action, result.ResourceName, result.ResultData)
}

// Success describes a successful action in one or two sentences.
func Success(action models.Action, name string, data map[string]any) string {
	switch action {
	case models.ActionDeployModel:
		return fmt.Sprintf("Successfully deployed model '%s'. The model is now available.", name)
	case models.ActionGetStatus:
		return modelStatus(name, data)
	case models.ActionListModels:
		return listSummary("model", data)
	case models.ActionScaleModel:
		return fmt.Sprintf("Successfully scaled model '%s'.", name)
	case models.ActionDeleteModel:
		return fmt.Sprintf("Successfully deleted model '%s'.", name)

	case models.ActionCreatePipeline:
		return fmt.Sprintf("Successfully created pipeline '%s'. The pipeline is now configured.", name)
	case models.ActionUpdatePipeline:
		if schedule, _, _ := unstructured.NestedString(data, "spec", "schedule"); schedule != "" {
			return fmt.Sprintf("Successfully updated pipeline '%s' schedule to: %s", name, schedule)
		}
		return fmt.Sprintf("Successfully updated pipeline '%s'.", name)
	case models.ActionListPipelines:
		return listSummary("pipeline", data)
	case models.ActionListPipelineRuns:
		return listSummary("run", data)

	case models.ActionCreateNotebook:
		return fmt.Sprintf("Successfully created notebook '%s'. The notebook is now available.", name)
	case models.ActionStartNotebook:
		return fmt.Sprintf("Successfully started notebook '%s'.", name)
	case models.ActionStopNotebook:
		return fmt.Sprintf("Successfully stopped notebook '%s'.", name)
	case models.ActionDeleteNotebook:
		return fmt.Sprintf("Successfully deleted notebook '%s'.", name)
	case models.ActionListNotebooks:
		return listSummary("notebook", data)

	case models.ActionCreateProject:
		return fmt.Sprintf("Successfully created project '%s'. The project is now available.", name)
	case models.ActionListProjects:
		return listSummary("project", data)
	case models.ActionAddUserToProject:
		return fmt.Sprintf("Successfully added user to project '%s'.", name)
	case models.ActionGetProjectResources:
		return projectResources(name, data)

	case models.ActionAnalyzeLogs:
		return logSummary(name, data)
	case models.ActionCompareMetrics:
		return metricsSummary(name, data)
	case models.ActionDiagnosePerformance:
		return diagnosisSummary(name, data)
	case models.ActionGetPredictionDistribution:
		return distributionSummary(name, data)
	}
	return fmt.Sprintf("Successfully completed %s.", action)
}

func modelStatus(name string, data map[string]any) string {
	raw, found, _ := unstructured.NestedFieldNoCopy(data, "status", "conditions")
	conditions, _ := raw.([]any)
	if !found || len(conditions) == 0 {
		return fmt.Sprintf("Model '%s' status retrieved.", name)
	}
	for _, c := range conditions {
		cond, _ := c.(map[string]any)
		if cond["type"] == "Ready" && cond["status"] == "True" {
			return fmt.Sprintf("Model '%s' is ready and serving requests.", name)
		}
	}
	return fmt.Sprintf("Model '%s' is not ready yet.", name)
}

func listSummary(noun string, data map[string]any) string {
	items, _ := data["items"].([]map[string]any)
	switch len(items) {
	case 0:
		return fmt.Sprintf("No %ss found.", noun)
	case 1:
		return fmt.Sprintf("Found 1 %s: %s", noun, objectName(items[0]))
	}
	names := make([]string, 0, listPreview)
	for _, item := range items {
		if len(names) == listPreview {
			break
		}
		names = append(names, objectName(item))
	}
	if len(items) > listPreview {
		return fmt.Sprintf("Found %d %ss. First %d: %s, ...", len(items), noun, listPreview, strings.Join(names, ", "))
	}
	return fmt.Sprintf("Found %d %ss: %s", len(items), noun, strings.Join(names, ", "))
}

func objectName(obj map[string]any) string {
	if name, _, _ := unstructured.NestedString(obj, "metadata", "name"); name != "" {
		return name
	}
	return "unknown"
}

func projectResources(name string, data map[string]any) string {
	quota, _ := data["resource_quota"].(map[string]any)
	used, found, _ := unstructured.NestedStringMap(quota, "status", "used")
	if !found {
		return fmt.Sprintf("Retrieved resource usage for project '%s'.", name)
	}
	return fmt.Sprintf("Project '%s' is using %s memory and %s CPU.", name, orNA(used["limits.memory"]), orNA(used["limits.cpu"]))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func logSummary(name string, data map[string]any) string {
	count, _ := data["error_count"].(int)
	if count == 0 {
		return fmt.Sprintf("No errors found in logs for '%s'.", name)
	}
	summary := fmt.Sprintf("Found %d errors in logs for '%s'.", count, name)

	byPod, _ := data["errors"].(map[string][]string)
	pods := make([]string, 0, len(byPod))
	for pod := range byPod {
		pods = append(pods, pod)
	}
	sort.Strings(pods)
	var recent []string
	for _, pod := range pods {
		for _, line := range byPod[pod] {
			if len(recent) < 2 {
				recent = append(recent, strings.TrimSpace(line))
			}
		}
	}
	if len(recent) > 0 {
		summary += " Recent errors: " + strings.Join(recent, "; ")
	}
	return summary
}

func metricsSummary(name string, data map[string]any) string {
	current, ok := data["current"].(monitoring.RequestStats)
	if !ok {
		return fmt.Sprintf("Retrieved metrics for '%s'.", name)
	}
	change, _ := data["percent_change"].(map[string]float64)
	return fmt.Sprintf("Metrics for '%s': %.2f req/s%s, p95 latency %.0fms%s, %.2f errors/s%s",
		name,
		current.RequestsPerSecond, delta(change, "requests_per_second"),
		current.P95LatencyMillis, delta(change, "p95_latency_ms"),
		current.ErrorsPerSecond, delta(change, "errors_per_second"))
}

func delta(change map[string]float64, key string) string {
	v, ok := change[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf(" (%+.1f%%)", v)
}

func diagnosisSummary(name string, data map[string]any) string {
	d, ok := data["diagnosis"].(monitoring.Diagnosis)
	summary := fmt.Sprintf("Performance analysis for '%s': ", name)
	switch {
	case !ok:
		return summary + "no usage data available."
	case d.Classification == "cpu-bound":
		return summary + fmt.Sprintf("CPU-bound (CPU at %.0f%% of its limit). Consider increasing CPU allocation.", d.CPUUtilization*100)
	case d.Classification == "memory-bound":
		return summary + fmt.Sprintf("Memory-bound (memory at %.0f%% of its limit). Consider increasing memory allocation.", d.MemUtilization*100)
	}
	return summary + "No significant bottlenecks detected."
}

func distributionSummary(name string, data map[string]any) string {
	dist, _ := data["distribution"].(map[string]float64)
	total, _ := data["total"].(float64)
	window, _ := data["window"].(string)
	if total == 0 {
		return fmt.Sprintf("No predictions recorded for '%s' over %s.", name, humanWindow(window))
	}

	labels := make([]string, 0, len(dist))
	for label := range dist {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if dist[labels[i]] != dist[labels[j]] {
			return dist[labels[i]] > dist[labels[j]]
		}
		return labels[i] < labels[j]
	})
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", label, dist[label]/total*100))
	}
	return fmt.Sprintf("Prediction distribution for '%s' over %s: %s", name, humanWindow(window), strings.Join(parts, ", "))
}

// humanWindow prints whole days as "7d" and anything else as a duration.
func humanWindow(s string) string {
	d, err := time.ParseDuration(s)
	if err != nil {
		return s
	}
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}
