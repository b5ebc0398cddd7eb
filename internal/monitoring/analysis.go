package monitoring

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var namedRanges = map[string]time.Duration{
	"today":      0,
	"yesterday":  day,
	"last week":  7 * day,
	"past week":  7 * day,
	"last month": 30 * day,
	"past month": 30 * day,
}

// MaxRange bounds counted look-backs; longer ranges yield the fallback.
const MaxRange = 365 * day

var countedRange = regexp.MustCompile(`^(?:last|past)\s+(\d+)\s+(day|week|month)s?$`)

// ParseRange converts a time range phrase ("yesterday", "last 3 weeks") to
// a look-back duration. Unknown or empty phrases, and counted ranges longer
// than MaxRange, yield fallback.
func ParseRange(phrase string, fallback time.Duration) time.Duration {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if d, ok := namedRanges[p]; ok {
		return d
	}
	m := countedRange.FindStringSubmatch(p)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	unit := day
	switch m[2] {
	case "week":
		unit = 7 * day
	case "month":
		unit = 30 * day
	}
	if n > int(MaxRange/unit) {
		return fallback
	}
	return time.Duration(n) * unit
}

// Saturation ratio above which a resource counts as the bottleneck.
const saturationThreshold = 0.8

// Diagnosis classifies predictor resource usage.
type Diagnosis struct {
	Classification string   `json:"classification"`
	CPUUtilization float64  `json:"cpu_utilization,omitempty"`
	MemUtilization float64  `json:"memory_utilization,omitempty"`
	Findings       []string `json:"findings"`
}

// Diagnose reports whether the predictor is cpu-bound, memory-bound or
// healthy. Without limits a resource is never considered saturated.
func Diagnose(u ResourceUsage) Diagnosis {
	d := Diagnosis{Classification: "healthy", Findings: []string{}}
	if u.CPULimitCores > 0 {
		d.CPUUtilization = u.CPUCores / u.CPULimitCores
	} else {
		d.Findings = append(d.Findings, "no CPU limit set")
	}
	if u.MemoryLimitBytes > 0 {
		d.MemUtilization = u.MemoryBytes / u.MemoryLimitBytes
	} else {
		d.Findings = append(d.Findings, "no memory limit set")
	}

	switch {
	case d.CPUUtilization >= saturationThreshold:
		d.Classification = "cpu-bound"
		d.Findings = append(d.Findings, "CPU usage is close to its limit; consider raising the CPU limit or adding replicas")
	case d.MemUtilization >= saturationThreshold:
		d.Classification = "memory-bound"
		d.Findings = append(d.Findings, "memory usage is close to its limit; consider raising the memory limit")
	}
	return d
}

var errorLine = regexp.MustCompile(`(?i)\b(?:error|exception|traceback|fatal|panic)\b`)

// ErrorLines returns the lines of logs that look like failures, in order.
func ErrorLines(logs string) []string {
	out := []string{}
	for _, line := range strings.Split(logs, "\n") {
		if errorLine.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
