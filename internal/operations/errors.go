package operations

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorTable maps resource API status codes to user-facing messages.
// "{code}" and "{reason}" are substituted on translation.
type ErrorTable struct {
	Messages map[int]string
	Default  string
}

// Translate returns the message for code, or the default message.
func (t ErrorTable) Translate(code int, reason string) string {
	msg, ok := t.Messages[code]
	if !ok {
		msg = t.Default
	}
	return strings.NewReplacer("{code}", strconv.Itoa(code), "{reason}", reason).Replace(msg)
}

// apiError extracts the status code and reason of a Kubernetes API error.
func apiError(err error) (code int, reason string, ok bool) {
	var status apierrors.APIStatus
	if !errors.As(err, &status) {
		return 0, "", false
	}
	s := status.Status()
	if s.Code == 0 {
		return 0, "", false
	}
	switch {
	case s.Message != "":
		reason = s.Message
	case s.Reason != "":
		reason = string(s.Reason)
	default:
		reason = http.StatusText(int(s.Code))
	}
	return int(s.Code), reason, true
}

const unavailable = "OpenShift is temporarily unavailable. Please try again later."

var modelErrors = ErrorTable{
	Messages: map[int]string{
		http.StatusNotFound:            "The requested resource was not found in OpenShift AI",
		http.StatusForbidden:           "You don't have permission to perform this operation: {reason}",
		http.StatusConflict:            "A resource with this name already exists",
		http.StatusInternalServerError: "OpenShift AI encountered an Internal Error: {reason}",
		http.StatusServiceUnavailable:  "OpenShift AI is temporarily unavailable",
	},
	Default: "OpenShift AI API error (HTTP {code}): {reason}",
}

var pipelineErrors = ErrorTable{
	Messages: map[int]string{
		http.StatusNotFound:            "Pipeline not found. Please check the pipeline name and namespace.",
		http.StatusForbidden:           "Permission denied. You don't have access to this pipeline or namespace.",
		http.StatusConflict:            "Pipeline already exists. Please use a different name or update the existing pipeline.",
		http.StatusBadRequest:          "Invalid pipeline configuration. Please check your pipeline parameters.",
		http.StatusInternalServerError: "OpenShift server error. Please try again later.",
		http.StatusServiceUnavailable:  unavailable,
	},
	Default: "OpenShift API error (HTTP {code}): {reason}",
}

var notebookErrors = ErrorTable{
	Messages: map[int]string{
		http.StatusNotFound:            "Notebook not found. Please check the notebook name and namespace.",
		http.StatusForbidden:           "Permission denied. You don't have access to this notebook or namespace.",
		http.StatusConflict:            "Notebook already exists. Please use a different name or delete the existing notebook.",
		http.StatusBadRequest:          "Invalid notebook configuration. Please check your notebook parameters.",
		http.StatusInternalServerError: "OpenShift server error. Please try again later.",
		http.StatusServiceUnavailable:  unavailable,
	},
	Default: "OpenShift API error (HTTP {code}): {reason}",
}

var projectErrors = ErrorTable{
	Messages: map[int]string{
		http.StatusNotFound:            "Project not found. Please check the project name.",
		http.StatusForbidden:           "Permission denied. You don't have access to this project or operation.",
		http.StatusConflict:            "Project already exists. Please use a different name or delete the existing project.",
		http.StatusBadRequest:          "Invalid project configuration. Please check your project parameters.",
		http.StatusInternalServerError: "OpenShift server error. Please try again later.",
		http.StatusServiceUnavailable:  unavailable,
	},
	Default: "OpenShift API error (HTTP {code}): {reason}",
}

var monitoringErrors = ErrorTable{
	Messages: map[int]string{
		http.StatusNotFound:            "Model not found. Please check the model name.",
		http.StatusForbidden:           "Permission denied. You don't have access to this model or metrics.",
		http.StatusConflict:            "A conflicting operation is in progress for this model.",
		http.StatusInternalServerError: "OpenShift server error. Please try again later.",
		http.StatusServiceUnavailable:  unavailable,
	},
	Default: "OpenShift API error (HTTP {code}): {reason}",
}
