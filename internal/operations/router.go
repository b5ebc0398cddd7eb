package operations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/monitoring"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

// route is where an action lands: a verb on a target resource.
type route struct {
	verb   models.OperationType
	target models.ResourceType
}

var routes = map[models.Action]route{
	models.ActionDeployModel: {models.OperationCreate, models.ResourceInferenceService},
	models.ActionScaleModel:  {models.OperationPatch, models.ResourceInferenceService},
	models.ActionDeleteModel: {models.OperationDelete, models.ResourceInferenceService},
	models.ActionGetStatus:   {models.OperationGet, models.ResourceInferenceService},
	models.ActionListModels:  {models.OperationList, models.ResourceInferenceService},

	models.ActionCreatePipeline:   {models.OperationCreate, models.ResourcePipeline},
	models.ActionUpdatePipeline:   {models.OperationPatch, models.ResourcePipeline},
	models.ActionListPipelines:    {models.OperationList, models.ResourcePipeline},
	models.ActionListPipelineRuns: {models.OperationList, models.ResourcePipelineRuns},

	models.ActionCreateNotebook: {models.OperationCreate, models.ResourceNotebook},
	models.ActionStartNotebook:  {models.OperationPatch, models.ResourceNotebook},
	models.ActionStopNotebook:   {models.OperationPatch, models.ResourceNotebook},
	models.ActionDeleteNotebook: {models.OperationDelete, models.ResourceNotebook},
	models.ActionListNotebooks:  {models.OperationList, models.ResourceNotebook},

	models.ActionCreateProject:       {models.OperationCreate, models.ResourceProject},
	models.ActionListProjects:        {models.OperationList, models.ResourceProject},
	models.ActionGetProjectResources: {models.OperationGet, models.ResourceProject},
	models.ActionAddUserToProject:    {models.OperationPatch, models.ResourceProject},

	models.ActionAnalyzeLogs:               {models.OperationGet, models.ResourceModelMetrics},
	models.ActionCompareMetrics:            {models.OperationGet, models.ResourceModelMetrics},
	models.ActionDiagnosePerformance:       {models.OperationGet, models.ResourceModelMetrics},
	models.ActionGetPredictionDistribution: {models.OperationGet, models.ResourceModelMetrics},
}

var domains = map[models.ResourceType]string{
	models.ResourceInferenceService: "model",
	models.ResourcePipeline:         "pipeline",
	models.ResourcePipelineRuns:     "pipeline",
	models.ResourceNotebook:         "notebook",
	models.ResourceProject:          "project",
	models.ResourceModelMetrics:     "monitoring",
}

// Request metadata carried from the transport into the audit trail.
type Request struct {
	SessionID   string
	UserID      string
	UserCommand string
	IPAddress   string
	UserAgent   string
}

// BuildRequest turns a validated intent into an executable request.
func BuildRequest(in *models.Intent, meta Request) (*models.OperationRequest, error) {
	r, ok := routes[in.Action]
	if !ok {
		return nil, fmt.Errorf("no operation for action %q", in.Action)
	}
	params := in.Parameters
	if in.Action.IsMonitoring() {
		params.Action = string(in.Action)
	}
	return &models.OperationRequest{
		OperationID:          uuid.NewString(),
		SessionID:            meta.SessionID,
		UserID:               meta.UserID,
		OperationType:        r.verb,
		TargetResource:       r.target,
		ResourceName:         ResourceName(r.target, params),
		Parameters:           params,
		RequiresConfirmation: in.RequiresConfirmation,
		UserCommand:          meta.UserCommand,
		IPAddress:            meta.IPAddress,
		UserAgent:            meta.UserAgent,
	}, nil
}

// ResourceName picks the entity name the target resource is addressed by.
func ResourceName(target models.ResourceType, p models.Parameters) string {
	switch target {
	case models.ResourceInferenceService, models.ResourceModelMetrics:
		return p.ModelName
	case models.ResourcePipeline, models.ResourcePipelineRuns:
		return p.PipelineName
	case models.ResourceNotebook:
		return p.NotebookName
	case models.ResourceProject:
		return p.ProjectName
	}
	return ""
}

// Router picks the executor for a request's target resource.
type Router struct {
	executors        map[string]*Executor
	defaultNamespace string
	logger           *zap.Logger
}

// NewRouter wires the five domain executors over one resource client.
func NewRouter(client openshift.Client, metrics monitoring.Source, sink audit.Sink, m *Metrics, defaultNamespace string, logger *zap.Logger) *Router {
	logger = logger.Named("operations")
	r := &Router{
		executors:        map[string]*Executor{},
		defaultNamespace: defaultNamespace,
		logger:           logger,
	}
	for _, d := range []Domain{
		NewModelDomain(client),
		NewPipelineDomain(client),
		NewNotebookDomain(client),
		NewProjectDomain(client),
		NewMonitoringDomain(client, metrics),
	} {
		r.executors[d.Name()] = NewExecutor(d, sink, m, logger)
	}
	return r
}

// RouteAndExecute runs req on its domain's executor. Requests other than
// lists that carry no namespace get the default namespace.
func (r *Router) RouteAndExecute(ctx context.Context, req *models.OperationRequest) *models.ExecutionResult {
	name, ok := domains[req.TargetResource]
	if !ok {
		r.logger.Warn("no executor for target", zap.String("target", string(req.TargetResource)))
		return &models.ExecutionResult{
			OperationID:  req.OperationID,
			Status:       models.StatusError,
			ResourceName: req.ResourceName,
			ResourceType: req.TargetResource,
			ResultData:   map[string]any{},
			ErrorMessage: fmt.Sprintf("Unknown target resource: %s", req.TargetResource),
		}
	}
	if req.Parameters.Namespace == "" && req.OperationType != models.OperationList && req.TargetResource != models.ResourceProject {
		req.Parameters.Namespace = r.defaultNamespace
	}
	if req.TargetResource == models.ResourcePipelineRuns && req.Parameters.Namespace == "" {
		req.Parameters.Namespace = r.defaultNamespace
	}
	return r.executors[name].Execute(ctx, req)
}
