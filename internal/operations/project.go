package operations

import (
	"context"
	"fmt"

	"github.com/avvvet/rhoai-intent/internal/models"
	"github.com/avvvet/rhoai-intent/internal/openshift"
)

const (
	dashboardLabel        = "opendatahub.io/dashboard"
	displayNameAnnotation = "openshift.io/display-name"
	descriptionAnnotation = "openshift.io/description"

	defaultProjectRole = "edit"
	rbacGroup          = "rbac.authorization.k8s.io"
)

// ProjectDomain manages data science projects: dashboard-labelled
// namespaces with optional quotas and user role bindings.
type ProjectDomain struct {
	client openshift.Client
}

func NewProjectDomain(client openshift.Client) *ProjectDomain {
	return &ProjectDomain{client: client}
}

func (d *ProjectDomain) Name() string       { return "project" }
func (d *ProjectDomain) Errors() ErrorTable { return projectErrors }

func (d *ProjectDomain) Validate(req *models.OperationRequest) error {
	switch req.OperationType {
	case models.OperationCreate:
		if req.ResourceName == "" {
			return models.NewValidationError("project_name", "project_name is required for project creation operations")
		}
	case models.OperationPatch:
		if req.Parameters.Username == "" {
			return models.NewValidationError("username", "username is required for add user to project operations")
		}
		if req.ResourceName == "" {
			return models.NewValidationError("project_name", "project_name is required for add user to project operations")
		}
	case models.OperationGet:
		if req.ResourceName == "" {
			return models.NewValidationError("project_name", "project_name is required for get project resources operations")
		}
	}
	return nil
}

func (d *ProjectDomain) Dispatch(ctx context.Context, req *models.OperationRequest) (map[string]any, error) {
	name := req.ResourceName
	p := req.Parameters

	switch req.OperationType {
	case models.OperationCreate:
		project, err := d.client.Create(ctx, openshift.KindNamespace, "", namespace(name, p))
		if err != nil {
			return nil, err
		}
		out := map[string]any{"project": project}
		if p.MemoryLimit != "" || p.CPULimit != "" {
			quota, err := d.client.Create(ctx, openshift.KindResourceQuota, name, resourceQuota(name, p))
			if err != nil {
				return nil, err
			}
			out["resource_quota"] = quota
		}
		return out, nil
	case models.OperationList:
		items, err := d.client.List(ctx, openshift.KindNamespace, "", dashboardLabel+"=true")
		if err != nil {
			return nil, err
		}
		return listResult(items), nil
	case models.OperationGet:
		quotas, err := d.client.List(ctx, openshift.KindResourceQuota, name, "")
		if err != nil {
			return nil, err
		}
		quota := map[string]any{}
		if len(quotas) > 0 {
			quota = quotas[0]
		}
		return map[string]any{"project_name": name, "resource_quota": quota}, nil
	case models.OperationPatch:
		return d.client.Create(ctx, openshift.KindRoleBinding, name, roleBinding(p))
	}
	return nil, fmt.Errorf("Unknown operation type: %s", req.OperationType)
}

func namespace(name string, p models.Parameters) map[string]any {
	display := p.DisplayName
	if display == "" {
		display = name
	}
	return map[string]any{
		"metadata": map[string]any{
			"name": name,
			"annotations": map[string]any{
				displayNameAnnotation: display,
				descriptionAnnotation: p.Description,
			},
			"labels": map[string]any{dashboardLabel: "true"},
		},
	}
}

func resourceQuota(project string, p models.Parameters) map[string]any {
	hard := map[string]any{}
	if p.MemoryLimit != "" {
		hard["limits.memory"] = p.MemoryLimit
	}
	if p.CPULimit != "" {
		hard["limits.cpu"] = p.CPULimit
	}
	return map[string]any{
		"metadata": map[string]any{"name": project + "-quota"},
		"spec":     map[string]any{"hard": hard},
	}
}

func roleBinding(p models.Parameters) map[string]any {
	role := p.Role
	if role == "" {
		role = defaultProjectRole
	}
	return map[string]any{
		"metadata": map[string]any{"name": p.Username + "-" + role},
		"roleRef": map[string]any{
			"apiGroup": rbacGroup,
			"kind":     "ClusterRole",
			"name":     role,
		},
		"subjects": []any{
			map[string]any{"apiGroup": rbacGroup, "kind": "User", "name": p.Username},
		},
	}
}
