package openshift

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Kind names a resource family the agent manages.
type Kind string

const (
	KindInferenceService Kind = "inferenceservices"
	KindPipeline         Kind = "pipelines"
	KindWorkflow         Kind = "workflows"
	KindNotebook         Kind = "notebooks"
	KindNamespace        Kind = "namespaces"
	KindResourceQuota    Kind = "resourcequotas"
	KindRoleBinding      Kind = "rolebindings"
)

type resource struct {
	gvr        schema.GroupVersionResource
	kind       string
	namespaced bool
}

var resources = map[Kind]resource{
	KindInferenceService: {
		gvr:        schema.GroupVersionResource{Group: "serving.kserve.io", Version: "v1beta1", Resource: "inferenceservices"},
		kind:       "InferenceService",
		namespaced: true,
	},
	KindPipeline: {
		gvr:        schema.GroupVersionResource{Group: "pipelines.kubeflow.org", Version: "v1", Resource: "pipelines"},
		kind:       "Pipeline",
		namespaced: true,
	},
	KindWorkflow: {
		gvr:        schema.GroupVersionResource{Group: "argoproj.io", Version: "v1alpha1", Resource: "workflows"},
		kind:       "Workflow",
		namespaced: true,
	},
	KindNotebook: {
		gvr:        schema.GroupVersionResource{Group: "kubeflow.org", Version: "v1", Resource: "notebooks"},
		kind:       "Notebook",
		namespaced: true,
	},
	KindNamespace: {
		gvr:  schema.GroupVersionResource{Version: "v1", Resource: "namespaces"},
		kind: "Namespace",
	},
	KindResourceQuota: {
		gvr:        schema.GroupVersionResource{Version: "v1", Resource: "resourcequotas"},
		kind:       "ResourceQuota",
		namespaced: true,
	},
	KindRoleBinding: {
		gvr:        schema.GroupVersionResource{Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "rolebindings"},
		kind:       "RoleBinding",
		namespaced: true,
	},
}

// GVR returns the group/version/resource for kind.
func GVR(kind Kind) (schema.GroupVersionResource, bool) {
	r, ok := resources[kind]
	return r.gvr, ok
}

// ListKinds maps every known resource to its list kind. The dynamic fake
// client needs it to serve List calls for unregistered types.
func ListKinds() map[schema.GroupVersionResource]string {
	out := make(map[schema.GroupVersionResource]string, len(resources))
	for _, r := range resources {
		out[r.gvr] = r.kind + "List"
	}
	return out
}

func (r resource) apiVersion() string {
	return r.gvr.GroupVersion().String()
}
