package operations

import (
	"context"
	"strings"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/avvvet/rhoai-intent/internal/openshift"
)

type call struct {
	verb      string
	kind      openshift.Kind
	namespace string
	name      string
	selector  string
	body      map[string]any
}

// fakeClient records every resource API call. When err is set every call
// fails with it.
type fakeClient struct {
	mu    sync.Mutex
	calls []call
	err   error
	docs  map[string]map[string]any
	logs  map[string]string
}

var _ openshift.Client = &fakeClient{}

func newFakeClient() *fakeClient {
	return &fakeClient{docs: map[string]map[string]any{}}
}

func key(kind openshift.Kind, namespace, name string) string {
	return string(kind) + "/" + namespace + "/" + name
}

func (f *fakeClient) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeClient) seed(kind openshift.Kind, namespace, name string, doc map[string]any) {
	f.docs[key(kind, namespace, name)] = doc
}

func notFound(kind openshift.Kind, name string) error {
	return apierrors.NewNotFound(schema.GroupResource{Resource: string(kind)}, name)
}

func (f *fakeClient) Create(_ context.Context, kind openshift.Kind, namespace string, obj map[string]any) (map[string]any, error) {
	name, _ := obj["metadata"].(map[string]any)["name"].(string)
	if err := f.record(call{verb: "create", kind: kind, namespace: namespace, name: name, body: obj}); err != nil {
		return nil, err
	}
	f.seed(kind, namespace, name, obj)
	return obj, nil
}

func (f *fakeClient) Get(_ context.Context, kind openshift.Kind, namespace, name string) (map[string]any, error) {
	if err := f.record(call{verb: "get", kind: kind, namespace: namespace, name: name}); err != nil {
		return nil, err
	}
	doc, ok := f.docs[key(kind, namespace, name)]
	if !ok {
		return nil, notFound(kind, name)
	}
	return doc, nil
}

func (f *fakeClient) List(_ context.Context, kind openshift.Kind, namespace, labelSelector string) ([]map[string]any, error) {
	if err := f.record(call{verb: "list", kind: kind, namespace: namespace, selector: labelSelector}); err != nil {
		return nil, err
	}
	prefix := string(kind) + "/"
	if namespace != "" {
		prefix += namespace + "/"
	}
	items := []map[string]any{}
	for k, doc := range f.docs {
		if strings.HasPrefix(k, prefix) {
			items = append(items, doc)
		}
	}
	return items, nil
}

func (f *fakeClient) Patch(_ context.Context, kind openshift.Kind, namespace, name string, patch map[string]any) (map[string]any, error) {
	if err := f.record(call{verb: "patch", kind: kind, namespace: namespace, name: name, body: patch}); err != nil {
		return nil, err
	}
	if _, ok := f.docs[key(kind, namespace, name)]; !ok {
		return nil, notFound(kind, name)
	}
	return patch, nil
}

func (f *fakeClient) Delete(_ context.Context, kind openshift.Kind, namespace, name string) error {
	if err := f.record(call{verb: "delete", kind: kind, namespace: namespace, name: name}); err != nil {
		return err
	}
	if _, ok := f.docs[key(kind, namespace, name)]; !ok {
		return notFound(kind, name)
	}
	delete(f.docs, key(kind, namespace, name))
	return nil
}

func (f *fakeClient) PodLogs(_ context.Context, namespace, labelSelector string, _ int64) (map[string]string, error) {
	if err := f.record(call{verb: "logs", namespace: namespace, selector: labelSelector}); err != nil {
		return nil, err
	}
	return f.logs, nil
}
