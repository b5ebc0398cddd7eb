// Package openshift is the resource API the executors talk to. It exposes a
// five-verb interface over custom resources via the dynamic client, plus the
// few typed calls (pod logs, token review) that have no CR equivalent.
package openshift

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	kubecore "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client is the narrow resource API. Documents are plain JSON-shaped maps.
type Client interface {
	Create(ctx context.Context, kind Kind, namespace string, obj map[string]any) (map[string]any, error)
	Get(ctx context.Context, kind Kind, namespace, name string) (map[string]any, error)
	List(ctx context.Context, kind Kind, namespace, labelSelector string) ([]map[string]any, error)
	Patch(ctx context.Context, kind Kind, namespace, name string, patch map[string]any) (map[string]any, error)
	Delete(ctx context.Context, kind Kind, namespace, name string) error

	// PodLogs returns the last tailLines of every pod matching labelSelector,
	// keyed by pod name.
	PodLogs(ctx context.Context, namespace, labelSelector string, tailLines int64) (map[string]string, error)
}

type client struct {
	dyn     dynamic.Interface
	kube    kubernetes.Interface
	timeout time.Duration
	logger  *zap.Logger
}

// type check
var _ Client = &client{}

// New builds a Client from existing dynamic and typed clients. A zero
// timeout disables the per-call deadline.
func New(dyn dynamic.Interface, kube kubernetes.Interface, timeout time.Duration, logger *zap.Logger) Client {
	return &client{dyn: dyn, kube: kube, timeout: timeout, logger: logger}
}

// LoadConfig reads kubeconfig when a path is given, otherwise tries the
// in-cluster service account and then the default loading rules.
func LoadConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfig, err)
		}
		return cfg, nil
	}
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	cfg, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return cfg, nil
}

// NewForConfig creates dynamic and typed clientsets for cfg.
func NewForConfig(cfg *rest.Config, timeout time.Duration, logger *zap.Logger) (Client, kubernetes.Interface, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	kube, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return New(dyn, kube, timeout, logger), kube, nil
}

func (c *client) resource(kind Kind, namespace string) (dynamic.ResourceInterface, resource, error) {
	r, ok := resources[kind]
	if !ok {
		return nil, r, fmt.Errorf("unknown resource kind %q", kind)
	}
	if !r.namespaced {
		return c.dyn.Resource(r.gvr), r, nil
	}
	return c.dyn.Resource(r.gvr).Namespace(namespace), r, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *client) Create(ctx context.Context, kind Kind, namespace string, obj map[string]any) (map[string]any, error) {
	ri, r, err := c.resource(kind, namespace)
	if err != nil {
		return nil, err
	}
	u := &unstructured.Unstructured{Object: obj}
	if u.GetAPIVersion() == "" {
		u.SetAPIVersion(r.apiVersion())
	}
	if u.GetKind() == "" {
		u.SetKind(r.kind)
	}
	if r.namespaced && u.GetNamespace() == "" {
		u.SetNamespace(namespace)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Debug("creating resource", zap.String("kind", string(kind)), zap.String("namespace", namespace), zap.String("name", u.GetName()))
	out, err := ri.Create(ctx, u, metav1.CreateOptions{})
	if err != nil {
		return nil, err
	}
	return out.UnstructuredContent(), nil
}

func (c *client) Get(ctx context.Context, kind Kind, namespace, name string) (map[string]any, error) {
	ri, _, err := c.resource(kind, namespace)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := ri.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return out.UnstructuredContent(), nil
}

func (c *client) List(ctx context.Context, kind Kind, namespace, labelSelector string) ([]map[string]any, error) {
	ri, _, err := c.resource(kind, namespace)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	list, err := ri.List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(list.Items))
	for i := range list.Items {
		items = append(items, list.Items[i].UnstructuredContent())
	}
	return items, nil
}

// Patch applies patch as a JSON merge patch.
func (c *client) Patch(ctx context.Context, kind Kind, namespace, name string, patch map[string]any) (map[string]any, error) {
	ri, _, err := c.resource(kind, namespace)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Debug("patching resource", zap.String("kind", string(kind)), zap.String("namespace", namespace), zap.String("name", name))
	out, err := ri.Patch(ctx, name, types.MergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return nil, err
	}
	return out.UnstructuredContent(), nil
}

func (c *client) Delete(ctx context.Context, kind Kind, namespace, name string) error {
	ri, _, err := c.resource(kind, namespace)
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Debug("deleting resource", zap.String("kind", string(kind)), zap.String("namespace", namespace), zap.String("name", name))
	return ri.Delete(ctx, name, metav1.DeleteOptions{})
}

func (c *client) PodLogs(ctx context.Context, namespace, labelSelector string, tailLines int64) (map[string]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pods, err := c.kube.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, err
	}

	logs := make(map[string]string, len(pods.Items))
	for _, pod := range pods.Items {
		opts := &kubecore.PodLogOptions{TailLines: &tailLines}
		stream, err := c.kube.CoreV1().Pods(namespace).GetLogs(pod.Name, opts).Stream(ctx)
		if err != nil {
			c.logger.Warn("failed to stream pod logs", zap.String("pod", pod.Name), zap.Error(err))
			continue
		}
		var buf bytes.Buffer
		_, err = io.Copy(&buf, stream)
		stream.Close()
		if err != nil {
			c.logger.Warn("failed to read pod logs", zap.String("pod", pod.Name), zap.Error(err))
			continue
		}
		logs[pod.Name] = buf.String()
	}
	return logs, nil
}
