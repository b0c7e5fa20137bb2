package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
)

// ControlPlaneTaint is the taint kubeadm puts on control-plane nodes.
const ControlPlaneTaint = "node-role.kubernetes.io/control-plane"

func (c *client) LabelNode(ctx context.Context, node string, labels map[string]string) error {
	return c.patchNodeMetadata(ctx, node, "labels", labels)
}

func (c *client) AnnotateNode(ctx context.Context, node string, annotations map[string]string) error {
	return c.patchNodeMetadata(ctx, node, "annotations", annotations)
}

func (c *client) patchNodeMetadata(ctx context.Context, node, field string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	patch, err := json.Marshal(map[string]any{
		"metadata": map[string]any{field: values},
	})
	if err != nil {
		return fmt.Errorf("failed to encode node %s patch: %w", field, err)
	}
	if _, err := c.clientset.CoreV1().Nodes().Patch(ctx, node, types.MergePatchType, patch, metav1.PatchOptions{}); err != nil {
		return fmt.Errorf("failed to patch %s of node %s: %w", field, node, err)
	}
	return nil
}

func (c *client) RemoveNodeTaint(ctx context.Context, node, key string) error {
	n, err := c.clientset.CoreV1().Nodes().Get(ctx, node, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get node %s: %w", node, err)
	}

	kept := make([]corev1.Taint, 0, len(n.Spec.Taints))
	for _, t := range n.Spec.Taints {
		if t.Key != key {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(n.Spec.Taints) {
		return nil
	}

	n.Spec.Taints = kept
	if _, err := c.clientset.CoreV1().Nodes().Update(ctx, n, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to remove taint %s from node %s: %w", key, node, err)
	}
	return nil
}

func (c *client) Patch(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, patch []byte) error {
	ri := c.dynamicClient.Resource(gvr)
	var err error
	if namespace == "" {
		_, err = ri.Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: FieldManager})
	} else {
		_, err = ri.Namespace(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: FieldManager})
	}
	if err != nil {
		return fmt.Errorf("failed to patch %s %s: %w", gvr.Resource, name, err)
	}
	return nil
}

func (c *client) ServiceLoadBalancerIP(ctx context.Context, namespace, name string) (string, error) {
	svc, err := c.clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get service %s/%s: %w", namespace, name, err)
	}
	for _, ing := range svc.Status.LoadBalancer.Ingress {
		if ing.IP != "" {
			return ing.IP, nil
		}
	}
	return "", nil
}
