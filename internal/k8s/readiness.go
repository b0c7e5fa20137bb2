package k8s

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/k8solo/internal/poll"
)

// DaemonSetReady is true once the controller has observed the current spec
// and every scheduled pod runs the updated template and is ready.
func (c *client) DaemonSetReady(namespace, name string) poll.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		ds, err := c.clientset.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		if ds.Status.ObservedGeneration < ds.Generation {
			return false, nil
		}
		desired := ds.Status.DesiredNumberScheduled
		return desired > 0 &&
			ds.Status.UpdatedNumberScheduled == desired &&
			ds.Status.NumberReady == desired, nil
	}
}

// DeploymentReady is true once the controller has observed the current spec
// and the desired replicas are all updated and ready.
func (c *client) DeploymentReady(namespace, name string) poll.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		d, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		if d.Status.ObservedGeneration < d.Generation {
			return false, nil
		}
		desired := int32(1)
		if d.Spec.Replicas != nil {
			desired = *d.Spec.Replicas
		}
		return d.Status.UpdatedReplicas == desired && d.Status.ReadyReplicas == desired, nil
	}
}

// PodsReady is true once at least expected pods matching selector are Ready.
// With expected <= 0 it requires at least one pod and all matches Ready.
func (c *client) PodsReady(namespace, selector string, expected int) poll.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return false, err
		}
		ready := 0
		for i := range pods.Items {
			if isPodReady(&pods.Items[i]) {
				ready++
			}
		}
		if expected <= 0 {
			return len(pods.Items) > 0 && ready == len(pods.Items), nil
		}
		return ready >= expected, nil
	}
}

// JobComplete is true once the Job reports Complete=True. A Failed=True job
// aborts the wait. A Job that does not exist counts as complete: Helm hook
// Jobs are deleted once they succeed, before the install returns.
func (c *client) JobComplete(namespace, name string) poll.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		job, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		for _, cond := range job.Status.Conditions {
			if cond.Status != corev1.ConditionTrue {
				continue
			}
			switch cond.Type {
			case batchv1.JobComplete:
				return true, nil
			case batchv1.JobFailed:
				return false, poll.Abort(fmt.Errorf("job %s/%s failed: %s", namespace, name, cond.Message))
			}
		}
		return false, nil
	}
}

// LoadBalancerAssigned is true once the service has an ingress IP.
func (c *client) LoadBalancerAssigned(namespace, name string) poll.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		ip, err := c.ServiceLoadBalancerIP(ctx, namespace, name)
		if err != nil {
			return false, err
		}
		return ip != "", nil
	}
}

func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
