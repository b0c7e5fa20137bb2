package k8s

import (
	"context"
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/k8solo/internal/poll"
)

// FieldManager identifies k8solo in managedFields.
const FieldManager = "k8solo"

// Client is the orchestrator API surface used by bootstrap steps.
type Client interface {
	// ApplyManifests server-side applies every document of a multi-document
	// YAML stream.
	ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) error

	// CreateSecret creates the secret, or replaces its data when it exists.
	CreateSecret(ctx context.Context, secret *corev1.Secret) error

	// RefreshDiscovery rebuilds the REST mapper so kinds registered by a
	// freshly installed chart become applicable.
	RefreshDiscovery(ctx context.Context) error

	LabelNode(ctx context.Context, node string, labels map[string]string) error
	AnnotateNode(ctx context.Context, node string, annotations map[string]string) error
	// RemoveNodeTaint removes every taint with key from the node. A node
	// without the taint is left untouched.
	RemoveNodeTaint(ctx context.Context, node, key string) error

	// Patch applies a JSON merge patch to an arbitrary resource. An empty
	// namespace addresses a cluster-scoped resource.
	Patch(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, patch []byte) error

	// ServiceLoadBalancerIP returns the first ingress IP of a LoadBalancer
	// service, or "" while none is assigned.
	ServiceLoadBalancerIP(ctx context.Context, namespace, name string) (string, error)

	DaemonSetReady(namespace, name string) poll.CheckFunc
	DeploymentReady(namespace, name string) poll.CheckFunc
	PodsReady(namespace, selector string, expected int) poll.CheckFunc
	JobComplete(namespace, name string) poll.CheckFunc
	LoadBalancerAssigned(namespace, name string) poll.CheckFunc
}

type client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
	restConfig    *rest.Config
}

// NewFromKubeconfigFile builds a Client from the kubeconfig at path.
func NewFromKubeconfigFile(path string) (Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig: %w", err)
	}
	return NewFromKubeconfig(data)
}

// NewFromKubeconfig builds a Client from kubeconfig bytes.
func NewFromKubeconfig(kubeconfig []byte) (Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	c := &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		restConfig:    restConfig,
	}
	if err := c.RefreshDiscovery(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromClients creates a Client from pre-built clients, mainly for tests.
// Discovery refreshes are no-ops on such a client.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper) Client {
	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        mapper,
	}
}

func (c *client) RefreshDiscovery(_ context.Context) error {
	if c.restConfig == nil {
		return nil
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(c.restConfig)
	if err != nil {
		return fmt.Errorf("failed to create discovery client: %w", err)
	}

	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return fmt.Errorf("failed to get API group resources: %w", err)
	}

	c.mapper = restmapper.NewDiscoveryRESTMapper(groupResources)
	return nil
}
