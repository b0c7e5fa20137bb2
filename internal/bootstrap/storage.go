package bootstrap

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/imamik/k8solo/internal/config"
	"github.com/imamik/k8solo/internal/helm"
	"github.com/imamik/k8solo/internal/k8s"
	"github.com/imamik/k8solo/internal/poll"
)

// StorageClassLonghorn is the storage class created by the Longhorn chart.
const StorageClassLonghorn = "longhorn"

var storageClassGVR = schema.GroupVersionResource{Group: "storage.k8s.io", Version: "v1", Resource: "storageclasses"}

const longhornAuthSecret = "longhorn-basic-auth"

func buildLonghornValues(cfg *config.Config) helm.Values {
	replicas := cfg.Addons.Storage.ReplicaCount
	return helm.Values{
		"preUpgradeChecker": helm.Values{
			"jobEnabled":          false,
			"upgradeVersionCheck": false,
		},
		"defaultSettings": helm.Values{
			"defaultReplicaCount":                 replicas,
			"allowCollectingLonghornUsageMetrics": false,
			"upgradeChecker":                      false,
			"createDefaultDiskLabeledNodes":       true,
		},
		"persistence": helm.Values{
			"defaultClass":             true,
			"defaultClassReplicaCount": replicas,
		},
		"csi": helm.Values{
			"attacherReplicaCount":    1,
			"provisionerReplicaCount": 1,
			"resizerReplicaCount":     1,
			"snapshotterReplicaCount": 1,
		},
		"longhornUI": helm.Values{
			"replicas": 1,
		},
	}
}

func (b *bootstrapper) installStorage(ctx context.Context) error {
	log := b.rc.Log.WithName(StepStorage)
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	if err := b.privilegedNamespace(ctx, kube, namespaceLonghorn); err != nil {
		return err
	}
	err = b.installChart(ctx, chartInstall{
		addon:     "longhorn",
		release:   "longhorn",
		namespace: namespaceLonghorn,
		override:  b.cfg.Addons.Storage.Helm,
		values:    buildLonghornValues(b.cfg),
		set:       b.cfg.Addons.Storage.Set,
	})
	if err != nil {
		return err
	}

	if err := b.waitDaemonSet(ctx, kube, namespaceLonghorn, "longhorn-manager", poll.Required); err != nil {
		return err
	}
	err = b.await(ctx, "Longhorn instance managers",
		kube.PodsReady(namespaceLonghorn, "longhorn.io/component=instance-manager", 1), b.timeouts.BestEffort, poll.BestEffort)
	if err != nil {
		return err
	}

	// Also covers a release first installed with defaultClass disabled.
	patch := []byte(`{"metadata":{"annotations":{"storageclass.kubernetes.io/is-default-class":"true"}}}`)
	if err := kube.Patch(ctx, storageClassGVR, "", StorageClassLonghorn, patch); err != nil {
		return fmt.Errorf("failed to mark %s as default storage class: %w", StorageClassLonghorn, err)
	}
	log.Info("default storage class set", "storageClass", StorageClassLonghorn)

	if b.cfg.Addons.Storage.UIHost != "" {
		return b.exposeLonghornUI(ctx, kube)
	}
	return nil
}

// exposeLonghornUI publishes the UI through the ingress behind basic auth.
func (b *bootstrapper) exposeLonghornUI(ctx context.Context, kube k8s.Client) error {
	storage := b.cfg.Addons.Storage
	password, err := b.ensurePassword(b.passwordFile(longhornPasswordFile))
	if err != nil {
		return err
	}
	auth, err := htpasswd(storage.UIUser, password)
	if err != nil {
		return err
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: longhornAuthSecret, Namespace: namespaceLonghorn},
		Type:       corev1.SecretTypeOpaque,
		Data:       map[string][]byte{"auth": []byte(auth)},
	}
	if err := kube.CreateSecret(ctx, secret); err != nil {
		return fmt.Errorf("failed to create %s secret: %w", longhornAuthSecret, err)
	}

	manifest, err := renderManifests(map[string]any{
		"apiVersion": "networking.k8s.io/v1",
		"kind":       "Ingress",
		"metadata": map[string]any{
			"name":      "longhorn-ui",
			"namespace": namespaceLonghorn,
			"annotations": map[string]any{
				"nginx.ingress.kubernetes.io/auth-type":   "basic",
				"nginx.ingress.kubernetes.io/auth-secret": longhornAuthSecret,
				"nginx.ingress.kubernetes.io/auth-realm":  "Longhorn",
			},
		},
		"spec": map[string]any{
			"ingressClassName": "nginx",
			"rules": []any{map[string]any{
				"host": storage.UIHost,
				"http": map[string]any{
					"paths": []any{map[string]any{
						"path":     "/",
						"pathType": "Prefix",
						"backend": map[string]any{
							"service": map[string]any{
								"name": "longhorn-frontend",
								"port": map[string]any{"number": 80},
							},
						},
					}},
				},
			}},
		},
	})
	if err != nil {
		return err
	}
	if err := kube.ApplyManifests(ctx, manifest, k8s.FieldManager); err != nil {
		return fmt.Errorf("failed to apply Longhorn UI ingress: %w", err)
	}
	b.rc.Log.WithName(StepStorage).Info("Longhorn UI exposed", "host", storage.UIHost, "user", storage.UIUser)
	return nil
}
