package bootstrap

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/k8solo/internal/helm"
	"github.com/imamik/k8solo/internal/poll"
)

const (
	minioRelease     = "minio"
	minioCredentials = "minio-root-credentials"
	minioAPIPort     = 9000
)

func (b *bootstrapper) buildMinIOValues() helm.Values {
	obj := b.cfg.Addons.ObjectStorage
	persistence := helm.Values{
		"enabled": true,
		"size":    obj.Size,
	}
	if b.cfg.Addons.Storage.Enabled {
		persistence["storageClass"] = StorageClassLonghorn
	}
	return helm.Values{
		"mode":           "standalone",
		"replicas":       1,
		"existingSecret": minioCredentials,
		"persistence":    persistence,
		"service": helm.Values{
			"type": "LoadBalancer",
			"port": minioAPIPort,
		},
		"resources": helm.Values{
			"requests": helm.Values{"memory": "512Mi"},
		},
	}
}

// installObjectStorage deploys MinIO with a reused root password and creates
// the configured buckets through its S3 API.
func (b *bootstrapper) installObjectStorage(ctx context.Context) error {
	log := b.rc.Log.WithName(StepObjectStorage)
	obj := b.cfg.Addons.ObjectStorage
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}

	password, err := b.ensurePassword(b.passwordFile(minioPasswordFile))
	if err != nil {
		return err
	}
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: minioCredentials, Namespace: namespaceMinIO},
		Type:       corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			"rootUser":     []byte(obj.RootUser),
			"rootPassword": []byte(password),
		},
	}
	if err := kube.CreateSecret(ctx, secret); err != nil {
		return fmt.Errorf("failed to create %s secret: %w", minioCredentials, err)
	}

	err = b.installChart(ctx, chartInstall{
		addon:     "minio",
		release:   minioRelease,
		namespace: namespaceMinIO,
		override:  obj.Helm,
		values:    b.buildMinIOValues(),
		set:       obj.Set,
	})
	if err != nil {
		return err
	}
	if err := b.waitDeployment(ctx, kube, namespaceMinIO, minioRelease, poll.Required); err != nil {
		return err
	}
	err = b.await(ctx, "load balancer IP of Service minio/minio",
		kube.LoadBalancerAssigned(namespaceMinIO, minioRelease), b.timeouts.Rollout, poll.Required)
	if err != nil {
		return err
	}

	if len(obj.Buckets) == 0 {
		return nil
	}
	ip, err := kube.ServiceLoadBalancerIP(ctx, namespaceMinIO, minioRelease)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("http://%s:%d", ip, minioAPIPort)
	buckets, err := b.rc.NewBuckets(endpoint, obj.Region, obj.RootUser, password)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := b.await(ctx, "S3 API at "+endpoint, buckets.Reachable(), b.timeouts.Rollout, poll.Required); err != nil {
		return err
	}

	for _, bucket := range obj.Buckets {
		var created bool
		err := b.retry(ctx, log, func(ctx context.Context) error {
			var err error
			created, err = buckets.EnsureBucket(ctx, bucket)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		log.Info("bucket ready", "bucket", bucket, "created", created)
	}
	return nil
}
