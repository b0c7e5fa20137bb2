// Package k8s wraps the client-go calls the bootstrap makes against the
// freshly initialized control plane: server-side apply of manifests, secret
// creation, node mutation, generic patches, and the read-only readiness
// checks handed to the poller.
package k8s
