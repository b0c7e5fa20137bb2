// Package helm installs add-on charts through the Helm v3 SDK.
//
// Repositories are registered the way `helm repo add` does it: the entry is
// written to a repositories.yaml under the configured Helm home and the index
// is downloaded into the repository cache. Releases are installed when absent
// and upgraded otherwise, so a re-run after a partial failure converges.
package helm
