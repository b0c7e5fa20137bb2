// Package bootstrap holds the concrete step list that turns a prepared host
// into a single-node Kubernetes cluster with its add-ons.
//
// [Steps] builds the list from a [RunContext]; the sequencer runs it. Every
// step converges: running it against a host where it already succeeded
// leaves the host unchanged, so a step interrupted before its marker was
// written can simply run again.
package bootstrap
