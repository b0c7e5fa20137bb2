// Package host performs the node-local side of the bootstrap: running
// commands with captured output, enabling and starting systemd units over
// D-Bus, checking the network interface, and writing the kernel and container
// runtime tuning files kubeadm expects.
package host
