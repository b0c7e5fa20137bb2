// Package prerequisites checks that the host binaries the bootstrap drives
// are installed.
package prerequisites

import (
	"fmt"
	"strings"
)

// Tool represents a host binary that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// Package names the distribution package that usually ships the tool.
	Package string
}

// HostTools returns the binaries the bootstrap invokes. iscsiadm is only
// required when distributed block storage is enabled.
func HostTools(storage bool) []Tool {
	return []Tool{
		{Name: "kubeadm", Required: true, Description: "Initializes the control plane", Package: "kubeadm"},
		{Name: "kubelet", Required: true, Description: "Runs the node agent", Package: "kubelet"},
		{Name: "containerd", Required: true, Description: "Container runtime", Package: "containerd"},
		{Name: "modprobe", Required: true, Description: "Loads kernel modules", Package: "kmod"},
		{Name: "sysctl", Required: true, Description: "Applies kernel parameters", Package: "procps"},
		{Name: "swapoff", Required: true, Description: "Disables swap", Package: "util-linux"},
		{Name: "iscsiadm", Required: storage, Description: "Attaches Longhorn volumes", Package: "open-iscsi"},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (package %s)", tool.Name, tool.Package))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available. lookPath resolves a
// binary name, normally exec.LookPath.
func Check(tools []Tool, lookPath func(string) (string, error)) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := lookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}
