package prerequisites

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func fakeLookPath(present ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, p := range present {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestCheck(t *testing.T) {
	tools := []Tool{
		{Name: "kubeadm", Required: true, Package: "kubeadm"},
	}

	results := Check(tools, fakeLookPath("kubeadm"))

	if len(results.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results.Results))
	}
	if !results.Results[0].Found {
		t.Errorf("expected kubeadm to be found")
	}
	if results.Results[0].Path != "/usr/bin/kubeadm" {
		t.Errorf("expected path to be set, got %q", results.Results[0].Path)
	}
	if results.HasErrors() {
		t.Errorf("expected no errors")
	}
	if err := results.Error(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestCheckMissingTool(t *testing.T) {
	tools := []Tool{
		{Name: "kubeadm", Required: true, Package: "kubeadm"},
		{Name: "iscsiadm", Required: false, Package: "open-iscsi"},
	}

	results := Check(tools, fakeLookPath())

	if len(results.Missing) != 2 {
		t.Fatalf("expected 2 missing tools, got %d", len(results.Missing))
	}
	if !results.HasErrors() {
		t.Error("expected errors for missing required tool")
	}
	err := results.Error()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "kubeadm (package kubeadm)") {
		t.Errorf("error should name the missing tool: %v", err)
	}
	if strings.Contains(err.Error(), "iscsiadm") {
		t.Errorf("optional tools must not be reported: %v", err)
	}
}

func TestCheckOptionalMissingIsNotAnError(t *testing.T) {
	results := Check([]Tool{{Name: "iscsiadm"}}, func(string) (string, error) {
		return "", errors.New("not found")
	})
	if results.HasErrors() {
		t.Error("optional tool should not cause errors")
	}
	if results.Error() != nil {
		t.Error("optional tool should not produce an error")
	}
}

func TestHostTools(t *testing.T) {
	required := func(tools []Tool, name string) bool {
		for _, tool := range tools {
			if tool.Name == name {
				return tool.Required
			}
		}
		t.Fatalf("tool %s not listed", name)
		return false
	}

	for _, name := range []string{"kubeadm", "kubelet", "containerd", "modprobe", "sysctl", "swapoff"} {
		if !required(HostTools(false), name) {
			t.Errorf("%s should always be required", name)
		}
	}
	if required(HostTools(false), "iscsiadm") {
		t.Error("iscsiadm should be optional without storage")
	}
	if !required(HostTools(true), "iscsiadm") {
		t.Error("iscsiadm should be required with storage")
	}
}
