package host

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/go-logr/logr"
)

// ServiceManager controls host services.
type ServiceManager interface {
	// EnableAndStart enables unit at boot and starts it now. Enabling an
	// enabled unit or starting a running one is a no-op.
	EnableAndStart(ctx context.Context, unit string) error
	// Restart restarts unit so it picks up changed configuration.
	Restart(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (bool, error)
}

// systemdConn is the subset of *dbus.Conn the manager uses.
type systemdConn interface {
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	Close()
}

// SystemdManager drives systemd over the system D-Bus.
type SystemdManager struct {
	connect func(ctx context.Context) (systemdConn, error)
	log     logr.Logger
}

// NewSystemdManager connects lazily to the system bus on each call.
func NewSystemdManager(log logr.Logger) *SystemdManager {
	return &SystemdManager{
		connect: func(ctx context.Context) (systemdConn, error) {
			return dbus.NewSystemConnectionContext(ctx)
		},
		log: log,
	}
}

func (m *SystemdManager) EnableAndStart(ctx context.Context, unit string) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unit, err)
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("failed to reload systemd after enabling %s: %w", unit, err)
	}

	if err := waitJob(ctx, unit, "start", func(ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, unit, "replace", ch)
	}); err != nil {
		return err
	}

	m.log.Info("service enabled and started", "unit", unit)
	return nil
}

func (m *SystemdManager) Restart(ctx context.Context, unit string) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	if err := waitJob(ctx, unit, "restart", func(ch chan<- string) (int, error) {
		return conn.RestartUnitContext(ctx, unit, "replace", ch)
	}); err != nil {
		return err
	}
	m.log.Info("service restarted", "unit", unit)
	return nil
}

// waitJob submits a unit job and waits for systemd to report its result.
func waitJob(ctx context.Context, unit, verb string, submit func(ch chan<- string) (int, error)) error {
	done := make(chan string, 1)
	if _, err := submit(done); err != nil {
		return fmt.Errorf("failed to %s %s: %w", verb, unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%s job for %s finished with result %q", verb, unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s of %s: %w", verb, unit, ctx.Err())
	}
}

func (m *SystemdManager) IsActive(ctx context.Context, unit string) (bool, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return false, fmt.Errorf("unexpected ActiveState value for %s: %s", unit, prop.Value.String())
	}
	return state == "active", nil
}
