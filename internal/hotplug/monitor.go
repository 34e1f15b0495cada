// Package hotplug watches udev netlink events for the configured
// video4linux camera so a session can report a lost camera and recover when
// it is reconnected.
package hotplug

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"facecam/internal/logging"
)

// Event is a camera arrival or removal.
type Event struct {
	Action string
	Device string
}

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Handler receives matched events on the monitor goroutine.
type Handler func(ctx context.Context, ev Event)

// Monitor listens for udev events about one device node.
type Monitor struct {
	logger  *slog.Logger
	device  string
	handler Handler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New returns a monitor for device, or nil when device is empty.
func New(device string, handler Handler, logger *slog.Logger) *Monitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		device:  filepath.Clean(device),
		handler: handler,
	}
}

// Start connects to the udev netlink socket. Failing to connect is logged
// and not returned; the session then only notices camera loss through the
// frame source itself.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; camera hotplug disabled", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "camera reconnects require a daemon restart"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("hotplug monitor stopped", logging.String(logging.FieldEventType, "hotplug_stopped"))
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "camera hotplug events may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	ev, ok := m.match(string(uevent.Action), uevent.Env)
	if !ok {
		return
	}
	m.logger.Info("camera hotplug event",
		logging.String(logging.FieldEventType, "camera_"+ev.Action),
		logging.String("device", ev.Device),
	)
	if m.handler != nil {
		m.handler(ctx, ev)
	}
}

// match filters an event down to the configured device.
func (m *Monitor) match(action string, env map[string]string) (Event, bool) {
	if action != ActionAdd && action != ActionRemove {
		return Event{}, false
	}
	devname := deviceName(env)
	if devname == "" || devname != m.device {
		if devname != "" {
			m.logger.Debug("ignoring event for other device",
				logging.String("device", devname),
				logging.String("configured_device", m.device),
			)
		}
		return Event{}, false
	}
	return Event{Action: action, Device: devname}, true
}

// deviceName gets the device node from a uevent environment.
func deviceName(env map[string]string) string {
	if devname := env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	return "/dev/" + filepath.Base(devpath)
}
