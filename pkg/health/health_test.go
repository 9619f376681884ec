package health

import (
	"testing"
	"time"
)

func TestMonitorDefaults(t *testing.T) {
	m := NewMonitor()
	h := m.GetHealth(3)

	if h.Status != StatusHealthy {
		t.Errorf("Expected healthy with no components, got %s", h.Status)
	}
	if h.ActiveConnections != 3 {
		t.Errorf("Expected 3 active connections, got %d", h.ActiveConnections)
	}
	if h.Goroutines < 1 {
		t.Error("Goroutine count should be positive")
	}
}

func TestComponentStatusAggregation(t *testing.T) {
	m := NewMonitor()
	m.SetComponentStatus("storage", StatusHealthy, "")
	m.SetComponentStatus("hub", StatusDegraded, "slow sends")

	h := m.GetHealth(0)
	if h.Status != StatusDegraded {
		t.Errorf("Degraded component should degrade overall status, got %s", h.Status)
	}

	m.SetComponentStatus("storage", StatusUnhealthy, "db down")
	h = m.GetHealth(0)
	if h.Status != StatusUnhealthy {
		t.Errorf("Unhealthy component should dominate, got %s", h.Status)
	}
	if len(h.Components) != 2 {
		t.Errorf("Expected 2 components, got %d", len(h.Components))
	}
}

func TestUptimeAdvances(t *testing.T) {
	m := NewMonitor()
	m.startTime = time.Now().Add(-2 * time.Second)
	h := m.GetHealth(0)
	if h.Uptime < 2 {
		t.Errorf("Expected uptime >= 2s, got %d", h.Uptime)
	}
}
