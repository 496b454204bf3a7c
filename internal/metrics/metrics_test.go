package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/soumetsu-project/soumetsu/internal/protocol"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(WithRegistry(reg), WithNamespace("test")), reg
}

func TestPacketHandled(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.PacketHandled(protocol.OsuHeartbeat, true)
	m.PacketHandled(protocol.OsuHeartbeat, true)
	m.PacketHandled(protocol.PacketID(5000), false)

	if v := testutil.ToFloat64(m.packetsTotal.WithLabelValues("OSU_HEARTBEAT", "true")); v != 2 {
		t.Errorf("heartbeat count = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.packetsTotal.WithLabelValues("unhandled", "false")); v != 1 {
		t.Errorf("unhandled count = %v, want 1", v)
	}
}

func TestUnhandledPacketsShareOneSeries(t *testing.T) {
	m, _ := newTestMetrics(t)
	for id := 1000; id < 6000; id++ {
		m.PacketHandled(protocol.PacketID(id), false)
	}
	m.PacketHandled(protocol.OsuLogout, false)

	if n := testutil.CollectAndCount(m.packetsTotal); n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
	if v := testutil.ToFloat64(m.packetsTotal.WithLabelValues("unhandled", "false")); v != 5001 {
		t.Errorf("unhandled count = %v, want 5001", v)
	}
}

func TestDispatchFailedKinds(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.DispatchFailed(fmt.Errorf("read header: %w", protocol.ErrTruncatedBuffer))
	m.DispatchFailed(errors.New("boom"))

	if v := testutil.ToFloat64(m.dispatchErrors.WithLabelValues("truncated")); v != 1 {
		t.Errorf("truncated = %v", v)
	}
	if v := testutil.ToFloat64(m.dispatchErrors.WithLabelValues("handler")); v != 1 {
		t.Errorf("handler = %v", v)
	}
}

func TestSessionGauge(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed("timeout")
	m.MailboxOverflow()

	if v := testutil.ToFloat64(m.onlineSessions); v != 1 {
		t.Errorf("online = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.sessionsClosed.WithLabelValues("timeout")); v != 1 {
		t.Errorf("closed{timeout} = %v", v)
	}
	if v := testutil.ToFloat64(m.mailboxOverflows); v != 1 {
		t.Errorf("overflows = %v", v)
	}
}

func TestRegisteredNames(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ObservePoll(3 * time.Millisecond)
	m.LoginResult("ok")

	if n := testutil.CollectAndCount(m.pollDuration, "test_poll_duration_seconds"); n != 1 {
		t.Errorf("poll histogram series = %d", n)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := make(map[string]bool)
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"test_poll_duration_seconds", "test_logins_total", "test_online_sessions"} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}
