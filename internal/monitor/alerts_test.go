package monitor

import (
	"testing"
	"time"

	"procman/internal/integrations/discord"
	"procman/internal/models"
)

func newTestAlerter(t *testing.T) (*alerter, chan discord.WebhookPayload) {
	t.Helper()
	posted := make(chan discord.WebhookPayload, 8)
	a := newAlerter("https://example.invalid/webhook", 80, 3, func(string, ...interface{}) {})
	a.post = func(url string, payload discord.WebhookPayload) (int, error) {
		posted <- payload
		return 204, nil
	}
	return a, posted
}

func snapshotAt(cpu, ram float64) *models.Snapshot {
	return &models.Snapshot{
		CPUPercent: cpu,
		Memory:     models.MemoryUsage{UsedPercent: ram},
	}
}

func waitForPayload(t *testing.T, posted chan discord.WebhookPayload) discord.WebhookPayload {
	t.Helper()
	select {
	case p := <-posted:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a webhook payload")
		return discord.WebhookPayload{}
	}
}

func assertNoPayload(t *testing.T, posted chan discord.WebhookPayload) {
	t.Helper()
	select {
	case p := <-posted:
		t.Fatalf("unexpected webhook payload: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAlerterFiresAfterSustainedTicks(t *testing.T) {
	a, posted := newTestAlerter(t)

	a.observe(snapshotAt(95, 10))
	a.observe(snapshotAt(92, 10))
	assertNoPayload(t, posted)

	a.observe(snapshotAt(97, 10))
	payload := waitForPayload(t, posted)
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(payload.Embeds))
	}
}

func TestAlerterStreakResetsWhenUsageDrops(t *testing.T) {
	a, posted := newTestAlerter(t)

	a.observe(snapshotAt(95, 10))
	a.observe(snapshotAt(95, 10))
	a.observe(snapshotAt(20, 10)) // drop resets the streak
	a.observe(snapshotAt(95, 10))
	a.observe(snapshotAt(95, 10))
	assertNoPayload(t, posted)
}

func TestAlerterCooldownSuppressesRepeats(t *testing.T) {
	a, posted := newTestAlerter(t)
	current := time.Unix(1000, 0)
	a.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		a.observe(snapshotAt(95, 10))
	}
	waitForPayload(t, posted)

	// Still hot on the next ticks, but within the cooldown window.
	current = current.Add(time.Minute)
	a.observe(snapshotAt(95, 10))
	assertNoPayload(t, posted)

	current = current.Add(alertCooldown)
	a.observe(snapshotAt(95, 10))
	waitForPayload(t, posted)
}

func TestAlerterTracksMetricsIndependently(t *testing.T) {
	a, posted := newTestAlerter(t)

	for i := 0; i < 3; i++ {
		a.observe(snapshotAt(95, 90))
	}
	first := waitForPayload(t, posted)
	second := waitForPayload(t, posted)
	if len(first.Embeds) != 1 || len(second.Embeds) != 1 {
		t.Fatalf("expected separate CPU and memory alerts")
	}
	assertNoPayload(t, posted)
}

func TestAlerterDisabledWithoutURL(t *testing.T) {
	posted := make(chan discord.WebhookPayload, 1)
	a := newAlerter("", 80, 1, func(string, ...interface{}) {})
	a.post = func(url string, payload discord.WebhookPayload) (int, error) {
		posted <- payload
		return 204, nil
	}
	for i := 0; i < 5; i++ {
		a.observe(snapshotAt(100, 100))
	}
	assertNoPayload(t, posted)
}
