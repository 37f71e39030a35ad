package monitor

import (
	"fmt"
	"time"

	"procman/internal/integrations/discord"
	"procman/internal/models"
)

const (
	defaultAlertThreshold      = 80.0
	defaultAlertSustainedTicks = 3
	alertCooldown              = 5 * time.Minute
)

type webhookPoster func(url string, payload discord.WebhookPayload) (int, error)

// alerter watches successive snapshots and posts a webhook notification
// when CPU or memory usage stays above the threshold for enough ticks in a
// row. Each metric has its own streak and cooldown so a long CPU spike does
// not mask a later memory one.
type alerter struct {
	url       string
	threshold float64
	sustained int
	cooldown  time.Duration
	post      webhookPoster
	logf      func(string, ...interface{})
	now       func() time.Time

	streak   map[string]int
	lastSent map[string]time.Time
}

func newAlerter(url string, threshold float64, sustained int, logf func(string, ...interface{})) *alerter {
	return &alerter{
		url:       url,
		threshold: threshold,
		sustained: sustained,
		cooldown:  alertCooldown,
		post:      discord.Post,
		logf:      logf,
		now:       time.Now,
		streak:    make(map[string]int),
		lastSent:  make(map[string]time.Time),
	}
}

// observe is called once per tick from the sampler goroutine; the webhook
// request itself runs on its own goroutine so a slow endpoint cannot stall
// sampling.
func (a *alerter) observe(snapshot *models.Snapshot) {
	if a == nil || a.url == "" || snapshot == nil {
		return
	}
	a.track("CPU", snapshot.CPUPercent, snapshot)
	a.track("Memory", snapshot.Memory.UsedPercent, snapshot)
}

func (a *alerter) track(metric string, value float64, snapshot *models.Snapshot) {
	if value < a.threshold {
		a.streak[metric] = 0
		return
	}
	a.streak[metric]++
	if a.streak[metric] < a.sustained {
		return
	}
	if a.now().Sub(a.lastSent[metric]) < a.cooldown {
		return
	}
	a.lastSent[metric] = a.now()
	a.fire(metric, value, snapshot)
}

func (a *alerter) fire(metric string, value float64, snapshot *models.Snapshot) {
	description := fmt.Sprintf("%s usage has stayed at or above %.0f%% (currently %.1f%%).",
		metric, a.threshold, value)
	embed := discord.NewEmbed("procman resource alert", description, discord.ColorAlert, "procman")
	embed.Fields = []discord.EmbedField{
		{Name: "CPU", Value: fmt.Sprintf("%.1f%%", snapshot.CPUPercent), Inline: true},
		{Name: "Memory", Value: fmt.Sprintf("%.1f%%", snapshot.Memory.UsedPercent), Inline: true},
		{Name: "Processes", Value: fmt.Sprintf("%d", len(snapshot.Processes)), Inline: true},
	}
	payload := discord.WebhookPayload{Embeds: []discord.Embed{embed}}

	url, post, logf := a.url, a.post, a.logf
	go func() {
		status, err := post(url, payload)
		if err != nil {
			logf("Alert webhook failed: %v", err)
			return
		}
		if status >= 300 {
			logf("Alert webhook returned status %d", status)
		}
	}()
}
