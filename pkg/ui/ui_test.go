package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/metadata"
)

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(nil)
		SetNoColor(false)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Output", "musinsa_images")
	PrintError("Failed", errors.New("boom"))
	PrintError("Plain")
	PrintWarning("Careful", "")

	assert.Equal(t, "Output: musinsa_images\nFailed: boom\nPlain\nCareful\n", buf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintInfo("Output", "x")
	PrintSuccess("done")
	PrintError("Failed", "boom")

	assert.Equal(t, "Failed: boom\n", buf.String())
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{err: errors.New("no daemon")}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("Crawl finished", "3 images")
	n.SendError("Crawl failed", "auth")

	assert.Equal(t, []string{"Crawl finished", "Crawl failed"}, sender.titles)
	assert.Contains(t, buf.String(), "Crawl finished: 3 images")

	disabled := NewNotifier(false)
	assert.Nil(t, disabled.sender)
	disabled.SendNotification("title", "message")
}

func TestPlatformSender(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows"} {
		assert.NotNil(t, platformSender(goos), goos)
	}
	assert.Nil(t, platformSender("plan9"))
}

func TestToastScriptEscapesMarkup(t *testing.T) {
	script := toastScript("Crawl <done>", "it's 3 images & more")
	assert.Contains(t, script, "Crawl &lt;done&gt;")
	assert.Contains(t, script, "it''s 3 images &amp; more")
}

func TestAppleScriptString(t *testing.T) {
	assert.Equal(t, `"say \"hi\" \\ bye"`, appleScriptString(`say "hi" \ bye`))
}

func TestProgressDisplay(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, true)

	p.StageStarted("authenticate")
	p.StageFinished("authenticate", "1 attempt", nil)
	p.StageFinished("load orders", "", errors.New("timeout"))

	p.DownloadStarted(1, 3, "a.jpg")
	p.DownloadFinished(1, 3, metadata.DownloadOutcome{Filename: "a.jpg", Status: metadata.StatusSuccess, ByteSize: 2048, Width: 10, Height: 20})
	p.DownloadFinished(2, 3, metadata.DownloadOutcome{Filename: "b.jpg", Status: metadata.StatusSkipped})
	p.DownloadFinished(3, 3, metadata.DownloadOutcome{Filename: "c.jpg", Status: metadata.StatusNetworkFailure, Error: "unexpected status 404"})

	out := buf.String()
	assert.Contains(t, out, "authenticate • 1 attempt")
	assert.Contains(t, out, "load orders: timeout")
	assert.Contains(t, out, "a.jpg • 2.0 KB")
	assert.Contains(t, out, "10x20")
	assert.Contains(t, out, "b.jpg • already present")
	assert.Contains(t, out, "c.jpg • network_failure unexpected status 404")
	assert.Equal(t, 1, p.failures())

	manifest := metadata.NewManifest("run", config.DefaultConfig())
	manifest.Append(metadata.DownloadOutcome{Status: metadata.StatusSuccess, ByteSize: 2048})
	manifest.Append(metadata.DownloadOutcome{Status: metadata.StatusSkipped})
	manifest.Finalize(time.Now())

	buf.Reset()
	p.Complete(manifest, "/tmp/out")
	out = buf.String()
	assert.Contains(t, out, "Downloaded 1 of 2 images")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "/tmp/out")
}

func TestProgressLine(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, false)

	p.DownloadStarted(1, 2, "first.jpg")
	require.Contains(t, buf.String(), "0/2")
	require.Contains(t, buf.String(), "first.jpg")

	p.DownloadFinished(1, 2, metadata.DownloadOutcome{Status: metadata.StatusLowQuality})
	assert.Contains(t, buf.String(), "1/2")
	assert.Contains(t, buf.String(), "1 failed")
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"bytes", formatBytes(500), "500 B"},
		{"kilobytes", formatBytes(1536), "1.5 KB"},
		{"megabytes", formatBytes(1024 * 1024), "1.0 MB"},
		{"seconds", formatDuration(42 * time.Second), "42s"},
		{"minutes", formatDuration(125 * time.Second), "2m5s"},
		{"hours", formatDuration(90 * time.Minute), "1h30m"},
		{"empty bar", progressBar(0, 0, 4), "────"},
		{"half bar", progressBar(1, 2, 4), "━━──"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
