//go:build windows

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os/exec"
	"runtime"

	ico "github.com/Kodeworks/golang-image-ico"
	"github.com/getlantern/systray"

	"procman/internal/version"
	"procman/ui"
)

// startTray implements a Windows system tray icon with basic controls.
func startTray(app *App, srv *http.Server, done chan struct{}) {
	// Systray wants .ico bytes on Windows. Prefer procman.ico from the
	// embedded assets; fall back to converting the PNG at runtime.
	iconICO, _ := ui.Assets.ReadFile("static/procman.ico")
	iconPNG, _ := ui.Assets.ReadFile("static/procman.png")

	onReady := func() {
		if len(iconICO) > 0 {
			systray.SetIcon(iconICO)
		} else if len(iconPNG) > 0 {
			if img, err := png.Decode(bytes.NewReader(iconPNG)); err == nil {
				var buf bytes.Buffer
				if err := encodeICO(&buf, img); err == nil {
					systray.SetIcon(buf.Bytes())
				}
			}
		}
		systray.SetTitle("procman")
		systray.SetTooltip(fmt.Sprintf("procman %s", version.Version))

		mOpen := systray.AddMenuItem("Open UI", "Open the task monitor in a browser")
		mLogs := systray.AddMenuItem("Open Logs Folder", "Open logs directory")
		mPause := systray.AddMenuItem("Pause Monitoring", "Stop collecting snapshots")
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Stop procman")

		go func() {
			paused := false
			for {
				select {
				case <-mOpen.ClickedCh:
					proto := "http"
					if app.tlsEnabled {
						proto = "https"
					}
					url := fmt.Sprintf("%s://localhost:%d", proto, app.monitor.Port)
					logStuff("Tray: Open UI")
					_ = launchBrowser(url)
				case <-mLogs.ClickedCh:
					if app.monitor.Paths != nil {
						logStuff("Tray: Open Logs Folder")
						_ = openPath(app.monitor.Paths.LogsDir())
					}
				case <-mPause.ClickedCh:
					if paused {
						logStuff("Tray: Resume monitoring")
						app.monitor.Start()
						mPause.SetTitle("Pause Monitoring")
					} else {
						logStuff("Tray: Pause monitoring")
						app.monitor.Pause()
						mPause.SetTitle("Resume Monitoring")
					}
					paused = !paused
				case <-mQuit.ClickedCh:
					logStuff("Tray: Quit")
					systray.Quit()
				}
			}
		}()
	}

	onExit := func() {
		close(done)
	}

	systray.Run(onReady, onExit)
}

func trayQuit() {
	systray.Quit()
}

// encodeICO wraps ico.Encode to allow future multi-size support if desired.
func encodeICO(buf *bytes.Buffer, img image.Image) error {
	return ico.Encode(buf, img)
}

func launchBrowser(url string) error {
	if runtime.GOOS != "windows" {
		return nil
	}
	cmd := exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	return cmd.Start()
}

func openPath(path string) error {
	if runtime.GOOS != "windows" {
		return nil
	}
	cmd := exec.Command("explorer", path)
	return cmd.Start()
}
