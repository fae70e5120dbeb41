package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"voicechat/audio"
	"voicechat/backend"
	"voicechat/clipboard"
	"voicechat/config"
	"voicechat/encoder"
	"voicechat/hotkey"
	"voicechat/recorder"
)

const micSeconds = 2 * time.Second

var (
	pass = color.New(color.FgGreen, color.Bold).SprintFunc()
	fail = color.New(color.FgRed, color.Bold).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	head = color.New(color.FgCyan).SprintFunc()
)

// Run executes diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	out := color.Output
	fmt.Fprintln(out, head("voicechat doctor - system diagnostics"))
	fmt.Fprintln(out, head("====================================="))

	allPass := true

	if !checkHotkey(out) {
		allPass = false
	}

	ctx, err := audio.NewContext()
	if err != nil {
		step(out, 2, "Microphone")
		fmt.Fprintf(out, "  %s cannot connect to audio: %v\n", fail("FAIL"), err)
		allPass = false
	} else {
		if !checkMicrophone(out, ctx, cfg.Audio.Device, cfg.Session.TempDir) {
			allPass = false
		}
		ctx.Close()
	}

	if !checkBackend(out, backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: 10 * time.Second,
	}) {
		allPass = false
	}

	checkClipboard(out)

	fmt.Fprintln(out)
	if allPass {
		fmt.Fprintln(out, pass("All checks passed!"))
		return 0
	}
	fmt.Fprintln(out, fail("Some checks failed. See details above."))
	return 1
}

func step(out io.Writer, n int, title string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, head(fmt.Sprintf("[%d/4] %s", n, title)))
}

func checkHotkey(out io.Writer) bool {
	step(out, 1, "Hotkey access")
	msg, err := hotkey.Diagnose()
	if err != nil {
		fmt.Fprintf(out, "  %s %v\n", fail("FAIL"), err)
		return false
	}
	fmt.Fprintf(out, "  %s %s\n", pass("PASS"), msg)
	return true
}

// checkMicrophone records a short clip through the same recorder the
// session uses and reports how much audio arrived.
func checkMicrophone(out io.Writer, ctx audio.Context, deviceName, tempDir string) bool {
	step(out, 2, "Microphone")

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Fprintf(out, "  %s cannot list devices: %v\n", fail("FAIL"), err)
		return false
	}
	if len(devices) == 0 {
		fmt.Fprintf(out, "  %s no capture devices found (microphone permission?)\n", fail("FAIL"))
		return false
	}

	device := audio.FindDevice(ctx, deviceName)
	name := "system default"
	if device != nil {
		name = device.Name
	} else if deviceName != "" {
		fmt.Fprintf(out, "  %s device %q not found, using system default\n", warn("WARN"), deviceName)
	}
	fmt.Fprintf(out, "  Using device: %s\n", name)

	if tempDir == "" {
		tempDir = os.TempDir()
	}
	path := filepath.Join(tempDir, "voicechat-doctor."+encoder.Wav.Ext())

	fs := afero.NewOsFs()
	rec := recorder.New(ctx, device, fs)
	defer rec.Dispose()

	if err := rec.Start(encoder.Wav, encoder.SampleRate, path); err != nil {
		fmt.Fprintf(out, "  %s recording error: %v\n", fail("FAIL"), err)
		return false
	}

	fmt.Fprintf(out, "  Speak for %s...", micSeconds)
	var peak float64
	deadline := time.After(micSeconds)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-ticker.C:
			if level, err := rec.Amplitude(); err == nil && level > peak {
				peak = level
			}
		}
	}
	fmt.Fprintln(out, " done")

	got, ok := rec.Stop()
	if !ok {
		fmt.Fprintf(out, "  %s no audio captured\n", fail("FAIL"))
		return false
	}
	defer fs.Remove(got)

	info, err := fs.Stat(got)
	if err != nil {
		fmt.Fprintf(out, "  %s %v\n", fail("FAIL"), err)
		return false
	}
	fmt.Fprintf(out, "  Recorded %.1f KB, peak level %.2f\n", float64(info.Size())/1024, peak)
	if peak == 0 {
		fmt.Fprintf(out, "  %s input was silent, check the microphone is not muted\n", warn("WARN"))
	}
	fmt.Fprintf(out, "  %s microphone capture works\n", pass("PASS"))
	return true
}

func checkBackend(out io.Writer, cfg backend.Config) bool {
	step(out, 3, "Chat backend")
	if cfg.BaseURL == "" {
		fmt.Fprintf(out, "  %s no backend URL configured\n", fail("FAIL"))
		return false
	}
	fmt.Fprintf(out, "  Reaching %s\n", cfg.BaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+time.Second)
	defer cancel()
	rtt, err := backend.New(cfg).Ping(ctx)
	if err != nil {
		fmt.Fprintf(out, "  %s %v\n", fail("FAIL"), err)
		return false
	}
	fmt.Fprintf(out, "  %s backend reachable in %dms\n", pass("PASS"), rtt.Milliseconds())
	return true
}

// checkClipboard never fails the run; copying replies is optional.
func checkClipboard(out io.Writer) {
	step(out, 4, "Clipboard")
	if !clipboard.Available() {
		fmt.Fprintf(out, "  %s no clipboard utility found, ctrl+y copy is disabled\n", warn("WARN"))
		return
	}
	fmt.Fprintf(out, "  %s clipboard available\n", pass("PASS"))
}
