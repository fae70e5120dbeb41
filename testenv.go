package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"voicechat/audio"
	"voicechat/beep"
	"voicechat/config"
	"voicechat/hotkey"
	"voicechat/log"
	"voicechat/session"
)

const testWait = 30 * time.Second

// runTestMode replays wavPath as the microphone and drives the hotkey
// from commands on in: KEYDOWN, KEYUP, WAIT, SLEEP <ms>, CANCEL, QUIT.
// WAIT blocks until the session settles in idle or error.
func runTestMode(ctx context.Context, cfg *config.Config, wavPath string, in io.Reader, out io.Writer) int {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(out, "Error loading WAV: %v\n", err)
		return 1
	}

	hk := hotkey.NewFake()
	var src interface {
		hotkey.Source
		Close()
	}
	var hy *hotkey.Hybrid
	if cfg.Hotkey.Hybrid {
		hy = hotkey.NewHybrid(hk, cfg.Hotkey.LongPress)
		src = hy
	} else {
		src = hotkey.NewHold(hk)
	}

	console := newConsoleSink(out)
	var a *app
	silence := newSilenceSink(cfg.Session.PollInterval, func() bool { return hy != nil && hy.IsToggle() }, func(ev SilenceEvent) {
		console.Silence(ev)
		if ev == SilenceAutoClose {
			go a.ctrl.EndCapture(context.WithoutCancel(ctx))
		}
	})

	a, err = newApp(cfg, fakeCtx, nil, silence, toggleReset{hy: hy}, console)
	if err != nil {
		src.Close()
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	a.store.Subscribe(console.Message)
	log.SessionStart(cfg.Backend.BaseURL, cfg.Audio.Encoding, audio.FakeDeviceName)

	ctx, cancel := context.WithCancel(ctx)
	intentsDone := make(chan struct{})
	go func() {
		defer close(intentsDone)
		driveIntents(ctx, src, a.ctrl)
	}()

	settle := func() bool {
		timeout := time.After(testWait)
		for {
			select {
			case s := <-console.changes:
				if s == session.StateIdle || s == session.StateError {
					return true
				}
			case <-timeout:
				return false
			}
		}
	}
	drained := func() {
		deadline := time.Now().Add(5 * time.Second)
		for !hk.Drained() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	scanner := bufio.NewScanner(in)
loop:
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "KEYDOWN":
			hk.SimKeydown()
			drained()
		case cmd == "KEYUP":
			hk.SimKeyup()
			drained()
		case cmd == "WAIT":
			if !settle() {
				fmt.Fprintln(out, "TIMEOUT")
			}
		case cmd == "CANCEL":
			a.ctrl.Cancel()
		case cmd == "QUIT":
			break loop
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		default:
			fmt.Fprintf(out, "unknown command %q\n", cmd)
		}
	}

	cancel()
	src.Close()
	<-intentsDone
	a.close()
	fmt.Fprintf(out, "EXCHANGES %d\n", a.exchanges())
	return 0
}
