package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"voicechat/audio"
	"voicechat/backend"
	"voicechat/beep"
	"voicechat/clipboard"
	"voicechat/config"
	"voicechat/doctor"
	"voicechat/hotkey"
	"voicechat/log"
	"voicechat/session"
	"voicechat/shutdown"
)

var version = "dev"

func run() int {
	configFlag := flag.String("config", "", "config file (default: "+config.DefaultPath()+")")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	encodingFlag := flag.String("encoding", "", "Recording encoding: opus, flac or wav")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, replays the WAV given as argument)")
	hybridFlag := flag.Bool("hybrid", false, "Enable hybrid tap+hold recording mode")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for PTT vs tap (e.g., 350ms)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	debugFlag := flag.Bool("debug", false, "Log debug detail to diagnostics_log.txt")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voicechat %s\n", version)
		return 0
	}

	v, err := config.New(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			v.Set("audio.device", *deviceFlag)
		case "encoding":
			v.Set("audio.encoding", *encodingFlag)
		case "hybrid":
			v.Set("hotkey.hybrid", *hybridFlag)
		case "longpress":
			v.Set("hotkey.long_press", *longPressFlag)
		case "debug":
			v.Set("log.debug", *debugFlag)
		case "logpath":
			v.Set("log.dir", *logPathFlag)
		}
	})
	cfg, err := config.Decode(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logPath, err := log.ResolveDir(cfg.Log.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	log.SetDebug(cfg.Log.Debug)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
		crashFile.Close()
	}

	if *doctorFlag {
		return doctor.Run(cfg)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	go func() {
		// a second signal kills the process while an upload drains
		<-ctx.Done()
		stop()
	}()

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voicechat -test <wav-file>")
			return 1
		}
		return runTestMode(ctx, cfg, args[0], os.Stdin, os.Stdout)
	}

	if !cfg.Audio.Beep {
		beep.Disable()
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}

	device := audio.FindDevice(actx, cfg.Audio.Device)
	if cfg.Audio.Device != "" && device == nil {
		log.Warnf("device not found: %s", cfg.Audio.Device)
		fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", cfg.Audio.Device)
	}
	if *setupFlag && cfg.Audio.Device == "" {
		picked, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
		} else if picked != nil {
			device = picked
		}
	}

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		actx.Close()
		return 1
	}
	defer hk.Unregister()

	if err := runLive(ctx, cfg, actx, device, hk, *tuiFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runLive wires the hotkey, the controller and the chosen view, and
// blocks until the user quits or a signal arrives.
func runLive(ctx context.Context, cfg *config.Config, actx audio.Context, device *audio.DeviceInfo, hk hotkey.Hotkey, withTUI bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

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
	defer src.Close()
	isToggle := func() bool { return hy != nil && hy.IsToggle() }

	var (
		a       *app
		console *consoleSink
		ui      = &teaSender{}
	)
	if !withTUI {
		console = newConsoleSink(os.Stdout)
	}

	autoClose := func() {
		a.ctrl.EndCapture(context.WithoutCancel(ctx))
	}
	silence := newSilenceSink(cfg.Session.PollInterval, isToggle, func(ev SilenceEvent) {
		switch ev {
		case SilenceWarn, SilenceRepeat:
			beep.Play(beep.Error)
		case SilenceAutoClose:
			log.Info("silence_auto_close")
			go autoClose()
		}
		if console != nil {
			console.Silence(ev)
		}
		ui.Send(silenceMsg(ev))
	})

	views := []session.EventSink{cueSink{}, silence, toggleReset{hy: hy}}
	if console != nil {
		views = append(views, console)
	} else {
		views = append(views, tuiSink{send: ui.Send})
	}

	a, err := newApp(cfg, actx, device, views...)
	if err != nil {
		actx.Close()
		return err
	}
	defer a.close()
	log.SessionStart(cfg.Backend.BaseURL, cfg.Audio.Encoding, deviceName(device))

	if console != nil {
		a.store.Subscribe(console.Message)
	} else {
		a.store.Subscribe(tuiSink{send: ui.Send}.Message)
		a.onMetrics = func(m backend.Metrics) { ui.Send(metricsMsg(m.Lines())) }
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		driveIntents(gctx, src, a.ctrl)
		return nil
	})

	if withTUI {
		model := newTUIModel(ctx, a.ctrl, a.seed, func() (string, error) {
			return clipboard.CopyLastReply(a.store.Messages())
		})
		model.modeLine = fmt.Sprintf("[%s | %s]", cfg.Audio.Encoding, cfg.Backend.BaseURL)
		model.deviceLine = "mic: " + deviceName(device)
		if device != nil && audio.IsBluetooth(device.Name) {
			model.deviceLine += " (BT!)"
		}
		model.hotkeyHelp = "Ctrl+Shift+Space"
		if cfg.Hotkey.Hybrid {
			model.hotkeyHelp += " (tap to toggle)"
		}
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		ui.set(program)

		g.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("terminal UI: %w", err)
			}
			return nil
		})
	} else {
		fmt.Println("voicechat ready: hold Ctrl+Shift+Space to talk, Ctrl+C to quit")
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	return g.Wait()
}

// teaSender delivers messages to the program once it exists.
type teaSender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (t *teaSender) set(p *tea.Program) {
	t.mu.Lock()
	t.p = p
	t.mu.Unlock()
}

func (t *teaSender) Send(msg tea.Msg) {
	t.mu.Lock()
	p := t.p
	t.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
