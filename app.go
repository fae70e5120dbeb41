package main

import (
	"fmt"

	"github.com/spf13/afero"

	"voicechat/audio"
	"voicechat/backend"
	"voicechat/config"
	"voicechat/encoder"
	"voicechat/history"
	"voicechat/log"
	"voicechat/recorder"
	"voicechat/session"
	"voicechat/transcript"
)

// app is the wired object graph shared by the live and -test runs.
type app struct {
	cfg      *config.Config
	store    *transcript.Store
	history  *history.Store
	seed     []transcript.Message
	attempts *attemptLog
	ctrl     *session.SessionController

	// onMetrics, when set before the first upload, also receives
	// upload timings (the TUI shows them).
	onMetrics func(backend.Metrics)
}

func deviceName(d *audio.DeviceInfo) string {
	if d == nil {
		return "system default"
	}
	return d.Name
}

// newApp builds the controller and everything it talks to. views receive
// every controller event after the attempt logger.
func newApp(cfg *config.Config, actx audio.Context, device *audio.DeviceInfo, views ...session.EventSink) (*app, error) {
	enc, err := encoder.ParseEncoding(cfg.Audio.Encoding)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    transcript.NewStore(),
		attempts: newAttemptLog(deviceName(device)),
	}

	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = history.DefaultPath()
		}
		a.history, err = history.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		if a.seed, err = a.history.Recent(cfg.History.Limit); err != nil {
			log.Warnf("loading history: %v", err)
		}
		a.store.Subscribe(func(m transcript.Message) {
			if err := a.history.Save(m); err != nil {
				log.Warnf("saving history: %v", err)
			}
		})
	}
	a.store.Subscribe(func(m transcript.Message) {
		log.ChatLine(m.IsUser, m.Text)
	})

	client := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	},
		backend.WithLogger(log.Logger().With().Str("component", "backend").Logger()),
		backend.WithMetrics(a.uploaded),
	)

	rec := recorder.New(actx, device, afero.NewOsFs(),
		recorder.WithLogger(log.Logger().With().Str("component", "recorder").Logger()))

	sinks := append(session.MultiSink{a.attempts}, views...)
	a.ctrl = session.NewSessionController(rec, client, a.store, sinks, session.Config{
		Encoding:     enc,
		SampleRate:   cfg.Audio.SampleRate,
		PollInterval: cfg.Session.PollInterval,
		TempDir:      cfg.Session.TempDir,
		Logger:       log.Logger().With().Str("component", "session").Logger(),
	})
	return a, nil
}

func (a *app) uploaded(m backend.Metrics) {
	log.UploadMetrics(log.UploadStats{
		RequestID:  m.RequestID,
		Attempt:    a.attempts.Attempt(),
		Status:     m.Status,
		PayloadKB:  float64(m.PayloadBytes) / 1024,
		DNSMs:      float64(m.DNS.Microseconds()) / 1000,
		TCPMs:      float64(m.TCP.Microseconds()) / 1000,
		TLSMs:      float64(m.TLS.Microseconds()) / 1000,
		TTFBMs:     float64(m.Server.Microseconds()) / 1000,
		TotalMs:    float64(m.Total.Microseconds()) / 1000,
		ConnReused: m.ConnReused,
	})
	if a.onMetrics != nil {
		a.onMetrics(m)
	}
}

// exchanges counts replies received this run.
func (a *app) exchanges() int {
	n := 0
	for _, m := range a.store.Messages() {
		if !m.IsUser {
			n++
		}
	}
	return n
}

// close releases the microphone, then the history database.
func (a *app) close() {
	a.ctrl.Close()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warnf("closing history: %v", err)
		}
	}
	log.SessionEnd(a.exchanges())
}
