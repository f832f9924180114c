package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"analyser/internal/compare"
	"analyser/internal/config"
	applog "analyser/internal/log"
	"analyser/internal/transport"
	"analyser/internal/transport/udp"
	"analyser/internal/tui"

	"golang.org/x/sync/errgroup"
)

// newTransports creates the frame publishers enabled in cfg. The logging
// transport is added when debug logging is on.
func newTransports(cfg *config.Config) ([]transport.Transport, error) {
	var transports []transport.Transport

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, fmt.Errorf("udp transport: %w", err)
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			return nil, fmt.Errorf("udp transport: %w", err)
		}
		publisher.Start()
		transports = append(transports, publisher)
	}

	if cfg.Transport.WebSocketEnabled {
		transports = append(transports, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress))
	}

	if applog.Enabled(applog.LevelDebug) {
		transports = append(transports, transport.NewLoggingTransport())
	}
	return transports, nil
}

// newSession builds the configured analysers at sampleRate and attaches the
// transports.
func newSession(cfg *config.Config, sampleRate float64, opts ...compare.Option) (*compare.Session, error) {
	specs := make([]compare.Spec, len(cfg.Analysers))
	for i, a := range cfg.Analysers {
		specs[i] = compare.Spec{Name: a.Name, Config: a.EngineConfig(sampleRate, cfg.RingCapacity)}
	}

	transports, err := newTransports(cfg)
	if err != nil {
		return nil, err
	}
	for _, t := range transports {
		opts = append(opts, compare.WithTransport(t))
	}

	s, err := compare.NewSession(specs, opts...)
	if err != nil {
		for _, t := range transports {
			t.Close()
		}
		return nil, err
	}
	return s, nil
}

func closeSession(s *compare.Session) {
	if err := s.Close(); err != nil {
		applog.Warnf("Session: Error closing transports: %v", err)
	}
}

// dropCounter is implemented by live sources that may lose input.
type dropCounter interface {
	Dropped() uint64
}

// runHeadless steps the session every interval until the source is done, the
// duration elapses or the process is interrupted, then prints a summary.
func runHeadless(ctx context.Context, s *compare.Session, src compare.Source, interval, duration time.Duration, out io.Writer, dump bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ctx, finish := context.WithCancel(ctx)
	defer finish()
	g, ctx := errgroup.WithContext(ctx)

	var (
		last  compare.Snapshot
		steps atomic.Uint64
	)

	g.Go(func() error {
		defer finish()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				snap, done := s.Pull(src, now)
				last = snap
				steps.Add(1)
				if done {
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		dc, live := src.(dropCounter)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if live {
					applog.Debugf("Headless: %d frames analysed, %d capture buffers dropped", steps.Load(), dc.Dropped())
				} else {
					applog.Debugf("Headless: %d frames analysed", steps.Load())
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if last.Frames == nil {
		return nil
	}
	if dump {
		if _, err := last.WriteTo(out); err != nil {
			return err
		}
	}
	return writeSummary(out, s, last)
}

// writeSummary prints the peak of every analyser and the difference
// statistics of the final snapshot.
func writeSummary(w io.Writer, s *compare.Session, snap compare.Snapshot) error {
	if _, err := fmt.Fprintf(w, "%d frames analysed\n", snap.Step+1); err != nil {
		return err
	}
	for i, f := range snap.Frames {
		peak := snap.PeakBin(i)
		if peak < 0 {
			continue
		}
		e := s.Engine(f.Analyser)
		if _, err := fmt.Fprintf(w, "%-12s peak bin %4d  %8.1f Hz  %7.2f dB  byte %3d\n",
			f.Analyser, peak, e.FrequencyForBin(peak), f.Decibels[peak], f.Bytes[peak]); err != nil {
			return err
		}
	}
	if snap.Diff != nil {
		st := snap.DiffStats
		_, err := fmt.Fprintf(w, "diff mean %.2f%%  max %.2f%% at bin %d  identical %d/%d bins\n",
			st.Mean, st.Max, st.MaxBin, st.Exactly, st.Bins)
		return err
	}
	return nil
}

// runTUI runs the spectrum view with log output redirected to logFile.
func runTUI(m tui.SpectrumModel, logFile string) error {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	applog.SetOutput(f)
	defer applog.SetOutput(os.Stderr)

	return tui.RunSpectrum(m)
}
