package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/ballot/internal/election"
	"github.com/roach88/ballot/internal/sensor"
	"github.com/roach88/ballot/internal/store"
)

// app is an open ledger and the election service over it.
//
// The CLI drives the keypad adapter: the slot is typed instead of read
// from a finger, and every slot bound in the store counts as enrolled.
type app struct {
	store  *store.Store
	reader *sensor.Static
	svc    *election.Service
}

func openApp(ctx context.Context, opts *RootOptions, extra ...election.Option) (*app, error) {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	l.Debug("database ready", "path", opts.DB)

	reader := sensor.NewStatic()
	electionOpts := []election.Option{election.WithLogger(l)}
	if cfg := opts.Config; cfg != nil {
		electionOpts = append(electionOpts, election.WithProbeOptions(
			sensor.WithInterval(cfg.ProbeInterval),
			sensor.WithTimeout(cfg.ProbeTimeout),
		))
	}
	svc, err := election.New(st, reader, append(electionOpts, extra...)...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "create election service", err)
	}

	a := &app{store: st, reader: reader, svc: svc}
	if err := a.connect(ctx, opts); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// connect opens the keypad and loads a template for every bound slot.
func (a *app) connect(ctx context.Context, opts *RootOptions) error {
	port, baud := "keypad", sensor.DefaultBaud
	if cfg := opts.Config; cfg != nil {
		port, baud = cfg.SensorPort, cfg.SensorBaud
	}
	if _, err := a.svc.Connect(ctx, port, baud); err != nil {
		return err
	}

	identities, err := a.svc.ListIdentities(ctx)
	if err != nil {
		return err
	}
	for _, ident := range identities {
		if _, err := a.reader.Enroll(ctx, ident.Slot); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
