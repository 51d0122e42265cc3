// Package app wires the window system, renderer, serial state machine,
// dispatcher and scheduler into a runnable client.
package app

import (
	"log/slog"
	"time"

	"github.com/michaeljclark/glxsync/config"
	"github.com/michaeljclark/glxsync/debug"
	"github.com/michaeljclark/glxsync/domain/framesync"
	"github.com/michaeljclark/glxsync/domain/pacing"
	"github.com/michaeljclark/glxsync/domain/protocol"
	"github.com/michaeljclark/glxsync/render"
	"github.com/michaeljclark/glxsync/x11"
)

// App owns the connection and the frame loop.
type App struct {
	cfg   *config.Config
	log   *slog.Logger
	conn  *x11.Conn
	sched *pacing.Scheduler
}

// New opens the display, negotiates the synchronization protocol and
// assembles the loop. Errors are setup-fatal; the caller exits.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	conn, err := x11.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Title != "" {
		conn.SetTitle(cfg.Title)
	}

	if cfg.Debug {
		debug.StartRuntimeLogger(2*time.Second, log)
	}

	log.Debug("capabilities",
		"sync_counters", conn.HaveSync(),
		"net_supported", conn.HaveNetSupported(),
		"wm_moveresize", conn.HaveMoveresize())

	serials := framesync.New(conn, log)
	renderer := render.NewCube(conn, cfg.Width, cfg.Height)
	sched := pacing.NewScheduler(pacing.MonotonicClock{}, conn, renderer,
		serials, cfg.FrameRate, cfg.Width, cfg.Height, log)
	sched.Handler = protocol.NewDispatcher(serials, sched, conn, log)

	return &App{cfg: cfg, log: log, conn: conn, sched: sched}, nil
}

// Run drives the frame loop until the window manager requests close.
func (a *App) Run() error {
	a.log.Info("render loop starting",
		"frame_rate", a.cfg.FrameRate,
		"width", a.cfg.Width,
		"height", a.cfg.Height,
		"sync", !a.cfg.NoSync)
	return a.sched.Run()
}

// Close releases the window-system resources.
func (a *App) Close() {
	a.conn.Close()
}
