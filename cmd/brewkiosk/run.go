package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"brewcode-go/bus"
	"brewcode-go/services/api"
	"brewcode-go/services/brew"
	"brewcode-go/services/config"
	"brewcode-go/services/hal"
	"brewcode-go/services/heartbeat"
	"brewcode-go/services/journal"
	"brewcode-go/services/kiosk"
	"brewcode-go/x/timex"
)

const busQueueLen = 16

func newRunCmd(f *rootFlags) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller until interrupted",
		Long: `Run the controller. SIGINT or SIGTERM aborts any active run,
switches every output off and exits. SIGHUP reloads the config file and
republishes it; brew timings apply once the current run ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(f.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			reload := make(chan struct{}, 1)
			go func() {
				for range hup {
					select {
					case reload <- struct{}{}:
					default:
					}
				}
			}()

			return run(ctx, cfg, cmd.ErrOrStderr(), runOptions{
				trace:  trace,
				reload: reload,
				load:   func() (config.Config, error) { return config.LoadFile(f.configPath) },
			})
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "log every hal/ and brew/ bus message")
	return cmd
}

type runOptions struct {
	trace  bool
	reload <-chan struct{}
	load   func() (config.Config, error)
}

func run(ctx context.Context, cfg config.Config, logw io.Writer, opts runOptions) error {
	logger := func(name string) *log.Logger {
		return log.New(logw, "["+name+"] ", log.LstdFlags)
	}
	mainLog := logger("main")

	mainLog.Println("info: bootstrapping bus")
	b := bus.NewBus(busQueueLen)

	if opts.trace {
		mon := b.NewConnection("monitor")
		go monitor(ctx, mon, logger("monitor"))
	}

	var halDone, brewDone, journalDone sync.WaitGroup
	goTracked(&halDone, func() { hal.Run(ctx, b.NewConnection("hal"), nil, logger("hal")) })

	brewSvc := brew.New(b.NewConnection("brew"), logger("brew"), timex.System)
	goTracked(&brewDone, func() { brewSvc.Run(ctx) })

	// The journal outlives brew so the shutdown abort is recorded.
	journalCtx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()
	journalSvc := journal.New(b.NewConnection("journal"), logger("journal"))
	goTracked(&journalDone, func() { journalSvc.Run(journalCtx) })

	kiosk.New(b.NewConnection("kiosk"), logger("kiosk"), &http.Client{}).Start(ctx)
	go api.New(b.NewConnection("api"), logger("api")).Run(ctx)

	hb := &heartbeat.Service{Log: logger("heartbeat"), Clk: timex.System}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}

	// Config goes last so every service sees it as a retained message.
	cfgConn := b.NewConnection("config")
	cfgSvc := config.NewConfigService(cfg, logger("config"))
	cfgSvc.Publish(cfgConn)
	mainLog.Println("info: running as", cfg.HardwareID)

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-opts.reload:
			if opts.load == nil {
				continue
			}
			next, err := opts.load()
			if err == nil {
				err = cfgSvc.Update(cfgConn, next)
			}
			if err != nil {
				mainLog.Println("error: reload:", err)
				continue
			}
			mainLog.Println("info: config reloaded")
		}
	}
	mainLog.Println("info: shutting down")

	if !waitFor(&brewDone, 3*time.Second) {
		mainLog.Println("warn: brew did not stop in time")
	}
	stopJournal()
	if !waitFor(&journalDone, 3*time.Second) {
		mainLog.Println("warn: journal did not stop in time")
	}
	if !waitFor(&halDone, 3*time.Second) {
		mainLog.Println("warn: hal did not stop in time")
	}
	return nil
}

func goTracked(wg *sync.WaitGroup, f func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		f()
	}()
}

// waitFor reports whether wg finished within d.
func waitFor(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// monitor logs traffic under hal/# and brew/#.
func monitor(ctx context.Context, conn *bus.Connection, l *log.Logger) {
	halSub := conn.Subscribe(bus.T("hal", "#"))
	brewSub := conn.Subscribe(bus.T("brew", "#"))
	defer conn.Disconnect()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-halSub.Channel():
			l.Println("<-", topicString(m.Topic), fmt.Sprintf("%+v", m.Payload))
		case m := <-brewSub.Channel():
			l.Println("<-", topicString(m.Topic), fmt.Sprintf("%+v", m.Payload))
		}
	}
}

func topicString(t bus.Topic) string {
	parts := make([]string, t.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(t.At(i))
	}
	return strings.Join(parts, "/")
}
