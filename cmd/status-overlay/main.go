// Command status-overlay watches the battery status overlay board's interrupt
// pins, reporting fuel gauge SOC pulses and power button presses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/status-overlay/internal/console"
	"github.com/sweeney/status-overlay/internal/gpio"
	"github.com/sweeney/status-overlay/internal/logic"
	"github.com/sweeney/status-overlay/internal/monitor"
	"github.com/sweeney/status-overlay/internal/mqtt"
	"github.com/sweeney/status-overlay/internal/status"
	"github.com/sweeney/status-overlay/internal/web"
)

// defaultEnvFile is read for flag defaults unless STATUS_OVERLAY_ENV names another file.
const defaultEnvFile = "/etc/status-overlay.env"

// eventQueueSize bounds the hand-off from interrupt handlers to the main loop.
const eventQueueSize = 64

type config struct {
	backend    string
	chip       string
	poll       time.Duration
	broker     string
	clientID   string
	heartbeat  time.Duration
	httpAddr   string
	printState bool
	simulate   bool
}

func main() {
	envFile := os.Getenv("STATUS_OVERLAY_ENV")
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := loadEnvFile(envFile); err != nil {
		log.Printf("warning: %v", err)
	}

	var cfg config
	flag.StringVar(&cfg.backend, "backend", envOr("STATUS_OVERLAY_BACKEND", "cdev"), `GPIO backend ("cdev" or "rpio")`)
	flag.StringVar(&cfg.chip, "chip", envOr("STATUS_OVERLAY_CHIP", "gpiochip0"), "GPIO chip for the cdev backend")
	flag.DurationVar(&cfg.poll, "poll", envDuration("STATUS_OVERLAY_POLL", 10*time.Millisecond), "Edge latch polling interval for the rpio backend")
	flag.StringVar(&cfg.broker, "broker", envOr("STATUS_OVERLAY_BROKER", ""), "MQTT broker address (empty to disable)")
	flag.StringVar(&cfg.clientID, "client-id", envOr("STATUS_OVERLAY_CLIENT_ID", "status-overlay"), "MQTT client ID")
	flag.DurationVar(&cfg.heartbeat, "heartbeat", envDuration("STATUS_OVERLAY_HEARTBEAT", 15*time.Minute), "MQTT heartbeat interval (0 to disable)")
	flag.StringVar(&cfg.httpAddr, "http", envOr("STATUS_OVERLAY_HTTP", ""), "HTTP status address (empty to disable)")
	flag.BoolVar(&cfg.printState, "print-state", false, "Print current pin levels and exit")
	flag.BoolVar(&cfg.simulate, "simulate", false, "Use simulated pins driven from an interactive prompt")

	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config) error {
	startTime := time.Now()

	// Initialize GPIO
	watcher, err := openWatcher(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer watcher.Close()

	var out io.Writer = os.Stdout
	var con *console.Console
	counter := logic.NewCounter(startTime)
	if fake, ok := watcher.(*gpio.FakeWatcher); ok {
		con, err = console.New(fake, counter.Counts)
		if err != nil {
			return err
		}
		defer con.Close()
		out = con.Stdout()
	}

	mon := monitor.New(watcher, out, monitor.DefaultHandlers())
	events := make(chan logic.Event, eventQueueSize)
	mon.OnEvent(counter.Record)
	mon.OnEvent(func(e logic.Event) {
		select {
		case events <- e:
		default:
			log.Printf("event queue full, %s not forwarded", e.Type)
		}
	})
	if err := mon.Start(); err != nil {
		return fmt.Errorf("configure pins: %w", err)
	}

	// Print state mode
	if cfg.printState {
		levels, err := mon.Levels()
		if err != nil {
			return err
		}
		printLevels(os.Stdout, levels)
		return nil
	}

	tracker := status.NewTracker(startTime, status.Config{
		Backend:     backendName(cfg),
		Chip:        chipName(cfg),
		PinSOC:      gpio.PinSOC,
		PinPower:    gpio.PinPower,
		HeartbeatMs: cfg.heartbeat.Milliseconds(),
		Broker:      cfg.broker,
		HTTPAddr:    cfg.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize MQTT
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.broker != "" {
		p := mqtt.NewRealPublisher(cfg.broker, cfg.clientID)
		defer p.Close()
		publisher, mqttStatus = p, p
		tracker.SetMQTTConnected(p.IsConnected())

		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Start HTTP status server
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	log.Printf("started: backend=%s soc=GPIO%d power=GPIO%d broker=%q heartbeat=%v",
		backendName(cfg), gpio.PinSOC, gpio.PinPower, cfg.broker, cfg.heartbeat)

	ticker := time.NewTicker(monitor.HeartbeatInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if con != nil {
		go func() {
			con.Run()
			select {
			case sigCh <- os.Interrupt:
			default:
			}
		}()
	}

	return runLoop(loop{
		monitor:    mon,
		counter:    counter,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  cfg.heartbeat,
		now:        time.Now,
	}, ticker.C, events, sigCh)
}

func openWatcher(cfg config) (gpio.Watcher, error) {
	if cfg.simulate {
		return gpio.NewFakeWatcher(), nil
	}
	switch cfg.backend {
	case "cdev":
		w, err := gpio.NewRealWatcher(cfg.chip)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "rpio":
		w, err := gpio.NewRPIOWatcher(cfg.poll)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.backend)
}

func backendName(cfg config) string {
	if cfg.simulate {
		return "simulate"
	}
	return cfg.backend
}

func chipName(cfg config) string {
	if cfg.simulate || cfg.backend != "cdev" {
		return ""
	}
	return cfg.chip
}

// loop holds the collaborators of the main loop. publisher and mqttStatus
// are nil when MQTT is disabled; tracker may be nil in tests.
type loop struct {
	monitor    *monitor.Monitor
	counter    *logic.Counter
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
}

// heartbeatQueueSize bounds MQTT heartbeats waiting for the forwarder.
const heartbeatQueueSize = 4

// runLoop writes the heartbeat line, then once per tick, forever. It only
// returns after a signal. Broker I/O runs on a separate forwarder goroutine
// so a slow or stalled link never delays the heartbeat line.
func runLoop(l loop, tick <-chan time.Time, events <-chan logic.Event, sig <-chan os.Signal) error {
	beats := make(chan logic.HeartbeatData, heartbeatQueueSize)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.forward(events, beats, stop)
	}()

	l.monitor.Heartbeat()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			close(stop)
			<-done
			l.shutdown(signalName(s))
			return nil

		case <-tick:
			l.monitor.Heartbeat()

			hb := l.counter.CheckHeartbeat(l.now(), l.heartbeat)
			if hb != nil && l.publisher != nil {
				select {
				case beats <- *hb:
				default:
					log.Printf("heartbeat queue full, MQTT heartbeat skipped")
				}
			}
			l.refreshTracker(nil)
		}
	}
}

// forward publishes pin events and MQTT heartbeats until stop is closed.
// Heartbeats already queued at stop are still sent; pin events still queued
// are dropped.
func (l loop) forward(events <-chan logic.Event, beats <-chan logic.HeartbeatData, stop <-chan struct{}) {
	for {
		// stop wins over pending work
		select {
		case <-stop:
			l.finish(events, beats)
			return
		default:
		}

		select {
		case <-stop:
			l.finish(events, beats)
			return

		case e := <-events:
			l.refreshTracker(&e)
			if l.publisher != nil {
				if err := l.publisher.Publish(e); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

		case hb := <-beats:
			l.publishHeartbeat(hb)
		}
	}
}

func (l loop) finish(events <-chan logic.Event, beats <-chan logic.HeartbeatData) {
	for {
		select {
		case hb := <-beats:
			l.publishHeartbeat(hb)
		default:
			if n := len(events); n > 0 {
				log.Printf("dropping %d queued events at shutdown", n)
			}
			return
		}
	}
}

func (l loop) publishHeartbeat(hb logic.HeartbeatData) {
	log.Printf("heartbeat: uptime=%v soc=%d power_button=%d",
		hb.Uptime.Truncate(time.Second), hb.Counts.SOC, hb.Counts.PowerButton)

	event := mqtt.SystemEvent{
		Timestamp: hb.Timestamp,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		l.refreshTracker(nil)
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// shutdown publishes SHUTDOWN. With the link down the publisher can only
// buffer it, and the buffer does not outlive the process.
func (l loop) shutdown(reason string) {
	if l.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refreshTracker(nil)
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	switch err := l.publisher.PublishSystem(event); {
	case err != nil:
		log.Printf("failed to publish shutdown event: %v", err)
	case l.mqttStatus != nil && !l.mqttStatus.IsConnected():
		log.Printf("broker not connected, shutdown event queued and will be lost on exit")
	default:
		log.Printf("published shutdown event")
	}
}

func (l loop) refreshTracker(last *logic.Event) {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.counter.Counts(), last)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func printLevels(w io.Writer, levels []monitor.PinLevel) {
	for _, l := range levels {
		state := "LOW"
		if l.Level != 0 {
			state = "HIGH"
		}
		fmt.Fprintf(w, "%s (GPIO%d): %s\n", l.Type, l.Pin, state)
	}
}

// loadEnvFile reads KEY=value defaults from path. Variables already set in
// the environment win. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// envDuration parses key as a time.Duration; a bare integer is taken as seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("warning: ignoring invalid %s=%q", key, v)
	return def
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
