// Command pir-presets polls a PIR motion sensor and switches WLED presets
// when occupancy changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/pir-presets/internal/gpio"
	"github.com/sweeney/pir-presets/internal/motion"
	"github.com/sweeney/pir-presets/internal/mqtt"
	"github.com/sweeney/pir-presets/internal/status"
	"github.com/sweeney/pir-presets/internal/web"
	"github.com/sweeney/pir-presets/internal/wled"
)

// Version is set at build time via ldflags.
var Version = "dev"

type options struct {
	poll             time.Duration
	tick             time.Duration
	hold             time.Duration
	heartbeat        time.Duration
	presetOnMotion   uint16
	presetOnNoMotion uint16
	chip             string
	pin              int
	activeLow        bool
	motionSensing    bool
	broker           string
	baseTopic        string
	wledTopic        string
	wledHost         string
	wledTimeout      time.Duration
	httpAddr         string
	logLevel         string
	printState       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "pir-presets",
		Short:        "Switch WLED presets from a PIR motion sensor",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(opts.logLevel); err != nil {
				return err
			}
			cfg, err := controllerConfig(opts)
			if err != nil {
				return err
			}
			log.Debug().Msg("effective options:\n" + litter.Sdump(*opts))
			if err := run(cmd.Context(), opts, cfg); err != nil {
				log.Error().Err(err).Msg("fatal")
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.poll, "poll", 20*time.Millisecond, "Wake-up interval of the run loop (must not exceed --tick); each tick may land up to one poll late")
	f.DurationVar(&opts.tick, "tick", time.Second, "Decision tick interval")
	f.DurationVar(&opts.hold, "hold", 5*time.Minute, "How long motion is held after the sensor goes LOW, counted in ticks; each tick may run up to --poll long, so the real hold can exceed this by hold/tick*poll")
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	f.Uint16Var(&opts.presetOnMotion, "preset-motion", 1, "Preset applied when motion is detected (0 = none)")
	f.Uint16Var(&opts.presetOnNoMotion, "preset-no-motion", 2, "Preset applied when motion ends (0 = none)")
	f.StringVar(&opts.chip, "chip", gpio.DefaultChip, "GPIO chip name")
	f.IntVar(&opts.pin, "pin", gpio.DefaultPin, "BCM pin number of the PIR output")
	f.BoolVar(&opts.activeLow, "active-low", false, "Treat a LOW line as motion")
	f.BoolVar(&opts.motionSensing, "motion-sensing", true, "Start with motion sensing enabled")
	f.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	f.StringVar(&opts.baseTopic, "topic", mqtt.DefaultBaseTopic, "MQTT base topic")
	f.StringVar(&opts.wledTopic, "wled-topic", "", `WLED device MQTT topic, e.g. "wled/living" (empty disables)`)
	f.StringVar(&opts.wledHost, "wled", "", "WLED device address for the JSON API (empty disables)")
	f.DurationVar(&opts.wledTimeout, "wled-timeout", 3*time.Second, "WLED request timeout")
	f.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.BoolVar(&opts.printState, "print-state", false, "Print current sensor and WLED state and exit")

	return cmd
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return nil
}

func controllerConfig(opts *options) (motion.Config, error) {
	if opts.tick <= 0 {
		return motion.Config{}, fmt.Errorf("--tick must be positive, got %v", opts.tick)
	}
	if opts.poll <= 0 || opts.poll > opts.tick {
		return motion.Config{}, fmt.Errorf("--poll must be in (0, %v], got %v", opts.tick, opts.poll)
	}
	if opts.hold < 0 {
		return motion.Config{}, fmt.Errorf("--hold must not be negative, got %v", opts.hold)
	}
	if opts.presetOnMotion == opts.presetOnNoMotion {
		log.Warn().Uint16("preset", opts.presetOnMotion).Msg("motion and no-motion presets are identical")
	}
	return motion.Config{
		HoldTicks:        motion.HoldTicksFor(opts.hold, opts.tick),
		TickInterval:     opts.tick,
		PresetOnMotion:   motion.Preset(opts.presetOnMotion),
		PresetOnNoMotion: motion.Preset(opts.presetOnNoMotion),
	}, nil
}

func run(ctx context.Context, opts *options, cfg motion.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := gpio.NewRealReader(gpio.Options{Chip: opts.chip, Pin: opts.pin, ActiveLow: opts.activeLow})
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	var wledClient *wled.Client
	if opts.wledHost != "" {
		wledClient = wled.NewClient(opts.wledHost, &http.Client{Timeout: opts.wledTimeout})
	}

	if opts.printState {
		return printState(ctx, reader, wledClient)
	}

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker: opts.broker,
		Topics: mqtt.NewTopics(opts.baseTopic, opts.wledTopic),
	})
	defer publisher.Close()

	var appliers motion.Fanout
	if wledClient != nil {
		appliers = append(appliers, wled.NewSink(wledClient, opts.wledTimeout))
	}
	if opts.wledTopic != "" {
		appliers = append(appliers, mqtt.PresetSink{Publisher: publisher})
	}
	if len(appliers) == 0 {
		log.Warn().Msg("no preset sink configured (--wled or --wled-topic); only publishing events")
	}

	startTime := time.Now()
	ctrl := motion.NewController(cfg, appliers, startTime)
	ctrl.SetEnabled(opts.motionSensing)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		TickMs:           cfg.TickInterval.Milliseconds(),
		HoldMs:           opts.hold.Milliseconds(),
		HoldTicks:        cfg.HoldTicks,
		PresetOnMotion:   cfg.PresetOnMotion,
		PresetOnNoMotion: cfg.PresetOnNoMotion,
		HeartbeatMs:      opts.heartbeat.Milliseconds(),
		Pin:              opts.pin,
		Broker:           opts.broker,
		WLED:             opts.wledHost,
		HTTPAddr:         opts.httpAddr,
	})
	tracker.Update(ctrl.Snapshot(), ctrl.Decided())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	publisher.OnEnable(func(on bool) {
		ctrl.SetEnabled(on)
		tracker.SetEnabled(on)
	})

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Error().Err(err).Msg("failed to publish startup event")
	} else {
		log.Info().Msg("published startup event")
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *web.Server
	if opts.httpAddr != "" {
		srv = web.New(opts.httpAddr, tracker, ctrl)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		log.Info().Str("addr", opts.httpAddr).Msg("http status server listening")
	}

	log.Info().
		Dur("poll", opts.poll).
		Dur("tick", cfg.TickInterval).
		Uint32("hold_ticks", cfg.HoldTicks).
		Uint16("preset_motion", uint16(cfg.PresetOnMotion)).
		Uint16("preset_no_motion", uint16(cfg.PresetOnNoMotion)).
		Str("broker", opts.broker).
		Msg("started")

	g.Go(func() error {
		ticker := time.NewTicker(opts.poll)
		defer ticker.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		err := runLoop(reader, ctrl, publisher, publisher, tracker, opts.heartbeat, time.Now, ticker.C, sigCh, gctx.Done())
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}
		return err
	})

	return g.Wait()
}

func printState(ctx context.Context, reader gpio.Reader, client *wled.Client) error {
	on, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Printf("PIR: %s\n", levelString(on))

	if client == nil {
		return nil
	}
	st, err := client.State(ctx)
	if err != nil {
		return fmt.Errorf("read wled state: %w", err)
	}
	fmt.Printf("WLED: on=%v bri=%d preset=%d\n", st.On, st.Brightness, st.Preset)
	return nil
}

func runLoop(reader gpio.Reader, ctrl *motion.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, done <-chan struct{}) error {
	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			publishShutdown(publisher, mqttStatus, tracker, now(), signalName)
			return nil

		case <-done:
			log.Info().Msg("context cancelled, shutting down")
			publishShutdown(publisher, mqttStatus, tracker, now(), "CANCELLED")
			return nil

		case <-tick:
			t := now()
			// Heartbeat and status keep running while sensing is disabled.
			if ctrl.Due(t) {
				sample(reader, ctrl, publisher, t)
			}

			if hbData := ctrl.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Info().
					Dur("uptime", hbData.Uptime).
					Int("motion", hbData.Counts.Motion).
					Int("no_motion", hbData.Counts.NoMotion).
					Msg("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(ctrl.Snapshot(), ctrl.Decided())
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Error().Err(err).Msg("heartbeat publish error")
				}
			}

			if tracker != nil {
				tracker.Update(ctrl.Snapshot(), ctrl.Decided())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

// sample reads the sensor once and feeds the controller. A failed read does
// not consume the tick.
func sample(reader gpio.Reader, ctrl *motion.Controller, publisher mqtt.Publisher, t time.Time) {
	raw, err := reader.Read()
	if err != nil {
		log.Error().Err(err).Msg("gpio read error")
		return
	}

	if tr := ctrl.OnTick(raw, t); tr != nil {
		log.Info().
			Str("event", string(tr.Kind)).
			Uint16("preset", uint16(tr.Preset)).
			Uint16("previous", uint16(tr.Previous)).
			Msg("preset changed")
		if err := publisher.Publish(*tr); err != nil {
			// Don't crash on publish failure
			log.Error().Err(err).Msg("publish error")
		}
	}
}

func publishShutdown(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, t time.Time, reason string) {
	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Error().Err(err).Msg("failed to publish shutdown event")
	} else {
		log.Info().Msg("published shutdown event")
	}
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

func levelString(on bool) string {
	if on {
		return "HIGH"
	}
	return "LOW"
}
