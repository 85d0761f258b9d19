package main

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mazeflight/simulator/internal/api"
	"github.com/mazeflight/simulator/internal/cache"
	"github.com/mazeflight/simulator/internal/config"
	"github.com/mazeflight/simulator/internal/dispatcher"
	"github.com/mazeflight/simulator/internal/drone"
	"github.com/mazeflight/simulator/internal/influx"
	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/monitor"
	intOtel "github.com/mazeflight/simulator/internal/otel"
	"github.com/mazeflight/simulator/internal/raster"
	"github.com/mazeflight/simulator/internal/session"
	"github.com/mazeflight/simulator/internal/storage"
	"github.com/mazeflight/simulator/internal/util"
	"github.com/mazeflight/simulator/internal/worker"
	"github.com/mazeflight/simulator/pkg/core"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"
)

// global services
var (
	SessionStartTime = time.Now()

	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	OTelProvider *intOtel.Provider

	eventDispatcher *dispatcher.Dispatcher
	sessionCtx      *session.Context
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	storageBackend  storage.Backend
	influxManager   *influx.Manager

	arenaRaster raster.Raster
	arenaInfo   *core.Arena
)

func main() {
	if err := setup(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "export":
			if len(args) < 2 {
				fmt.Println("No flight IDs provided.")
				os.Exit(1)
			}
			if err := exportFlights(args[1:]); err != nil {
				Logger.Error("Export failed", "error", err)
				os.Exit(1)
			}
			return
		case "migratebackups":
			if err := migrateBackups(); err != nil {
				Logger.Error("Backup migration failed", "error", err)
				os.Exit(1)
			}
			Logger.Info("Finished migrating backups.")
			return
		case "demo":
			if err := startServices(); err != nil {
				Logger.Error("Service startup failed", "error", err)
				os.Exit(1)
			}
			err := runDemoFlight()
			shutdown()
			if err != nil {
				Logger.Error("Demo flight failed", "error", err)
				os.Exit(1)
			}
			return
		case "run":
			// fall through to the interactive loop
		default:
			fmt.Printf("unknown command %q (expected run, demo, export or migratebackups)\n", args[0])
			os.Exit(1)
		}
	}

	if err := startServices(); err != nil {
		Logger.Error("Service startup failed", "error", err)
		os.Exit(1)
	}
	defer shutdown()

	inputLoop()
}

// setup loads configuration and initializes logging and telemetry. It must
// succeed before any service starts.
func setup() error {
	var err error

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err = config.Load("."); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, "dronesim", SessionStartTime)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
	}

	// GELF target is optional
	var gelfWriter io.Writer
	if graylogCfg := config.GetGraylogConfig(); graylogCfg.Enabled {
		w, err := logging.NewGelfWriter(graylogCfg.Address)
		if err != nil {
			Logger.Warn("Failed to connect GELF writer", "error", err, "address", graylogCfg.Address)
		} else {
			gelfWriter = w
		}
	}

	SlogManager.Setup(logFile, viper.GetString("logLevel"), gelfWriter)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logFilePath)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", logFilePath)
		}
	}

	return nil
}

// loadArena builds the maze raster: a PNG file when configured, otherwise a
// procedurally bordered grid.
func loadArena(cfg config.SimConfig) (raster.Raster, *core.Arena, error) {
	arena := &core.Arena{
		Name:        cfg.ArenaName,
		BoundsColor: cfg.BoundsColor,
		Latitude:    float32(cfg.Latitude),
		Longitude:   float32(cfg.Longitude),
	}

	if cfg.MazeFile != "" {
		f, err := os.Open(cfg.MazeFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening maze file: %w", err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding maze file %s: %w", cfg.MazeFile, err)
		}

		r := raster.NewImage(img)
		arena.SourceFile = filepath.Base(cfg.MazeFile)
		arena.Width, arena.Height = r.Bounds()
		return r, arena, nil
	}

	bounds, err := raster.ColorFromHex(cfg.BoundsColor)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing bounds color: %w", err)
	}

	grid := raster.NewGrid(cfg.MazeWidth, cfg.MazeHeight, raster.Color{R: 255, G: 255, B: 255, A: 255})
	grid.Border(10, bounds)
	arena.SourceFile = "generated"
	arena.Width, arena.Height = grid.Bounds()
	return grid, arena, nil
}

// startServices wires the dispatcher, storage backend, worker and monitor.
func startServices() error {
	var err error

	simCfg := config.GetSimConfig()
	arenaRaster, arenaInfo, err = loadArena(simCfg)
	if err != nil {
		return fmt.Errorf("loading arena: %w", err)
	}
	Logger.Info("Arena loaded",
		"name", arenaInfo.Name,
		"source", arenaInfo.SourceFile,
		"width", arenaInfo.Width,
		"height", arenaInfo.Height,
	)

	boundsColor, err := raster.ColorFromHex(simCfg.BoundsColor)
	if err != nil {
		return fmt.Errorf("parsing bounds color: %w", err)
	}

	dispatcherLogger := logging.NewDispatcherLogger(
		zerolog.New(os.Stderr).With().Timestamp().Logger(),
	)
	eventDispatcher, err = dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	sessionCtx = session.NewContext()

	storageCfg := config.GetStorageConfig()
	storageBackend, err = storage.NewBackend(storageCfg, SlogManager, sessionCtx)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err = storageBackend.Init(); err != nil {
		return fmt.Errorf("initializing %s storage: %w", storageCfg.Type, err)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		influxManager = influx.NewManager(
			zerolog.New(os.Stderr).With().Timestamp().Logger(),
			filepath.Join(viper.GetString("logsDir"), "influx_backup.gz"),
		)
		if err = influxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			influxManager = nil
		}
	}

	workerManager = worker.NewManager(worker.Dependencies{
		LogManager: SlogManager,
		Sightings:  cache.NewSightingCache(),
		Influx:     influxManager,
		NewFlight: func(name string) (*core.Flight, *core.Arena) {
			flight := &core.Flight{
				FlightName:       name,
				StartTime:        time.Now(),
				CaptureInterval:  float32(drone.TimeStep),
				SimulatorVersion: CurrentVersion,
				Tag:              viper.GetString("defaultTag"),
				SensorLayout:     simCfg.SensorAngles,
			}
			arena := *arenaInfo
			return flight, &arena
		},
		NewDrone: func() *drone.Drone {
			return drone.New(arenaRaster, drone.Config{
				StartX:       simCfg.StartX,
				StartY:       simCfg.StartY,
				BoundsColor:  boundsColor,
				SensorAngles: simCfg.SensorAngles,
				SensorRange:  simCfg.SensorRange,
				FlightTime:   simCfg.MaxFlightTime,
			})
		},
	}, storageBackend)
	workerManager.RegisterHandlers(eventDispatcher)

	monitorService = monitor.NewService(monitor.Dependencies{
		LogManager:     SlogManager,
		SessionContext: sessionCtx,
		WorkerManager:  workerManager,
		StatusDir:      viper.GetString("logsDir"),
		IsDatabaseValid: func() bool {
			return storageCfg.Type == "postgres" || storageCfg.Type == "sqlite"
		},
	})
	monitorService.RegisterHandlers(eventDispatcher)
	monitorService.Start()

	// Every record carries the active flight and tick from here on.
	SlogManager.AttachContext(func() []slog.Attr {
		if workerManager == nil || !workerManager.Active() {
			return nil
		}
		return []slog.Attr{
			slog.Uint64("flightId", uint64(workerManager.FlightID())),
			slog.Uint64("tick", uint64(workerManager.Tick())),
		}
	})
	Logger = SlogManager.Logger()

	go checkViewerStatus()

	return nil
}

// checkViewerStatus logs whether the replay viewer frontend is reachable.
func checkViewerStatus() {
	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		Logger.Info("Replay viewer is offline")
	} else {
		Logger.Info("Replay viewer is online")
	}
}

// intentCommands maps console words to dispatcher commands. The single-letter
// aliases mirror the usual wasd layout.
var intentCommands = map[string]string{
	"rotate-left":   dispatcher.CmdRotateLeft,
	"a":             dispatcher.CmdRotateLeft,
	"rotate-right":  dispatcher.CmdRotateRight,
	"d":             dispatcher.CmdRotateRight,
	"throttle-up":   dispatcher.CmdThrottleUp,
	"w":             dispatcher.CmdThrottleUp,
	"throttle-down": dispatcher.CmdThrottleDown,
	"s":             dispatcher.CmdThrottleDown,
}

// inputLoop reads console commands until exit or EOF.
func inputLoop() {
	fmt.Printf("dronesim %s (%s)\n", CurrentVersion, BuildDate)
	fmt.Println(`commands: start [name], end, status, rotate-left (a), rotate-right (d), throttle-up (w), throttle-down (s), exit`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		fields := util.SplitCommandLine(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd := strings.ToLower(fields[0])

		switch {
		case cmd == "exit" || cmd == "quit":
			return

		case cmd == "start":
			name := fmt.Sprintf("flight %s", SessionStartTime.Format("2006-01-02 15:04:05"))
			if len(fields) > 1 {
				name = util.FixEscapeQuotes(util.TrimQuotes(fields[1]))
			}
			dispatchAndPrint(dispatcher.CmdFlightStart, name)

		case cmd == "end" || cmd == "land":
			dispatchAndPrint(dispatcher.CmdFlightEnd)
			flushTelemetry()
			uploadLastExport()

		case cmd == "status":
			dispatchAndPrint(dispatcher.CmdStatus)

		case intentCommands[cmd] != "":
			dispatchAndPrint(intentCommands[cmd], fields[1:]...)

		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func dispatchAndPrint(command string, args ...string) {
	result, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if s, ok := result.(string); ok && s != "" {
		fmt.Println(s)
	}
}

// flushTelemetry forces pending OTel data out after a flight ends.
func flushTelemetry() {
	if OTelProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := OTelProvider.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush OTel data", "error", err)
	}
}

// uploadLastExport sends the latest exported replay to the viewer when an
// API key is configured and the backend produces files.
func uploadLastExport() {
	u, ok := storageBackend.(storage.Uploadable)
	if !ok {
		return
	}
	apiKey := viper.GetString("api.apiKey")
	if apiKey == "" {
		return
	}
	path := u.GetExportedFilePath()
	if path == "" {
		return
	}

	client := api.New(viper.GetString("api.serverUrl"), apiKey)
	if err := client.Upload(path, u.GetExportMetadata()); err != nil {
		Logger.Error("Replay upload failed", "error", err, "path", path)
		return
	}
	Logger.Info("Replay uploaded", "path", path)
}

func shutdown() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Warn("Storage close failed", "error", err)
		}
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OTel shutdown failed", "error", err)
		}
	}
	Logger.Info("Shutdown complete")
}
