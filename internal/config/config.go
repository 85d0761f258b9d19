package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SimConfig holds the simulation parameters.
type SimConfig struct {
	StartX        float64   `json:"startX" mapstructure:"startX"`
	StartY        float64   `json:"startY" mapstructure:"startY"`
	BoundsColor   string    `json:"boundsColor" mapstructure:"boundsColor"`
	SensorRange   int       `json:"sensorRange" mapstructure:"sensorRange"`
	SensorAngles  []float64 `json:"sensorAngles" mapstructure:"sensorAngles"`
	MaxFlightTime float64   `json:"maxFlightTime" mapstructure:"maxFlightTime"`
	MazeFile      string    `json:"mazeFile" mapstructure:"mazeFile"`
	MazeWidth     int       `json:"mazeWidth" mapstructure:"mazeWidth"`
	MazeHeight    int       `json:"mazeHeight" mapstructure:"mazeHeight"`
	ArenaName     string    `json:"arenaName" mapstructure:"arenaName"`
	Latitude      float64   `json:"latitude" mapstructure:"latitude"`
	Longitude     float64   `json:"longitude" mapstructure:"longitude"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebsocketConfig holds streaming storage backend settings
type WebsocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`
}

// InfluxConfig holds InfluxDB metrics settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds GELF log target settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "Flight")
	viper.SetDefault("logsDir", "./simlogs")

	viper.SetDefault("sim.startX", 100.0)
	viper.SetDefault("sim.startY", 100.0)
	viper.SetDefault("sim.boundsColor", "#000000")
	viper.SetDefault("sim.sensorRange", 100)
	viper.SetDefault("sim.sensorAngles", []float64{0, 30, -30})
	viper.SetDefault("sim.maxFlightTime", 300.0)
	viper.SetDefault("sim.mazeFile", "")
	viper.SetDefault("sim.mazeWidth", 600)
	viper.SetDefault("sim.mazeHeight", 600)
	viper.SetDefault("sim.arenaName", "default")
	viper.SetDefault("sim.latitude", 0.0)
	viper.SetDefault("sim.longitude", 0.0)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "dronesim")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/flights.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5001/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "sim-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dronesim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetConfigName("dronesim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the simulation settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		StartX:        viper.GetFloat64("sim.startX"),
		StartY:        viper.GetFloat64("sim.startY"),
		BoundsColor:   viper.GetString("sim.boundsColor"),
		SensorRange:   viper.GetInt("sim.sensorRange"),
		SensorAngles:  floats(viper.Get("sim.sensorAngles")),
		MaxFlightTime: viper.GetFloat64("sim.maxFlightTime"),
		MazeFile:      viper.GetString("sim.mazeFile"),
		MazeWidth:     viper.GetInt("sim.mazeWidth"),
		MazeHeight:    viper.GetInt("sim.mazeHeight"),
		ArenaName:     viper.GetString("sim.arenaName"),
		Latitude:      viper.GetFloat64("sim.latitude"),
		Longitude:     viper.GetFloat64("sim.longitude"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Websocket: WebsocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetGraylogConfig returns the GELF target settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// floats converts a viper slice value to []float64. JSON numbers arrive as
// []any of float64; defaults arrive typed already.
func floats(v any) []float64 {
	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			if f, ok := e.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}
