package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dronesim.cfg.json"), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"defaultTag": "Trial",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "Trial", viper.GetString("defaultTag"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "Flight", viper.GetString("defaultTag"))
	assert.Equal(t, "./simlogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "dronesim", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetSimConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	sc := GetSimConfig()
	assert.Equal(t, 100.0, sc.StartX)
	assert.Equal(t, 100.0, sc.StartY)
	assert.Equal(t, "#000000", sc.BoundsColor)
	assert.Equal(t, 100, sc.SensorRange)
	assert.Equal(t, []float64{0, 30, -30}, sc.SensorAngles)
	assert.Equal(t, 300.0, sc.MaxFlightTime)
	assert.Equal(t, 600, sc.MazeWidth)
	assert.Equal(t, 600, sc.MazeHeight)
}

func TestGetSimConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"sim": {
			"startX": 50,
			"startY": 60,
			"boundsColor": "#FF0000",
			"sensorRange": 40,
			"sensorAngles": [0, 45, -45, 180],
			"maxFlightTime": 120,
			"mazeFile": "/maps/maze1.png"
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetSimConfig()
	assert.Equal(t, 50.0, sc.StartX)
	assert.Equal(t, 60.0, sc.StartY)
	assert.Equal(t, "#FF0000", sc.BoundsColor)
	assert.Equal(t, 40, sc.SensorRange)
	assert.Equal(t, []float64{0, 45, -45, 180}, sc.SensorAngles)
	assert.Equal(t, 120.0, sc.MaxFlightTime)
	assert.Equal(t, "/maps/maze1.png", sc.MazeFile)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "memory", sc.Type)
	assert.Equal(t, "./recordings", sc.Memory.OutputDir)
	assert.Equal(t, true, sc.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "ws://localhost:5001/stream", sc.Websocket.URL)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" },
			"websocket": { "url": "ws://replay:5001/stream", "secret": "s3cret" }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "ws://replay:5001/stream", sc.Websocket.URL)
	assert.Equal(t, "s3cret", sc.Websocket.Secret)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"influx": { "enabled": true, "host": "metrics.local", "token": "tok" }
	}`)
	require.NoError(t, Load(dir))

	ic := GetInfluxConfig()
	assert.Equal(t, true, ic.Enabled)
	assert.Equal(t, "metrics.local", ic.Host)
	assert.Equal(t, "8086", ic.Port)
	assert.Equal(t, "http", ic.Protocol)
	assert.Equal(t, "tok", ic.Token)
	assert.Equal(t, "sim-metrics", ic.Org)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"graylog": { "enabled": true, "address": "gl.local:12201" }
	}`)
	require.NoError(t, Load(dir))

	gc := GetGraylogConfig()
	assert.Equal(t, true, gc.Enabled)
	assert.Equal(t, "gl.local:12201", gc.Address)
}
