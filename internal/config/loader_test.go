package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/duel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.KFactor, convey.ShouldEqual, 32)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DUEL_ADDR", ":8080")
			_ = os.Setenv("DUEL_K_FACTOR", "24")
			_ = os.Setenv("DUEL_PAIRING_TTL", "90s")
			_ = os.Setenv("DUEL_LEADERBOARD_REFRESH", "interval")
			_ = os.Setenv("DUEL_LEADERBOARD_STALENESS", "250ms")
			_ = os.Setenv("DUEL_CORS_ORIGINS", "https://a.example,https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.KFactor, convey.ShouldEqual, 24)
				convey.So(cfg.PairingTTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.LeaderboardRefresh, convey.ShouldEqual, config.RefreshInterval)
				convey.So(cfg.LeaderboardStaleness, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# ranking tuning
addr: ":9090"
store_driver: memory
scan_threshold: 64
selection_window: 10
proximity_threshold: 50.5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("DUEL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.ScanThreshold, convey.ShouldEqual, 64)
				convey.So(cfg.SelectionWindow, convey.ShouldEqual, 10)
				convey.So(cfg.ProximityThreshold, convey.ShouldEqual, 50.5)
				convey.So(cfg.KFactor, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nscan_threshold: 64\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("DUEL_CONFIG", tmpFile)
			_ = os.Setenv("DUEL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ScanThreshold, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("DUEL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("DUEL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("DUEL_SCAN_THRESHOLD", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("DUEL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown store driver", func() {
			_ = os.Setenv("DUEL_STORE_DRIVER", "mysql")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"DUEL_CONFIG",
		"DUEL_ADDR",
		"DUEL_K_FACTOR",
		"DUEL_PAIRING_TTL",
		"DUEL_LEADERBOARD_REFRESH",
		"DUEL_LEADERBOARD_STALENESS",
		"DUEL_CORS_ORIGINS",
		"DUEL_SCAN_THRESHOLD",
		"DUEL_STORE_DRIVER",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "duel-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
