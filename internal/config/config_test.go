package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/duel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.InitialRating, convey.ShouldEqual, 1500)
			convey.So(cfg.KFactor, convey.ShouldEqual, 32)
			convey.So(cfg.LeaderboardRefresh, convey.ShouldEqual, config.RefreshEager)
			convey.So(cfg.PersistMode, convey.ShouldEqual, config.PersistSync)
			convey.So(cfg.BroadcastLimit, convey.ShouldEqual, 200)
			convey.So(cfg.PairingTTL, convey.ShouldEqual, 10*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"zero k", func(c *config.Config) { c.KFactor = 0 }},
		{"no stripes", func(c *config.Config) { c.LockStripes = 0 }},
		{"zero scale", func(c *config.Config) { c.ProximityScale = 0 }},
		{"zero window", func(c *config.Config) { c.SelectionWindow = 0 }},
		{"negative rate", func(c *config.Config) { c.VoteRatePerSec = -1 }},
		{"rate without burst", func(c *config.Config) { c.VoteRatePerSec = 2; c.VoteBurst = 0 }},
		{"unknown refresh", func(c *config.Config) { c.LeaderboardRefresh = "lazy" }},
		{"interval without staleness", func(c *config.Config) {
			c.LeaderboardRefresh = config.RefreshInterval
			c.LeaderboardStaleness = 0
		}},
		{"unknown driver", func(c *config.Config) { c.StoreDriver = "mysql" }},
		{"sqlite without dsn", func(c *config.Config) { c.StoreDSN = "" }},
		{"unknown persist mode", func(c *config.Config) { c.PersistMode = "lazy" }},
		{"async without workers", func(c *config.Config) {
			c.PersistMode = config.PersistAsync
			c.PersistWorkers = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	t.Run("memory driver needs no dsn", func(t *testing.T) {
		cfg := config.New()
		cfg.StoreDriver = config.DriverMemory
		cfg.StoreDSN = ""
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() = %v", err)
		}
	})
}
