package config_test

import (
	"errors"
	"testing"

	"github.com/okian/nsted/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
			convey.So(cfg.DataKey, convey.ShouldEqual, "ceeg")
			convey.So(cfg.TrialLength, convey.ShouldEqual, 374)
			convey.So(cfg.ChannelIndex, convey.ShouldEqual, 2)
			convey.So(cfg.ArtifactDir, convey.ShouldEqual, "channel_averages")
			convey.So(cfg.ArtifactLockTimeoutSec, convey.ShouldEqual, 10)
			convey.So(cfg.DBBusyTimeoutMS, convey.ShouldEqual, 5000)
			convey.So(cfg.CompressArtifacts, convey.ShouldBeFalse)
			convey.So(cfg.MaxRecordingBytes(), convey.ShouldEqual, int64(256<<20))
			convey.So(cfg.ZeroVariancePolicy, convey.ShouldEqual, config.ZeroVarianceReject)
			convey.So(cfg.ClassifyThreshold, convey.ShouldEqual, 0.5)
			convey.So(cfg.MaxUploadBytes(), convey.ShouldEqual, int64(64<<20))
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"empty data key", func(c *config.Config) { c.DataKey = "" }},
			{"zero trial length", func(c *config.Config) { c.TrialLength = 0 }},
			{"negative channel index", func(c *config.Config) { c.ChannelIndex = -1 }},
			{"missing weights", func(c *config.Config) { c.WeightsPath = "" }},
			{"zero upload cap", func(c *config.Config) { c.MaxUploadMB = 0 }},
			{"zero recording cap", func(c *config.Config) { c.MaxRecordingMB = 0 }},
			{"threshold above one", func(c *config.Config) { c.ClassifyThreshold = 1.5 }},
			{"unknown policy", func(c *config.Config) { c.ZeroVariancePolicy = "ignore" }},
			{"epsilon policy without epsilon", func(c *config.Config) {
				c.ZeroVariancePolicy = config.ZeroVarianceEpsilon
				c.Epsilon = 0
			}},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				c := *cfg
				tc.mutate(&c)
				err := c.Validate()

				convey.Convey("Then validation should fail with ErrInvalidConfig", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When random weights are allowed without a path", func() {
			c := *cfg
			c.WeightsPath = ""
			c.AllowRandomWeights = true

			convey.Convey("Then validation should pass", func() {
				convey.So(c.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
