package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/nsted/internal/adapters/safetensors"
	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/config"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestArchitectureMetadata(t *testing.T) {
	Convey("Given architecture metadata", t, func() {
		Convey("a round trip preserves the dimensions", func() {
			arch := unet.Architecture{InChannels: 129, BaseWidth: 8}
			got, err := service.ArchitectureFromMetadata(service.ArchitectureMetadata(arch))
			So(err, ShouldBeNil)
			So(got, ShouldResemble, arch)
		})

		Convey("missing keys fall back to the default network", func() {
			got, err := service.ArchitectureFromMetadata(nil)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, unet.DefaultArchitecture())
		})

		Convey("malformed or non-positive values are rejected", func() {
			_, err := service.ArchitectureFromMetadata(map[string]string{service.MetaBaseWidth: "wide"})
			So(errors.Is(err, unet.ErrArchitecture), ShouldBeTrue)
			_, err = service.ArchitectureFromMetadata(map[string]string{service.MetaInChannels: "0"})
			So(errors.Is(err, unet.ErrArchitecture), ShouldBeTrue)
		})
	})
}

func TestFromConfig(t *testing.T) {
	Convey("Given a weights file for a narrow network", t, func() {
		dir := t.TempDir()
		arch := unet.Architecture{InChannels: 129, BaseWidth: 4}
		w, err := unet.RandomWeights(arch, 7)
		So(err, ShouldBeNil)
		weightsPath := filepath.Join(dir, "weights.safetensors")
		So(safetensors.SaveWeights(weightsPath, w, service.ArchitectureMetadata(arch)), ShouldBeNil)

		cfg := config.New()
		cfg.WeightsPath = weightsPath
		cfg.DBPath = filepath.Join(dir, "nsted.db")
		cfg.ArtifactDir = filepath.Join(dir, "channel_averages")
		cfg.InferenceConcurrency = 2
		ctx := context.Background()

		Convey("LoadModel reads the architecture from the file metadata", func() {
			m, err := service.LoadModel(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(m.Architecture(), ShouldResemble, arch)
		})

		Convey("FromConfig assembles a service that runs end to end", func() {
			svc, err := service.FromConfig(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			out, err := svc.RunInference(ctx, matUpload(t, "ceeg", 129, 748))
			So(err, ShouldBeNil)
			So(out.Result.Predictions, ShouldHaveLength, 374)

			stats := svc.GetStats()
			So(stats["baseWidth"], ShouldEqual, 4)
			So(stats["trialLength"], ShouldEqual, 374)
		})

		Convey("a weights file for another channel count is refused at startup", func() {
			other := unet.Architecture{InChannels: 64, BaseWidth: 4}
			ow, err := unet.RandomWeights(other, 7)
			So(err, ShouldBeNil)
			cfg.WeightsPath = filepath.Join(dir, "other.safetensors")
			So(safetensors.SaveWeights(cfg.WeightsPath, ow, service.ArchitectureMetadata(other)), ShouldBeNil)

			_, err = service.FromConfig(ctx, cfg, logger.Nop())
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "other.safetensors")
		})

		Convey("an unknown zero variance policy fails", func() {
			cfg.ZeroVariancePolicy = "ignore"
			_, err := service.FromConfig(ctx, cfg, logger.Nop())
			So(err, ShouldNotBeNil)
		})

		Convey("a missing weights file fails unless random weights are allowed", func() {
			cfg.WeightsPath = filepath.Join(dir, "missing.safetensors")
			_, err := service.LoadModel(ctx, cfg, logger.Nop())
			So(err, ShouldNotBeNil)

			cfg.AllowRandomWeights = true
			m, err := service.LoadModel(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(m.Architecture(), ShouldResemble, unet.DefaultArchitecture())
		})
	})
}
