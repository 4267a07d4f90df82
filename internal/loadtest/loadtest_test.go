package loadtest_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nsted/internal/adapters/artifacts"
	"github.com/okian/nsted/internal/adapters/http/api"
	"github.com/okian/nsted/internal/adapters/matfile"
	"github.com/okian/nsted/internal/adapters/repository"
	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/domain/inference"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/internal/loadtest"
	"github.com/okian/nsted/pkg/logger"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	arch := unet.Architecture{InChannels: 129, BaseWidth: 4}
	w, err := unet.RandomWeights(arch, 3)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	m, err := unet.NewModel(arch, w)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	runner, err := inference.NewRunner(m)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	dir := t.TempDir()
	store, err := repository.Open(context.Background(), filepath.Join(dir, "nsted.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc := service.New(
		service.WithRunner(runner),
		service.WithStore(store),
		service.WithArtifacts(artifacts.NewWriter(filepath.Join(dir, "averages"))),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	Convey("Given a config with every third upload invalid", t, func() {
		cfg := loadtest.NewConfig("http://unused")
		cfg.Samples = 400
		cfg.InvalidEvery = 3

		recs, err := loadtest.Generate(cfg, 6)
		So(err, ShouldBeNil)
		So(recs, ShouldHaveLength, 6)

		Convey("invalid recordings drop one channel", func() {
			for i, rec := range recs {
				So(rec.Invalid, ShouldEqual, (i+1)%3 == 0)
				v, err := matfile.ReadVariable(bytes.NewReader(rec.Data), cfg.DataKey)
				So(err, ShouldBeNil)
				rows, cols, _, err := v.Matrix()
				So(err, ShouldBeNil)
				So(cols, ShouldEqual, 400)
				if rec.Invalid {
					So(rows, ShouldEqual, 128)
				} else {
					So(rows, ShouldEqual, 129)
				}
			}
		})

		Convey("names are unique", func() {
			seen := map[string]bool{}
			for _, rec := range recs {
				So(seen[rec.Name], ShouldBeFalse)
				seen[rec.Name] = true
			}
		})
	})

	Convey("Encode is deterministic for a seed", t, func() {
		a, err := loadtest.Encode(rand.New(rand.NewPCG(5, 6)), "ceeg", 3, 10)
		So(err, ShouldBeNil)
		b, err := loadtest.Encode(rand.New(rand.NewPCG(5, 6)), "ceeg", 3, 10)
		So(err, ShouldBeNil)
		So(a, ShouldResemble, b)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newService(t)
		cfg := loadtest.NewConfig(srv.URL)
		cfg.Uploads = 6
		cfg.Workers = 3
		cfg.InvalidEvery = 3
		cfg.Timeout = 30 * time.Second

		stats, err := loadtest.Run(context.Background(), cfg, logger.Nop())
		So(err, ShouldBeNil)
		So(stats.Uploads, ShouldEqual, 6)
		So(stats.Succeeded, ShouldEqual, 4)
		So(stats.Rejected, ShouldEqual, 2)
		So(stats.Unexpected, ShouldEqual, 0)
		So(stats.Failed, ShouldEqual, 0)
		So(stats.SavedClass, ShouldBeIn, "Normal", "MDD")
		So(stats.P50, ShouldBeLessThanOrEqualTo, stats.P95)
		So(stats.P95, ShouldBeLessThanOrEqualTo, stats.Max)
		So(stats.Throughput(), ShouldBeGreaterThan, 0)
	})

	Convey("Given an unreachable service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		cfg := loadtest.NewConfig(url)
		cfg.Timeout = time.Second
		_, err := loadtest.Run(context.Background(), cfg, logger.Nop())
		So(errors.Is(err, loadtest.ErrUnhealthy), ShouldBeTrue)
	})

	Convey("Given invalid parameters", t, func() {
		cfg := loadtest.NewConfig("http://localhost")
		cfg.Workers = 0
		_, err := loadtest.Run(context.Background(), cfg, logger.Nop())
		So(errors.Is(err, loadtest.ErrConfig), ShouldBeTrue)
	})
}
