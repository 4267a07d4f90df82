package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/nsted/internal/adapters/matfile"
	"github.com/okian/nsted/internal/adapters/safetensors"
	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/config"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	arch := unet.Architecture{InChannels: 129, BaseWidth: 4}
	w, err := unet.RandomWeights(arch, 1)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	cfg := config.New()
	cfg.WeightsPath = filepath.Join(dir, "weights.safetensors")
	if err := safetensors.SaveWeights(cfg.WeightsPath, w, service.ArchitectureMetadata(arch)); err != nil {
		t.Fatalf("save weights: %v", err)
	}
	cfg.DBPath = filepath.Join(dir, "nsted.db")
	cfg.ArtifactDir = filepath.Join(dir, "channel_averages")
	cfg.RequestTimeoutSec = 30
	return cfg
}

func TestHandlerWiring(t *testing.T) {
	convey.Convey("Given a service built from config", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		svc, err := service.FromConfig(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		h := newHandler(ctx, svc, cfg)

		convey.Convey("Then docs, stats and business routes are registered", func() {
			for _, path := range []string{"/api-docs", "/openapi.yaml", "/stats", "/healthz", "/results"} {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("And nothing is saved before the first upload", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict-from-saved/", http.NoBody))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Convey("And the HTTP server carries the request timeout", func() {
			srv := newHTTPServer(cfg, h)
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.ReadTimeout, convey.ShouldEqual, 30*time.Second)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, 30*time.Second)
		})
	})
}

func TestCompressedUploadCap(t *testing.T) {
	convey.Convey("Given a service whose recordings may expand to 1 MiB", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.MaxRecordingMB = 1
		svc, err := service.FromConfig(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		h := newHandler(ctx, svc, cfg)

		convey.Convey("When a few KiB of zlib expand to a 129x4000 array", func() {
			v, err := matfile.FromRows(cfg.DataKey, 129, 4000, make([]float64, 129*4000))
			convey.So(err, convey.ShouldBeNil)
			mat, err := matfile.Encode([]*matfile.Variable{v}, matfile.WithCompression())
			convey.So(err, convey.ShouldBeNil)

			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile("file", "zeros.mat")
			convey.So(err, convey.ShouldBeNil)
			_, err = part.Write(mat)
			convey.So(err, convey.ShouldBeNil)
			convey.So(mw.Close(), convey.ShouldBeNil)

			req := httptest.NewRequest(http.MethodPost, "/run_inference/", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			convey.Convey("Then the upload is refused with 413", func() {
				convey.So(len(mat), convey.ShouldBeLessThan, int(cfg.MaxUploadBytes()))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("Then system metrics update without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("And the updater returns once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
