package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nsted/internal/client"
)

func TestNew(t *testing.T) {
	Convey("Given base URLs", t, func() {
		for _, bad := range []string{"", "   ", "not a url", "/relative"} {
			_, err := client.New(bad)
			So(errors.Is(err, client.ErrBaseURL), ShouldBeTrue)
		}
		c, err := client.New("http://localhost:9080")
		So(err, ShouldBeNil)
		So(c, ShouldNotBeNil)
	})
}

func TestUpload(t *testing.T) {
	Convey("Given a service that accepts uploads", t, func() {
		var gotName, gotBody, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			f, hdr, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer f.Close()
			data, _ := io.ReadAll(f)
			gotName, gotBody = hdr.Filename, string(data)
			w.Header().Set("Content-Type", "application/json")
			if strings.HasSuffix(r.URL.Path, "/trials") {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id": "r-2", "num_trials": 2, "predicted_class": "Normal",
					"mean_predictions": []float64{0.1}, "trials": [][]float64{{0.1}, {0.1}},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "r-1", "predictions": []float64{0.2, 0.9}, "num_trials": 2, "predicted_class": "MDD",
			})
		}))
		defer srv.Close()

		c, err := client.New(srv.URL)
		So(err, ShouldBeNil)

		Convey("Upload streams the file as a multipart form", func() {
			out, err := c.Upload(context.Background(), "subject.mat", strings.NewReader("payload"))
			So(err, ShouldBeNil)
			So(gotPath, ShouldEqual, "/run_inference/")
			So(gotName, ShouldEqual, "subject.mat")
			So(gotBody, ShouldEqual, "payload")
			So(out.ID, ShouldEqual, "r-1")
			So(out.Predictions, ShouldResemble, []float64{0.2, 0.9})
			So(out.PredictedClass, ShouldEqual, "MDD")
		})

		Convey("UploadTrials hits the trials endpoint", func() {
			out, err := c.UploadTrials(context.Background(), "subject.mat", strings.NewReader("payload"))
			So(err, ShouldBeNil)
			So(gotPath, ShouldEqual, "/run_inference/trials")
			So(out.Trials, ShouldHaveLength, 2)
		})
	})
}

func TestStatusErrors(t *testing.T) {
	Convey("Given a service that fails", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"invalid_recording","reason":"channel_count"}`))
		}))
		defer srv.Close()

		c, _ := client.New(srv.URL)
		_, err := c.Upload(context.Background(), "x.mat", strings.NewReader("x"))

		var se *client.StatusError
		So(errors.As(err, &se), ShouldBeTrue)
		So(se.Status, ShouldEqual, http.StatusUnprocessableEntity)
		So(se.Body, ShouldContainSubstring, "channel_count")
		So(calls.Load(), ShouldEqual, int32(1))
	})

	Convey("Given nothing saved yet", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":"not_found"}`, http.StatusNotFound)
		}))
		defer srv.Close()

		c, _ := client.New(srv.URL)
		_, err := c.PredictedClass(context.Background())
		var se *client.StatusError
		So(errors.As(err, &se), ShouldBeTrue)
		So(se.Status, ShouldEqual, http.StatusNotFound)
	})
}

func TestPredictedClass(t *testing.T) {
	Convey("Given a saved prediction", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/predict-from-saved/" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`{"predicted_class":"Normal","conclusion":"No signs of mental disorder"}`))
		}))
		defer srv.Close()

		c, _ := client.New(srv.URL)
		out, err := c.PredictedClass(context.Background())
		So(err, ShouldBeNil)
		So(out.PredictedClass, ShouldEqual, "Normal")
		So(out.Conclusion, ShouldEqual, "No signs of mental disorder")
	})

	Convey("Given a cancelled context", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		c, _ := client.New(srv.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.PredictedClass(ctx)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
