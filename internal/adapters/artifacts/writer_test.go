package artifacts_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/nsted/internal/adapters/artifacts"
	"github.com/okian/nsted/internal/adapters/matfile"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSaveChannelAverage(t *testing.T) {
	Convey("Given a writer over a fresh directory", t, func() {
		dir := filepath.Join(t.TempDir(), "channel_averages")
		w := artifacts.NewWriter(dir)

		Convey("When saving the channel 2 average", func() {
			path, err := w.SaveChannelAverage(context.Background(), 2, []float64{1, 2, 3})

			Convey("Then it lands at channel_averages/channel_2_average.mat", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, filepath.Join(dir, "channel_2_average.mat"))

				fh, err := os.Open(path)
				So(err, ShouldBeNil)
				defer fh.Close()
				v, err := matfile.ReadVariable(fh, "channel_2_average")
				So(err, ShouldBeNil)
				So(v.Dims, ShouldResemble, []int{1, 3})
				So(v.Data, ShouldResemble, []float64{1, 2, 3})
			})

			Convey("Then a second save replaces the file", func() {
				_, err := w.SaveChannelAverage(context.Background(), 2, []float64{9, 8})
				So(err, ShouldBeNil)
				got, err := w.LoadChannelAverage(2)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, []float64{9, 8})
			})

			Convey("Then no temp files are left behind", func() {
				entries, err := os.ReadDir(dir)
				So(err, ShouldBeNil)
				for _, e := range entries {
					So(filepath.Ext(e.Name()), ShouldNotEqual, ".tmp")
				}
			})
		})

		Convey("When the average is empty", func() {
			_, err := w.SaveChannelAverage(context.Background(), 2, nil)
			So(errors.Is(err, artifacts.ErrEmptyAverage), ShouldBeTrue)
		})

		Convey("When compression is enabled", func() {
			cw := artifacts.NewWriter(dir, artifacts.WithCompression(true))
			_, err := cw.SaveChannelAverage(context.Background(), 5, []float64{0.5})
			So(err, ShouldBeNil)
			got, err := cw.LoadChannelAverage(5)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []float64{0.5})
		})
	})
}

func TestSaveChannelAverage_Concurrent(t *testing.T) {
	Convey("Given many goroutines saving the same channel", t, func() {
		w := artifacts.NewWriter(t.TempDir())

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				avg := make([]float64, 374)
				for j := range avg {
					avg[j] = float64(i)
				}
				if _, err := w.SaveChannelAverage(context.Background(), 2, avg); err != nil {
					errs <- fmt.Errorf("writer %d: %w", i, err)
				}
			}()
		}
		wg.Wait()
		close(errs)

		Convey("Then every save succeeds and the file is one complete write", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			got, err := w.LoadChannelAverage(2)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 374)
			for _, v := range got {
				So(v, ShouldEqual, got[0])
			}
		})
	})
}
