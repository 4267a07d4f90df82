package inference_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/internal/domain/inference"
	"github.com/okian/nsted/internal/domain/unet"
	. "github.com/smartystreets/goconvey/convey"
)

func newRunner(opts ...inference.Option) *inference.Runner {
	arch := unet.Architecture{InChannels: eeg.ExpectedChannels, BaseWidth: 4}
	w, err := unet.RandomWeights(arch, 11)
	if err != nil {
		panic(err)
	}
	m, err := unet.NewModel(arch, w)
	if err != nil {
		panic(err)
	}
	r, err := inference.NewRunner(m, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func segmented(trials, channels, length int) *eeg.Segmented {
	seg := &eeg.Segmented{
		Trials:      trials,
		Channels:    channels,
		TrialLength: length,
		Data:        make([]float64, trials*channels*length),
	}
	for i := range seg.Data {
		seg.Data[i] = math.Sin(float64(i) * 0.013)
	}
	return seg
}

func TestNewRunner(t *testing.T) {
	Convey("Given no model", t, func() {
		_, err := inference.NewRunner(nil)

		Convey("Then ErrNilModel is returned", func() {
			So(errors.Is(err, inference.ErrNilModel), ShouldBeTrue)
		})
	})

	Convey("Given a concurrency option", t, func() {
		So(newRunner(inference.WithConcurrency(3)).Concurrency(), ShouldEqual, 3)
		So(newRunner(inference.WithConcurrency(0)).Concurrency(), ShouldBeGreaterThan, 0)
	})
}

func TestRunner_Run(t *testing.T) {
	Convey("Given a runner", t, func() {
		r := newRunner()
		ctx := context.Background()

		Convey("When scoring a 129x374 trial", func() {
			seg := segmented(1, eeg.ExpectedChannels, 374)
			scores, err := r.Run(ctx, seg.Trial(0))

			Convey("Then 374 probabilities are returned", func() {
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 374)
				for _, s := range scores {
					So(s, ShouldBeBetweenOrEqual, 0.0, 1.0)
				}
			})

			Convey("Then repeated calls agree", func() {
				again, err := r.Run(ctx, seg.Trial(0))
				So(err, ShouldBeNil)
				So(again, ShouldResemble, scores)
			})
		})

		Convey("When the trial has 128 or 130 channels", func() {
			for _, ch := range []int{128, 130} {
				_, err := r.Run(ctx, segmented(1, ch, 374).Trial(0))
				So(errors.Is(err, unet.ErrChannelMismatch), ShouldBeTrue)
			}
		})

		Convey("When the trial data is truncated", func() {
			trial := segmented(1, eeg.ExpectedChannels, 10).Trial(0)
			trial.Data = trial.Data[:5]
			_, err := r.Run(ctx, trial)
			So(errors.Is(err, inference.ErrTrialShape), ShouldBeTrue)
		})

		Convey("When the trial holds a value the model cannot represent", func() {
			for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e300} {
				trial := segmented(1, eeg.ExpectedChannels, 16).Trial(0)
				trial.Data[3*16+7] = bad
				_, err := r.Run(ctx, trial)

				So(errors.Is(err, inference.ErrNonFinite), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "channel 3 sample 7")
			}
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := r.Run(cctx, segmented(1, eeg.ExpectedChannels, 10).Trial(0))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRunner_RunAll(t *testing.T) {
	Convey("Given a runner limited to two concurrent trials", t, func() {
		r := newRunner(inference.WithConcurrency(2))
		seg := segmented(5, eeg.ExpectedChannels, 64)

		Convey("When scoring every trial", func() {
			all, err := r.RunAll(context.Background(), seg)

			Convey("Then results line up with sequential runs", func() {
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 5)
				for i := range all {
					one, err := r.Run(context.Background(), seg.Trial(i))
					So(err, ShouldBeNil)
					So(all[i], ShouldResemble, one)
				}
			})
		})

		Convey("When one trial is malformed", func() {
			bad := segmented(3, 130, 16)
			_, err := r.RunAll(context.Background(), bad)

			Convey("Then the error names a trial and keeps its cause", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "trial")
				So(errors.Is(err, unet.ErrChannelMismatch), ShouldBeTrue)
			})
		})
	})
}
