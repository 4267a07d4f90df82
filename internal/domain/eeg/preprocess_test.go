package eeg_test

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/okian/nsted/internal/domain/eeg"
	. "github.com/smartystreets/goconvey/convey"
)

// syntheticRecording builds a deterministic recording whose channels differ
// in offset, amplitude and frequency so no channel has zero variance.
func syntheticRecording(channels, samples int) *eeg.Recording {
	data := make([]float64, channels*samples)
	for c := 0; c < channels; c++ {
		for t := 0; t < samples; t++ {
			data[c*samples+t] = float64(c) + (1+float64(c%7))*math.Sin(float64(t)*0.05*float64(c%5+1)) + 0.01*float64(t%13)
		}
	}
	rec, err := eeg.NewRecording(channels, samples, data)
	if err != nil {
		panic(err)
	}
	return rec
}

func TestNewRecording(t *testing.T) {
	Convey("Given raw channel-major data", t, func() {
		Convey("When the length matches the shape", func() {
			rec, err := eeg.NewRecording(2, 3, []float64{1, 2, 3, 4, 5, 6})

			Convey("Then channels should be addressable", func() {
				So(err, ShouldBeNil)
				So(rec.Channel(1), ShouldResemble, []float64{4, 5, 6})
			})
		})

		Convey("When the length does not match", func() {
			_, err := eeg.NewRecording(2, 3, []float64{1, 2, 3})

			Convey("Then ErrShape should be returned", func() {
				So(errors.Is(err, eeg.ErrShape), ShouldBeTrue)
			})
		})
	})
}

func TestPreprocess_Segmentation(t *testing.T) {
	Convey("Given a preprocessor with the default trial length", t, func() {
		p := eeg.NewPreprocessor()
		So(p.TrialLength(), ShouldEqual, 374)

		for _, samples := range []int{374, 748, 1000, 1121, 3740} {
			rec := syntheticRecording(eeg.ExpectedChannels, samples)

			Convey("When preprocessing "+strconv.Itoa(samples)+" samples", func() {
				seg, st, err := p.Preprocess(rec)

				Convey("Then floor(T/L) trials of L samples are produced", func() {
					So(err, ShouldBeNil)
					So(seg.Trials, ShouldEqual, samples/374)
					So(seg.TrialLength, ShouldEqual, 374)
					So(seg.Channels, ShouldEqual, eeg.ExpectedChannels)
					So(len(seg.Data), ShouldEqual, seg.Trials*eeg.ExpectedChannels*374)
					So(seg.Trials*seg.TrialLength, ShouldBeLessThanOrEqualTo, samples)
					So(len(st.Mean), ShouldEqual, eeg.ExpectedChannels)
					So(len(st.Std), ShouldEqual, eeg.ExpectedChannels)
				})
			})
		}

		Convey("When the recording has 748 samples", func() {
			rec := syntheticRecording(eeg.ExpectedChannels, 748)
			seg, st, err := p.Preprocess(rec)
			So(err, ShouldBeNil)

			Convey("Then trial k holds samples [k*L, (k+1)*L) of every channel", func() {
				So(seg.Trials, ShouldEqual, 2)
				for _, c := range []int{0, 17, 128} {
					for _, tr := range []int{0, 1} {
						got := seg.Trial(tr).Channel(c)
						for _, i := range []int{0, 100, 373} {
							want := (rec.Channel(c)[tr*374+i] - st.Mean[c]) / st.Std[c]
							So(got[i], ShouldAlmostEqual, want, 1e-12)
						}
					}
				}
			})
		})
	})
}

func TestPreprocess_Standardization(t *testing.T) {
	Convey("Given a recording whose length is a multiple of the trial length", t, func() {
		rec := syntheticRecording(eeg.ExpectedChannels, 3*100)
		p := eeg.NewPreprocessor(eeg.WithTrialLength(100))

		seg, st, err := p.Preprocess(rec)
		So(err, ShouldBeNil)

		Convey("Then every standardized channel has zero mean and unit population variance", func() {
			for c := 0; c < eeg.ExpectedChannels; c += 16 {
				var sum, sq float64
				for tr := 0; tr < seg.Trials; tr++ {
					for _, x := range seg.Trial(tr).Channel(c) {
						sum += x
						sq += x * x
					}
				}
				n := float64(seg.Trials * seg.TrialLength)
				So(sum/n, ShouldAlmostEqual, 0, 1e-9)
				So(sq/n, ShouldAlmostEqual, 1, 1e-9)
			}
		})

		Convey("Then de-standardizing reproduces the original samples", func() {
			back, err := eeg.Destandardize(seg, st)
			So(err, ShouldBeNil)
			for c := 0; c < eeg.ExpectedChannels; c++ {
				for tr := 0; tr < seg.Trials; tr++ {
					orig := rec.Channel(c)[tr*100 : (tr+1)*100]
					got := back.Trial(tr).Channel(c)
					for i := range orig {
						So(math.Abs(got[i]-orig[i]), ShouldBeLessThan, 1e-9)
					}
				}
			}
		})

		Convey("Then the input recording is left untouched", func() {
			fresh := syntheticRecording(eeg.ExpectedChannels, 300)
			So(rec.Data, ShouldResemble, fresh.Data)
		})
	})
}

func TestPreprocess_Rejections(t *testing.T) {
	Convey("Given a default preprocessor", t, func() {
		p := eeg.NewPreprocessor()

		Convey("When the recording has 128 or 130 channels", func() {
			for _, ch := range []int{128, 130} {
				_, _, err := p.Preprocess(syntheticRecording(ch, 748))

				Convey("Then ErrChannelCount is returned for "+strconv.Itoa(ch), func() {
					So(errors.Is(err, eeg.ErrChannelCount), ShouldBeTrue)
				})
			}
		})

		Convey("When the recording is shorter than one trial", func() {
			_, _, err := p.Preprocess(syntheticRecording(eeg.ExpectedChannels, 373))

			Convey("Then ErrNoTrials is returned", func() {
				So(errors.Is(err, eeg.ErrNoTrials), ShouldBeTrue)
			})
		})

		Convey("When the trial length is not positive", func() {
			_, _, err := eeg.NewPreprocessor(eeg.WithTrialLength(0)).Preprocess(syntheticRecording(eeg.ExpectedChannels, 10))

			Convey("Then ErrTrialLength is returned", func() {
				So(errors.Is(err, eeg.ErrTrialLength), ShouldBeTrue)
			})
		})

		Convey("When a sample is NaN", func() {
			rec := syntheticRecording(eeg.ExpectedChannels, 748)
			rec.Channel(3)[10] = math.NaN()
			_, _, err := p.Preprocess(rec)

			Convey("Then ErrNonFinite is returned", func() {
				So(errors.Is(err, eeg.ErrNonFinite), ShouldBeTrue)
			})
		})
	})
}

func TestPreprocess_ZeroVariance(t *testing.T) {
	for _, level := range []float64{3.5, 0.1, 0.3, 7.7, 123.456} {
		Convey("Given a recording whose channel 5 is flat at "+strconv.FormatFloat(level, 'g', -1, 64), t, func() {
			rec := syntheticRecording(eeg.ExpectedChannels, 748)
			flat := rec.Channel(5)
			for i := range flat {
				flat[i] = level
			}

			Convey("When the reject policy is active", func() {
				_, _, err := eeg.NewPreprocessor().Preprocess(rec)

				Convey("Then ErrZeroVariance names the channel", func() {
					So(errors.Is(err, eeg.ErrZeroVariance), ShouldBeTrue)
					So(err.Error(), ShouldContainSubstring, "channel 5")
				})
			})

			Convey("When the epsilon policy is active", func() {
				p := eeg.NewPreprocessor(
					eeg.WithZeroVariancePolicy(eeg.ZeroVarianceEpsilon),
					eeg.WithEpsilon(1e-6),
				)
				seg, st, err := p.Preprocess(rec)

				Convey("Then the flat channel standardizes to zeros with epsilon as std", func() {
					So(err, ShouldBeNil)
					So(st.Std[5], ShouldEqual, 1e-6)
					So(st.Mean[5], ShouldEqual, level)
					for tr := range seg.Trials {
						for _, x := range seg.Trial(tr).Channel(5) {
							So(x, ShouldEqual, 0)
						}
					}
				})
			})
		})
	}
}

func TestParseZeroVariancePolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := eeg.ParseZeroVariancePolicy("Epsilon")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, eeg.ZeroVarianceEpsilon)
		So(p.String(), ShouldEqual, "epsilon")

		p, err = eeg.ParseZeroVariancePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, eeg.ZeroVarianceReject)

		_, err = eeg.ParseZeroVariancePolicy("clip")
		So(err, ShouldNotBeNil)
	})
}
