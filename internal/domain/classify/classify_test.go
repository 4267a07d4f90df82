package classify_test

import (
	"errors"
	"testing"

	"github.com/okian/nsted/internal/domain/classify"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given the default classifier", t, func() {
		c := classify.New()
		So(c.Threshold(), ShouldEqual, classify.DefaultThreshold)

		Convey("When the mean score is below the threshold", func() {
			label, mean, err := c.Classify([]float64{0.1, 0.2, 0.3})

			Convey("Then the trace is Normal", func() {
				So(err, ShouldBeNil)
				So(label, ShouldEqual, classify.LabelNormal)
				So(mean, ShouldAlmostEqual, 0.2, 1e-12)
			})
		})

		Convey("When the mean score equals the threshold", func() {
			label, _, err := c.Classify([]float64{0.25, 0.75})

			Convey("Then the trace is MDD", func() {
				So(err, ShouldBeNil)
				So(label, ShouldEqual, classify.LabelMDD)
			})
		})

		Convey("When the trace is empty", func() {
			_, _, err := c.Classify(nil)
			So(errors.Is(err, classify.ErrEmptyTrace), ShouldBeTrue)
		})
	})

	Convey("Given a custom threshold", t, func() {
		c := classify.New(classify.WithThreshold(0.9))
		label, _, err := c.Classify([]float64{0.8})
		So(err, ShouldBeNil)
		So(label, ShouldEqual, classify.LabelNormal)

		So(classify.New(classify.WithThreshold(2)).Threshold(), ShouldEqual, classify.DefaultThreshold)
	})
}

func TestConclusion(t *testing.T) {
	Convey("Given labels", t, func() {
		So(classify.Conclusion(classify.LabelNormal), ShouldEqual, "No signs of mental disorder")
		So(classify.Conclusion(classify.LabelMDD), ShouldEqual, "Signs of MDD detected")
		So(classify.Conclusion("Unknown"), ShouldEqual, "Signs of MDD detected")
	})

	Convey("Given label strings", t, func() {
		l, err := classify.ParseLabel("MDD")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, classify.LabelMDD)

		_, err = classify.ParseLabel("mdd")
		So(err, ShouldNotBeNil)
	})
}
