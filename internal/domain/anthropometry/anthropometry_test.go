package anthropometry_test

import (
	"testing"

	"github.com/okian/nutriagenda/internal/domain/anthropometry"
	"github.com/okian/nutriagenda/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func base(weight, height float64) *model.RawMeasurement {
	return &model.RawMeasurement{PatientID: "p-1", WeightKg: weight, HeightCm: height}
}

func TestFormulas(t *testing.T) {
	Convey("Given the individual formulas", t, func() {
		Convey("BMI should be weight over height in metres squared", func() {
			So(anthropometry.BMI(80, 200), ShouldEqual, 20)
			So(anthropometry.BMI(106.6, 184), ShouldAlmostEqual, 31.486295, 1e-5)
		})

		Convey("Jackson-Pollock 3 should follow the gendered polynomials", func() {
			male, ok := anthropometry.BodyFatJacksonPollock3(model.GenderMale, 30, 10, 15, 20)
			So(ok, ShouldBeTrue)
			So(male, ShouldAlmostEqual, 13.614894, 1e-5)

			female, ok := anthropometry.BodyFatJacksonPollock3(model.GenderFemale, 35, 20, 20, 20)
			So(ok, ShouldBeTrue)
			So(female, ShouldAlmostEqual, 24.444184, 1e-5)
		})

		Convey("Deurenberg should apply the gender factor", func() {
			bmi := anthropometry.BMI(80, 180)
			So(anthropometry.BodyFatDeurenberg(bmi, 30, model.GenderMale), ShouldAlmostEqual, 20.32963, 1e-5)
			So(anthropometry.BodyFatDeurenberg(bmi, 30, model.GenderFemale), ShouldAlmostEqual, 31.12963, 1e-5)
		})

		Convey("Harris-Benedict should use the revised coefficients", func() {
			So(anthropometry.BMRHarrisBenedict(80, 180, 30, model.GenderMale), ShouldAlmostEqual, 1853.632, 1e-6)
			So(anthropometry.BMRHarrisBenedict(60, 165, 25, model.GenderFemale), ShouldAlmostEqual, 1405.333, 1e-6)
		})

		Convey("TDEE should scale BMR by the activity factor", func() {
			tdee, ok := anthropometry.TDEE(2039, model.ActivityModerate)
			So(ok, ShouldBeTrue)
			So(tdee, ShouldAlmostEqual, 3160.45, 1e-6)

			_, ok = anthropometry.TDEE(2039, model.ActivityLevel("couch"))
			So(ok, ShouldBeFalse)
		})

		Convey("Lorentz should differ by gender", func() {
			So(anthropometry.IdealWeightLorentz(180, model.GenderMale), ShouldAlmostEqual, 72.5, 1e-9)
			So(anthropometry.IdealWeightLorentz(165, model.GenderFemale), ShouldAlmostEqual, 59, 1e-9)
		})

		Convey("Composition should always sum back to weight", func() {
			for _, bf := range []float64{3.2, 18, 41.81, 65.5} {
				fat, lean := anthropometry.Composition(106.6, bf)
				So(fat+lean, ShouldAlmostEqual, 106.6, 1e-6)
				So(fat, ShouldAlmostEqual, 106.6*bf/100, 1e-9)
			}
		})

		Convey("Heath-Carter should rate all three components", func() {
			st := anthropometry.HeathCarter(anthropometry.SomatotypeInput{
				WeightKg: 70, HeightCm: 175,
				TricepsMm: 10, SubscapularMm: 12, SupraspinaleMm: 8, CalfFoldMm: 9,
				HumerusBreadthCm: 6.8, FemurBreadthCm: 9.5,
				ArmFlexedCm: 33, CalfGirthCm: 37,
			})
			So(st.Endomorphy, ShouldAlmostEqual, 2.970916, 1e-5)
			So(st.Mesomorphy, ShouldAlmostEqual, 4.947, 1e-5)
			So(st.Ectomorphy, ShouldAlmostEqual, 2.502536, 1e-5)
			So(st.X, ShouldAlmostEqual, -0.46838, 1e-5)
			So(st.Y, ShouldAlmostEqual, 4.420548, 1e-5)
		})

		Convey("Durnin-Womersley should use the gendered intercepts", func() {
			So(anthropometry.BodyDensityDurninWomersley(model.GenderMale, 42), ShouldAlmostEqual, 1.060510645, 1e-8)
			female := anthropometry.BodyDensityDurninWomersley(model.GenderFemale, 42)
			So(anthropometry.Siri(female), ShouldAlmostEqual, 24.359196, 1e-5)
		})

		Convey("The four-component model should partition the whole weight", func() {
			in := fourComponentInput(model.GenderMale)
			fr, ok := anthropometry.FourComponent(&in)
			So(ok, ShouldBeTrue)
			So(fr.FatPercent, ShouldAlmostEqual, 16.756277, 1e-6)
			So(fr.FatKg, ShouldAlmostEqual, 13.405021, 1e-6)
			So(fr.BoneKg, ShouldAlmostEqual, 11.940727, 1e-6)
			So(fr.ResidualKg, ShouldAlmostEqual, 19.28, 1e-9)
			So(fr.MuscleKg, ShouldAlmostEqual, 35.374251, 1e-6)
			So(fr.MusclePercent, ShouldAlmostEqual, 44.217814, 1e-6)
			So(fr.FatKg+fr.BoneKg+fr.ResidualKg+fr.MuscleKg, ShouldAlmostEqual, 80, 1e-9)
			So(fr.FatPercent+fr.BonePercent+fr.ResidualPercent+fr.MusclePercent, ShouldAlmostEqual, 100, 1e-9)

			Convey("And women should use the smaller residual fraction", func() {
				in := fourComponentInput(model.GenderFemale)
				fr, ok := anthropometry.FourComponent(&in)
				So(ok, ShouldBeTrue)
				So(fr.ResidualKg, ShouldAlmostEqual, 80*0.209, 1e-9)
				So(fr.FatKg+fr.BoneKg+fr.ResidualKg+fr.MuscleKg, ShouldAlmostEqual, 80, 1e-9)
			})

			Convey("And nothing left for muscle should yield no result", func() {
				in := fourComponentInput(model.GenderMale)
				in.WeightKg = 15
				_, ok := anthropometry.FourComponent(&in)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestCompute(t *testing.T) {
	Convey("Given a validated measurement", t, func() {
		Convey("When only weight and height are present", func() {
			d := anthropometry.Compute(base(70, 175))

			Convey("Then only BMI should be derived", func() {
				So(d.BMI, ShouldAlmostEqual, 22.857142, 1e-5)
				So(d.BodyFatPercent, ShouldBeNil)
				So(d.BodyFatMethod, ShouldEqual, anthropometry.BodyFatMethod(""))
				So(d.FatMassKg, ShouldBeNil)
				So(d.LeanMassKg, ShouldBeNil)
				So(d.BMRKcal, ShouldBeNil)
				So(d.TDEEKcal, ShouldBeNil)
				So(d.IdealWeightKg, ShouldBeNil)
				So(d.WaistHipRatio, ShouldBeNil)
				So(d.Somatotype, ShouldBeNil)
				So(d.Fractionation, ShouldBeNil)
			})
		})

		Convey("When a 41 year old woman of 106.6 kg and 184 cm has no skinfolds", func() {
			raw := base(106.6, 184)
			raw.AgeYears = model.Ptr(41.0)
			raw.Gender = model.Ptr(model.GenderFemale)
			d := anthropometry.Compute(raw)

			Convey("Then body fat should come from Deurenberg", func() {
				So(d.BMI, ShouldAlmostEqual, 31.486295, 1e-5)
				So(d.BodyFatMethod, ShouldEqual, anthropometry.MethodDeurenberg)
				So(*d.BodyFatPercent, ShouldAlmostEqual, 41.813554, 1e-5)
				So(*d.FatMassKg+*d.LeanMassKg, ShouldAlmostEqual, 106.6, 1e-6)
				So(d.BMRKcal, ShouldNotBeNil)
				So(d.TDEEKcal, ShouldBeNil)
				So(d.IdealWeightKg, ShouldNotBeNil)
			})
		})

		Convey("When all three JP3 skinfolds are present", func() {
			raw := base(80, 180)
			raw.AgeYears = model.Ptr(30.0)
			raw.Gender = model.Ptr(model.GenderMale)
			raw.ActivityLevel = model.Ptr(model.ActivityModerate)
			raw.Skinfolds = model.Skinfolds{
				TricepsMm:    model.Ptr(10.0),
				SuprailiacMm: model.Ptr(15.0),
				ThighMm:      model.Ptr(20.0),
			}
			d := anthropometry.Compute(raw)

			Convey("Then the skinfold estimator should win over Deurenberg", func() {
				So(d.BodyFatMethod, ShouldEqual, anthropometry.MethodJacksonPollock3)
				So(*d.BodyFatPercent, ShouldAlmostEqual, 13.614894, 1e-5)
			})

			Convey("Then BMR and TDEE should both be present", func() {
				So(*d.BMRKcal, ShouldAlmostEqual, 1853.632, 1e-6)
				So(*d.TDEEKcal, ShouldAlmostEqual, 1853.632*1.55, 1e-6)
			})
		})

		Convey("When only two of the JP3 skinfolds are present", func() {
			raw := base(80, 180)
			raw.AgeYears = model.Ptr(30.0)
			raw.Gender = model.Ptr(model.GenderMale)
			raw.Skinfolds = model.Skinfolds{TricepsMm: model.Ptr(10.0), ThighMm: model.Ptr(20.0)}
			d := anthropometry.Compute(raw)

			Convey("Then it should fall back to Deurenberg", func() {
				So(d.BodyFatMethod, ShouldEqual, anthropometry.MethodDeurenberg)
			})
		})

		Convey("When gender is missing", func() {
			raw := base(80, 180)
			raw.AgeYears = model.Ptr(30.0)
			d := anthropometry.Compute(raw)

			Convey("Then gender-dependent metrics should be absent", func() {
				So(d.BodyFatPercent, ShouldBeNil)
				So(d.BMRKcal, ShouldBeNil)
				So(d.IdealWeightKg, ShouldBeNil)
			})
		})

		Convey("When waist and hip are present", func() {
			raw := base(80, 180)
			raw.Circumferences = model.Circumferences{WaistCm: model.Ptr(90.0), HipCm: model.Ptr(97.0)}
			d := anthropometry.Compute(raw)

			Convey("Then WHR should be waist over hip", func() {
				So(*d.WaistHipRatio, ShouldAlmostEqual, 0.927835, 1e-5)
			})
		})

		Convey("When the Heath-Carter inputs are complete", func() {
			raw := base(70, 175)
			raw.Skinfolds = model.Skinfolds{
				TricepsMm: model.Ptr(10.0), SubscapularMm: model.Ptr(12.0),
				SupraspinaleMm: model.Ptr(8.0), CalfMm: model.Ptr(9.0),
			}
			raw.Breadths = model.Breadths{HumerusCm: model.Ptr(6.8), FemurCm: model.Ptr(9.5)}
			raw.Circumferences = model.Circumferences{ArmFlexedCm: model.Ptr(33.0), CalfCm: model.Ptr(37.0)}
			d := anthropometry.Compute(raw)

			Convey("Then the somatotype should be attached", func() {
				So(d.Somatotype, ShouldNotBeNil)
				So(d.Somatotype.Mesomorphy, ShouldAlmostEqual, 4.947, 1e-5)
			})
		})

		Convey("When biceps, wrist and the other fractionation inputs are present", func() {
			raw := base(80, 180)
			raw.Gender = model.Ptr(model.GenderMale)
			raw.Skinfolds = model.Skinfolds{
				TricepsMm: model.Ptr(10.0), BicepsMm: model.Ptr(5.0),
				SubscapularMm: model.Ptr(12.0), SuprailiacMm: model.Ptr(15.0),
			}
			raw.Breadths = model.Breadths{WristCm: model.Ptr(5.6), FemurCm: model.Ptr(9.5)}

			Convey("Then the four components should sum to the weight", func() {
				d := anthropometry.Compute(raw)
				So(d.Fractionation, ShouldNotBeNil)
				fr := d.Fractionation
				So(fr.FatKg+fr.BoneKg+fr.ResidualKg+fr.MuscleKg, ShouldAlmostEqual, raw.WeightKg, 1e-9)
			})

			Convey("Then dropping the wrist breadth should drop the fractionation", func() {
				raw.Breadths.WristCm = nil
				So(anthropometry.Compute(raw).Fractionation, ShouldBeNil)
			})
		})
	})
}

func fourComponentInput(g model.Gender) anthropometry.FractionationInput {
	return anthropometry.FractionationInput{
		Gender: g, WeightKg: 80, HeightCm: 180,
		TricepsMm: 10, BicepsMm: 5, SubscapularMm: 12, SuprailiacMm: 15,
		WristBreadthCm: 5.6, FemurBreadthCm: 9.5,
	}
}
