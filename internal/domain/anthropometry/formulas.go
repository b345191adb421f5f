// Package anthropometry holds the stateless formula set that turns a
// validated measurement into derived body-composition metrics.
//
// Each formula is an independent function so callers (forms, reports,
// charts) can reuse a single metric without running the whole set.
package anthropometry

import (
	"math"

	"github.com/okian/nutriagenda/internal/domain/model"
)

// activityMultipliers maps activity levels to their TDEE factor.
var activityMultipliers = map[model.ActivityLevel]float64{ //nolint:gochecknoglobals // read-only lookup table
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

// BMI returns weight / height(m)^2.
func BMI(weightKg, heightCm float64) float64 {
	heightM := heightCm / 100
	return weightKg / (heightM * heightM)
}

// BodyDensityJP3 applies the Jackson-Pollock 3-site density polynomial to a
// sum of triceps, suprailiac and thigh skinfolds (mm).
func BodyDensityJP3(g model.Gender, ageYears, sumFoldsMm float64) float64 {
	s := sumFoldsMm
	if g == model.GenderMale {
		return 1.10938 - 0.0008267*s + 0.0000016*s*s - 0.0002574*ageYears
	}
	return 1.0994921 - 0.0009929*s + 0.0000023*s*s - 0.0001392*ageYears
}

// Siri converts body density (g/cm3) to body-fat percent.
func Siri(density float64) float64 {
	return 495/density - 450
}

// BodyFatJacksonPollock3 estimates body-fat percent from three skinfolds.
// ok is false when the density is not physical.
func BodyFatJacksonPollock3(g model.Gender, ageYears, tricepsMm, suprailiacMm, thighMm float64) (float64, bool) {
	density := BodyDensityJP3(g, ageYears, tricepsMm+suprailiacMm+thighMm)
	if density <= 0 {
		return 0, false
	}
	return Siri(density), true
}

// BodyFatDeurenberg estimates body-fat percent from BMI and age.
func BodyFatDeurenberg(bmi, ageYears float64, g model.Gender) float64 {
	genderFactor := 0.0
	if g == model.GenderMale {
		genderFactor = 1
	}
	return 1.20*bmi + 0.23*ageYears - 10.8*genderFactor - 5.4
}

// BMRHarrisBenedict returns basal metabolic rate (kcal/day) using the
// revised Harris-Benedict coefficients.
func BMRHarrisBenedict(weightKg, heightCm, ageYears float64, g model.Gender) float64 {
	if g == model.GenderMale {
		return 88.362 + 13.397*weightKg + 4.799*heightCm - 5.677*ageYears
	}
	return 447.593 + 9.247*weightKg + 3.098*heightCm - 4.330*ageYears
}

// ActivityMultiplier returns the TDEE factor for lvl.
func ActivityMultiplier(lvl model.ActivityLevel) (float64, bool) {
	m, ok := activityMultipliers[lvl]
	return m, ok
}

// TDEE scales BMR by the activity multiplier.
func TDEE(bmrKcal float64, lvl model.ActivityLevel) (float64, bool) {
	m, ok := ActivityMultiplier(lvl)
	if !ok {
		return 0, false
	}
	return bmrKcal * m, true
}

// IdealWeightLorentz returns the Lorentz ideal weight in kg.
func IdealWeightLorentz(heightCm float64, g model.Gender) float64 {
	if g == model.GenderMale {
		return heightCm - 100 - (heightCm-150)/4
	}
	return heightCm - 100 - (heightCm-150)/2.5
}

// WaistHipRatio returns waist / hip.
func WaistHipRatio(waistCm, hipCm float64) float64 {
	return waistCm / hipCm
}

// Composition splits weight into fat and lean mass. fat + lean == weight.
func Composition(weightKg, bodyFatPercent float64) (fatMassKg, leanMassKg float64) {
	fatMassKg = weightKg * (bodyFatPercent / 100)
	leanMassKg = weightKg - fatMassKg
	return fatMassKg, leanMassKg
}

// BodyDensityDurninWomersley applies the Durnin-Womersley density equation
// to the sum of biceps, triceps, subscapular and iliac-crest folds (mm).
func BodyDensityDurninWomersley(g model.Gender, sumFoldsMm float64) float64 {
	l := math.Log10(sumFoldsMm)
	if g == model.GenderMale {
		return 1.1631 - 0.0632*l
	}
	return 1.1599 - 0.0717*l
}

// BoneMassVonDobeln returns bone mass in kg from height and the wrist and
// femur breadths (Rocha's modification of Von Döbeln).
func BoneMassVonDobeln(heightCm, wristCm, femurCm float64) float64 {
	h := heightCm / 100
	return 3.02 * math.Pow(h*h*(wristCm/100)*(femurCm/100)*400, 0.712)
}

// ResidualMassWurfel returns the residual (organ and fluid) mass in kg.
func ResidualMassWurfel(weightKg float64, g model.Gender) float64 {
	if g == model.GenderMale {
		return weightKg * 0.241
	}
	return weightKg * 0.209
}

// Fractionation splits weight into four components. The kg fields always
// sum to the measured weight; muscle is what remains after the other three.
type Fractionation struct {
	FatKg           float64 `json:"fat_kg"`
	FatPercent      float64 `json:"fat_percent"`
	BoneKg          float64 `json:"bone_kg"`
	BonePercent     float64 `json:"bone_percent"`
	ResidualKg      float64 `json:"residual_kg"`
	ResidualPercent float64 `json:"residual_percent"`
	MuscleKg        float64 `json:"muscle_kg"`
	MusclePercent   float64 `json:"muscle_percent"`
}

// FractionationInput carries what the four-component model needs.
type FractionationInput struct {
	Gender         model.Gender
	WeightKg       float64
	HeightCm       float64
	TricepsMm      float64
	BicepsMm       float64
	SubscapularMm  float64
	SuprailiacMm   float64
	WristBreadthCm float64
	FemurBreadthCm float64
}

// FourComponent fractionates body mass into fat (Durnin-Womersley + Siri),
// bone (Von Döbeln), residual (Würfel) and muscle by difference. ok is false
// when the fat estimate is not physical or nothing is left for muscle.
func FourComponent(in *FractionationInput) (Fractionation, bool) {
	density := BodyDensityDurninWomersley(in.Gender, in.TricepsMm+in.BicepsMm+in.SubscapularMm+in.SuprailiacMm)
	if density <= 0 {
		return Fractionation{}, false
	}
	bf := Siri(density)
	if !plausibleFat(bf) {
		return Fractionation{}, false
	}

	w := in.WeightKg
	fat := w * bf / 100
	bone := BoneMassVonDobeln(in.HeightCm, in.WristBreadthCm, in.FemurBreadthCm)
	residual := ResidualMassWurfel(w, in.Gender)
	muscle := w - (fat + bone + residual)
	if muscle <= 0 || math.IsNaN(bone) {
		return Fractionation{}, false
	}

	pct := func(kg float64) float64 { return kg / w * 100 }
	return Fractionation{
		FatKg:           fat,
		FatPercent:      bf,
		BoneKg:          bone,
		BonePercent:     pct(bone),
		ResidualKg:      residual,
		ResidualPercent: pct(residual),
		MuscleKg:        muscle,
		MusclePercent:   pct(muscle),
	}, true
}

// Somatotype is a Heath-Carter rating with its somatochart coordinates.
type Somatotype struct {
	Endomorphy float64 `json:"endomorphy"`
	Mesomorphy float64 `json:"mesomorphy"`
	Ectomorphy float64 `json:"ectomorphy"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// SomatotypeInput carries the anthropometry the Heath-Carter method needs.
type SomatotypeInput struct {
	WeightKg         float64
	HeightCm         float64
	TricepsMm        float64
	SubscapularMm    float64
	SupraspinaleMm   float64
	CalfFoldMm       float64
	HumerusBreadthCm float64
	FemurBreadthCm   float64
	ArmFlexedCm      float64
	CalfGirthCm      float64
}

// HeathCarter rates the three somatotype components.
func HeathCarter(in SomatotypeInput) Somatotype {
	// Endomorphy from height-corrected sum of three skinfolds.
	x := (in.TricepsMm + in.SubscapularMm + in.SupraspinaleMm) * (170.18 / in.HeightCm)
	endo := -0.7182 + 0.1451*x - 0.00068*x*x + 0.0000014*x*x*x

	armCorrected := in.ArmFlexedCm - in.TricepsMm/10
	calfCorrected := in.CalfGirthCm - in.CalfFoldMm/10
	meso := 0.858*in.HumerusBreadthCm + 0.601*in.FemurBreadthCm +
		0.188*armCorrected + 0.161*calfCorrected - 0.131*in.HeightCm + 4.5

	hwr := in.HeightCm / math.Cbrt(in.WeightKg)
	var ecto float64
	switch {
	case hwr >= 40.75:
		ecto = 0.732*hwr - 28.58
	case hwr > 38.25:
		ecto = 0.463*hwr - 17.63
	default:
		ecto = 0.1
	}

	return Somatotype{
		Endomorphy: endo,
		Mesomorphy: meso,
		Ectomorphy: ecto,
		X:          ecto - endo,
		Y:          2*meso - (endo + ecto),
	}
}
