package anthropometry

import "github.com/okian/nutriagenda/internal/domain/model"

// BodyFatMethod records which estimator produced BodyFatPercent.
type BodyFatMethod string

// Supported body-fat estimators.
const (
	MethodJacksonPollock3 BodyFatMethod = "jackson_pollock_3"
	MethodDeurenberg      BodyFatMethod = "deurenberg"
)

// DerivedMetrics is a pure function of one RawMeasurement. A nil field
// means its inputs were not available; it is never a zero stand-in.
type DerivedMetrics struct {
	BMI            float64        `json:"bmi"`
	BodyFatPercent *float64       `json:"body_fat_percent,omitempty"`
	BodyFatMethod  BodyFatMethod  `json:"body_fat_method,omitempty"`
	FatMassKg      *float64       `json:"fat_mass_kg,omitempty"`
	LeanMassKg     *float64       `json:"lean_mass_kg,omitempty"`
	BMRKcal        *float64       `json:"bmr_kcal,omitempty"`
	TDEEKcal       *float64       `json:"tdee_kcal,omitempty"`
	IdealWeightKg  *float64       `json:"ideal_weight_kg,omitempty"`
	WaistHipRatio  *float64       `json:"waist_hip_ratio,omitempty"`
	Somatotype     *Somatotype    `json:"somatotype,omitempty"`
	Fractionation  *Fractionation `json:"fractionation,omitempty"`
}

// Compute derives every metric whose inputs are present. Missing optional
// inputs only drop the metrics that depend on them.
func Compute(raw *model.RawMeasurement) DerivedMetrics {
	d := DerivedMetrics{BMI: BMI(raw.WeightKg, raw.HeightCm)}

	if bf, method, ok := bodyFat(raw, d.BMI); ok {
		fat, lean := Composition(raw.WeightKg, bf)
		d.BodyFatPercent = model.Ptr(bf)
		d.BodyFatMethod = method
		d.FatMassKg = model.Ptr(fat)
		d.LeanMassKg = model.Ptr(lean)
	}

	if raw.Gender != nil && raw.AgeYears != nil {
		bmr := BMRHarrisBenedict(raw.WeightKg, raw.HeightCm, *raw.AgeYears, *raw.Gender)
		d.BMRKcal = model.Ptr(bmr)
		if raw.ActivityLevel != nil {
			if tdee, ok := TDEE(bmr, *raw.ActivityLevel); ok {
				d.TDEEKcal = model.Ptr(tdee)
			}
		}
	}

	if raw.Gender != nil {
		// Lorentz goes non-positive only far below its intended height range.
		if iw := IdealWeightLorentz(raw.HeightCm, *raw.Gender); iw > 0 {
			d.IdealWeightKg = model.Ptr(iw)
		}
	}

	if c := raw.Circumferences; c.WaistCm != nil && c.HipCm != nil {
		d.WaistHipRatio = model.Ptr(WaistHipRatio(*c.WaistCm, *c.HipCm))
	}

	if st, ok := somatotype(raw); ok {
		d.Somatotype = &st
	}

	if fr, ok := fractionation(raw); ok {
		d.Fractionation = &fr
	}

	return d
}

// bodyFat prefers the skinfold estimator when all three sites are present
// and falls back to the BMI-based one.
func bodyFat(raw *model.RawMeasurement, bmi float64) (float64, BodyFatMethod, bool) {
	if raw.Gender == nil || raw.AgeYears == nil {
		return 0, "", false
	}
	g, age := *raw.Gender, *raw.AgeYears

	sf := raw.Skinfolds
	if sf.TricepsMm != nil && sf.SuprailiacMm != nil && sf.ThighMm != nil {
		if bf, ok := BodyFatJacksonPollock3(g, age, *sf.TricepsMm, *sf.SuprailiacMm, *sf.ThighMm); ok && plausibleFat(bf) {
			return bf, MethodJacksonPollock3, true
		}
	}

	if bf := BodyFatDeurenberg(bmi, age, g); plausibleFat(bf) {
		return bf, MethodDeurenberg, true
	}
	return 0, "", false
}

func plausibleFat(pct float64) bool {
	return pct > 0 && pct < 100
}

func somatotype(raw *model.RawMeasurement) (Somatotype, bool) {
	sf, c, b := raw.Skinfolds, raw.Circumferences, raw.Breadths
	if sf.TricepsMm == nil || sf.SubscapularMm == nil || sf.SupraspinaleMm == nil || sf.CalfMm == nil ||
		b.HumerusCm == nil || b.FemurCm == nil || c.ArmFlexedCm == nil || c.CalfCm == nil {
		return Somatotype{}, false
	}
	return HeathCarter(SomatotypeInput{
		WeightKg:         raw.WeightKg,
		HeightCm:         raw.HeightCm,
		TricepsMm:        *sf.TricepsMm,
		SubscapularMm:    *sf.SubscapularMm,
		SupraspinaleMm:   *sf.SupraspinaleMm,
		CalfFoldMm:       *sf.CalfMm,
		HumerusBreadthCm: *b.HumerusCm,
		FemurBreadthCm:   *b.FemurCm,
		ArmFlexedCm:      *c.ArmFlexedCm,
		CalfGirthCm:      *c.CalfCm,
	}), true
}

func fractionation(raw *model.RawMeasurement) (Fractionation, bool) {
	sf, b := raw.Skinfolds, raw.Breadths
	if raw.Gender == nil || sf.TricepsMm == nil || sf.BicepsMm == nil || sf.SubscapularMm == nil ||
		sf.SuprailiacMm == nil || b.WristCm == nil || b.FemurCm == nil {
		return Fractionation{}, false
	}
	return FourComponent(&FractionationInput{
		Gender:         *raw.Gender,
		WeightKg:       raw.WeightKg,
		HeightCm:       raw.HeightCm,
		TricepsMm:      *sf.TricepsMm,
		BicepsMm:       *sf.BicepsMm,
		SubscapularMm:  *sf.SubscapularMm,
		SuprailiacMm:   *sf.SuprailiacMm,
		WristBreadthCm: *b.WristCm,
		FemurBreadthCm: *b.FemurCm,
	})
}
