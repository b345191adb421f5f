// Package model contains the measurement types passed between layers.
package model

import (
	"strings"
	"time"
)

// Gender selects the sex-specific coefficients and band tables.
type Gender string

// Supported genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender normalizes the spellings found in forms and imports.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "hombre", "masculino", "h":
		return GenderMale, true
	case "female", "f", "mujer", "femenino":
		return GenderFemale, true
	default:
		return "", false
	}
}

// ActivityLevel scales BMR into total daily energy expenditure.
type ActivityLevel string

// Supported activity levels.
const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// ParseActivityLevel accepts the canonical names plus space/dash variants.
func ParseActivityLevel(s string) (ActivityLevel, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch lvl := ActivityLevel(norm); lvl {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive:
		return lvl, true
	default:
		return "", false
	}
}

// MeasurementInput is the unvalidated boundary shape produced by the
// measurement form, HTTP clients and import messages. Pointers and empty
// strings mean "not provided".
type MeasurementInput struct {
	PatientID string    `json:"patient_id"`
	Date      time.Time `json:"date,omitzero"`

	WeightKg *float64 `json:"weight_kg,omitempty"`
	HeightCm *float64 `json:"height_cm,omitempty"`

	WaistCm *float64 `json:"waist_cm,omitempty"`
	HipCm   *float64 `json:"hip_cm,omitempty"`
	ChestCm *float64 `json:"chest_cm,omitempty"`
	ArmCm   *float64 `json:"arm_cm,omitempty"`
	ThighCm *float64 `json:"thigh_cm,omitempty"`
	CalfCm  *float64 `json:"calf_cm,omitempty"`
	NeckCm  *float64 `json:"neck_cm,omitempty"`

	TricepsMm     *float64 `json:"triceps_mm,omitempty"`
	BicepsMm      *float64 `json:"biceps_mm,omitempty"`
	SubscapularMm *float64 `json:"subscapular_mm,omitempty"`
	SuprailiacMm  *float64 `json:"suprailiac_mm,omitempty"`
	AbdominalMm   *float64 `json:"abdominal_mm,omitempty"`
	ThighFoldMm   *float64 `json:"thigh_fold_mm,omitempty"`
	CalfFoldMm    *float64 `json:"calf_fold_mm,omitempty"`

	SupraspinaleMm   *float64 `json:"supraspinale_mm,omitempty"`
	ArmFlexedCm      *float64 `json:"arm_flexed_cm,omitempty"`
	HumerusBreadthCm *float64 `json:"humerus_breadth_cm,omitempty"`
	FemurBreadthCm   *float64 `json:"femur_breadth_cm,omitempty"`
	WristBreadthCm   *float64 `json:"wrist_breadth_cm,omitempty"`

	AgeYears      *float64 `json:"age_years,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	ActivityLevel string   `json:"activity_level,omitempty"`
	Notes         string   `json:"notes,omitempty"`

	// BodyScore is an externally sourced 0-100 composite (e.g. from a
	// bioimpedance device report). It is never computed here.
	BodyScore *float64 `json:"body_score,omitempty"`
}

// Circumferences are girths in centimetres.
type Circumferences struct {
	WaistCm *float64 `json:"waist_cm,omitempty"`
	HipCm   *float64 `json:"hip_cm,omitempty"`
	ChestCm *float64 `json:"chest_cm,omitempty"`
	ArmCm   *float64 `json:"arm_cm,omitempty"`
	ThighCm *float64 `json:"thigh_cm,omitempty"`
	CalfCm  *float64 `json:"calf_cm,omitempty"`
	NeckCm  *float64 `json:"neck_cm,omitempty"`
	// ArmFlexedCm is the contracted arm girth used by the somatotype.
	ArmFlexedCm *float64 `json:"arm_flexed_cm,omitempty"`
}

// Skinfolds are caliper readings in millimetres.
type Skinfolds struct {
	TricepsMm      *float64 `json:"triceps_mm,omitempty"`
	BicepsMm       *float64 `json:"biceps_mm,omitempty"`
	SubscapularMm  *float64 `json:"subscapular_mm,omitempty"`
	SuprailiacMm   *float64 `json:"suprailiac_mm,omitempty"`
	AbdominalMm    *float64 `json:"abdominal_mm,omitempty"`
	ThighMm        *float64 `json:"thigh_mm,omitempty"`
	CalfMm         *float64 `json:"calf_mm,omitempty"`
	SupraspinaleMm *float64 `json:"supraspinale_mm,omitempty"`
}

// Breadths are bone diameters in centimetres.
type Breadths struct {
	HumerusCm *float64 `json:"humerus_cm,omitempty"`
	FemurCm   *float64 `json:"femur_cm,omitempty"`
	WristCm   *float64 `json:"wrist_cm,omitempty"`
}

// RawMeasurement is one validated assessment event. WeightKg and HeightCm
// are always set; every pointer field is optional.
type RawMeasurement struct {
	PatientID string    `json:"patient_id"`
	Date      time.Time `json:"date"`

	WeightKg float64 `json:"weight_kg"`
	HeightCm float64 `json:"height_cm"`

	Circumferences Circumferences `json:"circumferences"`
	Skinfolds      Skinfolds      `json:"skinfolds"`
	Breadths       Breadths       `json:"breadths"`

	AgeYears      *float64       `json:"age_years,omitempty"`
	Gender        *Gender        `json:"gender,omitempty"`
	ActivityLevel *ActivityLevel `json:"activity_level,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	BodyScore     *float64       `json:"body_score,omitempty"`
}

// Key identifies the assessment event: one patient, one instant.
func (r *RawMeasurement) Key() string {
	return KeyOf(r.PatientID, r.Date)
}

// DatePrecision is the finest date resolution kept. It matches Postgres
// timestamptz so stored and in-flight keys agree.
const DatePrecision = time.Microsecond

// KeyOf builds the (patient, date) identity used for storage and dedupe.
// Equal instants in different zones give the same key, and instants within
// the same microsecond collapse to one key.
func KeyOf(patientID string, date time.Time) string {
	return patientID + "@" + date.UTC().Truncate(DatePrecision).Format(time.RFC3339Nano)
}

// Ptr returns a pointer to v. Handy for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a deep copy that shares no pointers with r.
func (r *RawMeasurement) Clone() RawMeasurement {
	c := *r
	c.Circumferences = Circumferences{
		WaistCm:     clonePtr(r.Circumferences.WaistCm),
		HipCm:       clonePtr(r.Circumferences.HipCm),
		ChestCm:     clonePtr(r.Circumferences.ChestCm),
		ArmCm:       clonePtr(r.Circumferences.ArmCm),
		ThighCm:     clonePtr(r.Circumferences.ThighCm),
		CalfCm:      clonePtr(r.Circumferences.CalfCm),
		NeckCm:      clonePtr(r.Circumferences.NeckCm),
		ArmFlexedCm: clonePtr(r.Circumferences.ArmFlexedCm),
	}
	c.Skinfolds = Skinfolds{
		TricepsMm:      clonePtr(r.Skinfolds.TricepsMm),
		BicepsMm:       clonePtr(r.Skinfolds.BicepsMm),
		SubscapularMm:  clonePtr(r.Skinfolds.SubscapularMm),
		SuprailiacMm:   clonePtr(r.Skinfolds.SuprailiacMm),
		AbdominalMm:    clonePtr(r.Skinfolds.AbdominalMm),
		ThighMm:        clonePtr(r.Skinfolds.ThighMm),
		CalfMm:         clonePtr(r.Skinfolds.CalfMm),
		SupraspinaleMm: clonePtr(r.Skinfolds.SupraspinaleMm),
	}
	c.Breadths = Breadths{
		HumerusCm: clonePtr(r.Breadths.HumerusCm),
		FemurCm:   clonePtr(r.Breadths.FemurCm),
		WristCm:   clonePtr(r.Breadths.WristCm),
	}
	c.AgeYears = clonePtr(r.AgeYears)
	c.Gender = clonePtr(r.Gender)
	c.ActivityLevel = clonePtr(r.ActivityLevel)
	c.BodyScore = clonePtr(r.BodyScore)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
