// Package validate turns untyped measurement input into a RawMeasurement,
// rejecting malformed values before any formula runs.
package validate

import (
	"math"
	"strconv"
	"strings"

	"github.com/okian/nutriagenda/internal/domain/model"
)

// Physiological bounds.
const (
	minHeightCm   = 30
	maxHeightCm   = 250
	maxWeightKg   = 500
	maxGirthCm    = 300
	maxSkinfoldMm = 100
	maxBreadthCm  = 50
	maxAgeYears   = 130
	maxBodyScore  = 100
)

// Validate checks in and returns the typed measurement. Absent optional
// fields stay nil. Every problem is reported in a single *ValidationError.
// The date is truncated to model.DatePrecision.
func Validate(in *model.MeasurementInput) (model.RawMeasurement, error) {
	c := &checker{}

	raw := model.RawMeasurement{
		PatientID: strings.TrimSpace(in.PatientID),
		Date:      in.Date.Truncate(model.DatePrecision),
		Notes:     strings.TrimSpace(in.Notes),
	}

	if w, ok := c.required("weight_kg", in.WeightKg); ok {
		if w > maxWeightKg {
			c.outOfRange("weight_kg", w, "must not exceed 500 kg")
		} else {
			raw.WeightKg = w
		}
	}
	if h, ok := c.required("height_cm", in.HeightCm); ok {
		if h < minHeightCm || h > maxHeightCm {
			c.outOfRange("height_cm", h, "must be between 30 and 250 cm")
		} else {
			raw.HeightCm = h
		}
	}

	girth := func(field string, p *float64) *float64 { return c.bounded(field, p, maxGirthCm, "cm") }
	fold := func(field string, p *float64) *float64 { return c.bounded(field, p, maxSkinfoldMm, "mm") }
	breadth := func(field string, p *float64) *float64 { return c.bounded(field, p, maxBreadthCm, "cm") }

	raw.Circumferences = model.Circumferences{
		WaistCm:     girth("waist_cm", in.WaistCm),
		HipCm:       girth("hip_cm", in.HipCm),
		ChestCm:     girth("chest_cm", in.ChestCm),
		ArmCm:       girth("arm_cm", in.ArmCm),
		ThighCm:     girth("thigh_cm", in.ThighCm),
		CalfCm:      girth("calf_cm", in.CalfCm),
		NeckCm:      girth("neck_cm", in.NeckCm),
		ArmFlexedCm: girth("arm_flexed_cm", in.ArmFlexedCm),
	}
	raw.Skinfolds = model.Skinfolds{
		TricepsMm:      fold("triceps_mm", in.TricepsMm),
		BicepsMm:       fold("biceps_mm", in.BicepsMm),
		SubscapularMm:  fold("subscapular_mm", in.SubscapularMm),
		SuprailiacMm:   fold("suprailiac_mm", in.SuprailiacMm),
		AbdominalMm:    fold("abdominal_mm", in.AbdominalMm),
		ThighMm:        fold("thigh_fold_mm", in.ThighFoldMm),
		CalfMm:         fold("calf_fold_mm", in.CalfFoldMm),
		SupraspinaleMm: fold("supraspinale_mm", in.SupraspinaleMm),
	}
	raw.Breadths = model.Breadths{
		HumerusCm: breadth("humerus_breadth_cm", in.HumerusBreadthCm),
		FemurCm:   breadth("femur_breadth_cm", in.FemurBreadthCm),
		WristCm:   breadth("wrist_breadth_cm", in.WristBreadthCm),
	}

	if age := c.positive("age_years", in.AgeYears); age != nil {
		if *age > maxAgeYears {
			c.outOfRange("age_years", *age, "must not exceed 130")
		} else {
			raw.AgeYears = age
		}
	}

	if s := strings.TrimSpace(in.Gender); s != "" {
		if g, ok := model.ParseGender(s); ok {
			raw.Gender = &g
		} else {
			c.add("gender", ErrOutOfRange, s, "must be male or female")
		}
	}
	if s := strings.TrimSpace(in.ActivityLevel); s != "" {
		if lvl, ok := model.ParseActivityLevel(s); ok {
			raw.ActivityLevel = &lvl
		} else {
			c.add("activity_level", ErrOutOfRange, s, "must be one of sedentary, light, moderate, active, very_active")
		}
	}

	if in.BodyScore != nil {
		v := *in.BodyScore
		if !finite(v) || v < 0 || v > maxBodyScore {
			c.outOfRange("body_score", v, "must be between 0 and 100")
		} else {
			raw.BodyScore = model.Ptr(v)
		}
	}

	if len(c.issues) > 0 {
		return model.RawMeasurement{}, &ValidationError{Issues: c.issues}
	}
	return raw, nil
}

// checker accumulates issues while fields are read.
type checker struct {
	issues []Issue
}

func (c *checker) add(field string, kind error, value, reason string) {
	c.issues = append(c.issues, Issue{Field: field, Kind: kind, Value: value, Reason: reason})
}

func (c *checker) outOfRange(field string, v float64, reason string) {
	c.add(field, ErrOutOfRange, strconv.FormatFloat(v, 'g', -1, 64), reason)
}

func (c *checker) required(field string, p *float64) (float64, bool) {
	if p == nil {
		c.add(field, ErrMissingRequiredField, "", "is required")
		return 0, false
	}
	if !finite(*p) || *p <= 0 {
		c.outOfRange(field, *p, "must be a positive number")
		return 0, false
	}
	return *p, true
}

// positive copies an optional value, flagging it when present but not > 0.
func (c *checker) positive(field string, p *float64) *float64 {
	if p == nil {
		return nil
	}
	if !finite(*p) || *p <= 0 {
		c.outOfRange(field, *p, "must be a positive number")
		return nil
	}
	return model.Ptr(*p)
}

// bounded is positive with an upper limit.
func (c *checker) bounded(field string, p *float64, limit float64, unit string) *float64 {
	v := c.positive(field, p)
	if v != nil && *v > limit {
		c.outOfRange(field, *v, "must not exceed "+strconv.FormatFloat(limit, 'g', -1, 64)+" "+unit)
		return nil
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
