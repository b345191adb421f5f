package seed

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	skinfoldEvery      = 2
)

// Constants for body ranges.
const (
	ageMin          = 18.0
	ageRange        = 52.0
	maleHeightMin   = 162.0
	femaleHeightMin = 150.0
	heightRange     = 30.0
	bmiMin          = 19.0
	bmiRange        = 16.0
	driftMin        = -1.5
	driftRange      = 2.0
	weightFloor     = 40.0
	waistPerBMI     = 3.1
	waistBase       = 12.0
	hipOverWaist    = 8.0
	hipRange        = 10.0
	foldMin         = 6.0
	foldRange       = 24.0
	foldPerKg       = 0.3
	visitHour       = 9
)

// activityLevels are drawn uniformly for each patient.
var activityLevels = []string{"sedentary", "light", "moderate", "active", "very_active"} //nolint:gochecknoglobals // read-only lookup table

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// round1 keeps generated values at scale precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// generatePatients creates config.Patients histories of config.Visits
// monthly measurements each.
func generatePatients(ctx context.Context, config *Config, stats *Stats) ([]Patient, error) {
	if config.Patients < 1 || config.Visits < 1 {
		return nil, fmt.Errorf("%w: patients=%d visits=%d", ErrNothingGenerated, config.Patients, config.Visits)
	}
	logger.Get().Info(ctx, "generating patient histories",
		logger.Int("patients", config.Patients),
		logger.Int("visits", config.Visits))

	start := config.Start
	if start.IsZero() {
		start = time.Now().UTC().AddDate(0, -config.Visits, 0)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), visitHour, 0, 0, 0, time.UTC)

	type patientResult struct {
		index   int
		patient Patient
		err     error
	}

	resultChan := make(chan patientResult, config.Patients)

	workerCount := max(1, min(config.Workers, config.Patients))
	perWorker := config.Patients / workerCount

	for worker := 0; worker < workerCount; worker++ {
		from := worker * perWorker
		to := from + perWorker
		if worker == workerCount-1 {
			to = config.Patients
		}

		go func(from, to int) {
			for i := from; i < to; i++ {
				select {
				case <-ctx.Done():
					resultChan <- patientResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- patientResult{index: i, patient: generatePatient(i, start, config.Visits)}
				}
			}
		}(from, to)
	}

	patients := make([]Patient, config.Patients)
	for i := 0; i < config.Patients; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate patient %d: %w", result.index, result.err)
			}
			patients[result.index] = result.patient
		}
	}

	stats.PatientsGenerated = len(patients)
	stats.MeasurementsGenerated = len(patients) * config.Visits
	logger.Get().Info(ctx, "generated patient histories",
		logger.Int("patients", stats.PatientsGenerated),
		logger.Int("measurements", stats.MeasurementsGenerated))

	return patients, nil
}

// generatePatient builds one history. Weight drifts by a bounded random
// step each month; every other patient also carries the JP3 skinfolds.
func generatePatient(index int, start time.Time, visits int) Patient {
	id := uuid.NewString()

	gender := "female"
	heightMin := femaleHeightMin
	if randomIndex(2) == 0 {
		gender = "male"
		heightMin = maleHeightMin
	}
	age := math.Floor(ageMin + getRandomFloat()*ageRange)
	height := round1(heightMin + getRandomFloat()*heightRange)
	activity := activityLevels[randomIndex(len(activityLevels))]
	heightM := height / 100
	weight := round1((bmiMin + getRandomFloat()*bmiRange) * heightM * heightM)
	withFolds := index%skinfoldEvery == 0

	p := Patient{ID: id, Measurements: make([]model.MeasurementInput, 0, visits)}
	for v := 0; v < visits; v++ {
		if v > 0 {
			weight = max(weightFloor, round1(weight+driftMin+getRandomFloat()*driftRange))
		}
		bmi := weight / (heightM * heightM)
		waist := round1(waistBase + bmi*waistPerBMI)
		hip := round1(waist + hipOverWaist + getRandomFloat()*hipRange)

		in := model.MeasurementInput{
			PatientID:     id,
			Date:          start.AddDate(0, v, 0),
			WeightKg:      model.Ptr(weight),
			HeightCm:      model.Ptr(height),
			WaistCm:       model.Ptr(waist),
			HipCm:         model.Ptr(hip),
			AgeYears:      model.Ptr(age),
			Gender:        gender,
			ActivityLevel: activity,
		}
		if withFolds {
			in.TricepsMm = model.Ptr(fold(weight))
			in.SuprailiacMm = model.Ptr(fold(weight))
			in.ThighFoldMm = model.Ptr(fold(weight))
		}
		p.Measurements = append(p.Measurements, in)
	}

	p.FirstWeight = *p.Measurements[0].WeightKg
	p.LastWeight = *p.Measurements[visits-1].WeightKg
	return p
}

// fold returns a skinfold reading loosely tied to weight.
func fold(weightKg float64) float64 {
	return round1(foldMin + getRandomFloat()*foldRange + (weightKg-weightFloor)*foldPerKg)
}

// flatten concatenates histories in patient order.
func flatten(patients []Patient) []model.MeasurementInput {
	var out []model.MeasurementInput
	for i := range patients {
		out = append(out, patients[i].Measurements...)
	}
	return out
}
