package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
)

// RecordRepository reads patient profiles and health logs. It implements records.Accessor.
type RecordRepository struct {
	db  *DB
	now func() time.Time
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

// FetchRecentRecords implements records.Accessor
func (r *RecordRepository) FetchRecentRecords(ctx context.Context, userID uuid.UUID, kinds []models.RecordKind, windowDays int) (models.RecordSet, error) {
	if windowDays < 0 {
		return models.RecordSet{}, fmt.Errorf("invalid window of %d days", windowDays)
	}
	since := r.now().AddDate(0, 0, -windowDays)

	set := models.RecordSet{
		Glucose:    []models.GlucoseReading{},
		Weight:     []models.WeightLog{},
		Activity:   []models.ActivityLog{},
		Medication: []models.MedicationLog{},
	}

	var err error
	for _, kind := range kinds {
		switch kind {
		case models.RecordKindGlucose:
			set.Glucose, err = r.fetchGlucose(ctx, userID, since)
		case models.RecordKindWeight:
			set.Weight, err = r.fetchWeight(ctx, userID, since)
		case models.RecordKindActivity:
			set.Activity, err = r.fetchActivity(ctx, userID, since)
		case models.RecordKindMedication:
			set.Medication, err = r.fetchMedicationLogs(ctx, userID, since)
		default:
			err = fmt.Errorf("unknown record kind %q", kind)
		}
		if err != nil {
			return models.RecordSet{}, err
		}
	}
	return set, nil
}

func (r *RecordRepository) fetchGlucose(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.GlucoseReading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recorded_at, value, timing
		FROM glucose_readings
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query glucose readings: %w", err)
	}
	defer rows.Close()

	out := []models.GlucoseReading{}
	for rows.Next() {
		reading := models.GlucoseReading{UserID: userID}
		var timing string
		if err := rows.Scan(&reading.Timestamp, &reading.Value, &timing); err != nil {
			return nil, fmt.Errorf("failed to scan glucose reading: %w", err)
		}
		reading.Timing = models.GlucoseTiming(timing)
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate glucose readings: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) fetchWeight(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.WeightLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recorded_at, value, unit
		FROM weight_logs
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query weight logs: %w", err)
	}
	defer rows.Close()

	out := []models.WeightLog{}
	for rows.Next() {
		log := models.WeightLog{UserID: userID}
		var unit string
		if err := rows.Scan(&log.Timestamp, &log.Value, &unit); err != nil {
			return nil, fmt.Errorf("failed to scan weight log: %w", err)
		}
		log.Unit = models.WeightUnit(unit)
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weight logs: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) fetchActivity(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recorded_at, duration_minutes, intensity, activity_type
		FROM activity_logs
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	out := []models.ActivityLog{}
	for rows.Next() {
		log := models.ActivityLog{UserID: userID}
		var intensity string
		if err := rows.Scan(&log.Timestamp, &log.Value, &intensity, &log.Type); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		log.Intensity = models.ActivityIntensity(intensity)
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity logs: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) fetchMedicationLogs(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.MedicationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recorded_at, medication, dose
		FROM medication_logs
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query medication logs: %w", err)
	}
	defer rows.Close()

	out := []models.MedicationLog{}
	for rows.Next() {
		log := models.MedicationLog{UserID: userID}
		if err := rows.Scan(&log.Timestamp, &log.Medication, &log.Dose); err != nil {
			return nil, fmt.Errorf("failed to scan medication log: %w", err)
		}
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medication logs: %w", err)
	}
	return out, nil
}

// FetchProfile implements records.Accessor. A missing profile row yields an empty profile.
func (r *RecordRepository) FetchProfile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	profile := models.Profile{UserID: userID}
	var age sql.NullInt64
	var height, targetLow, targetHigh sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT first_name, last_name, age, sex, ethnicity, height_cm, activity_level, location, target_low, target_high
		FROM patient_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&profile.FirstName,
		&profile.LastName,
		&age,
		&profile.Sex,
		&profile.Ethnicity,
		&height,
		&profile.ActivityLevel,
		&profile.Location,
		&targetLow,
		&targetHigh,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{UserID: userID}, nil
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	if age.Valid {
		v := int(age.Int64)
		profile.Age = &v
	}
	profile.HeightCm = nullFloatPtr(height)
	profile.TargetLow = nullFloatPtr(targetLow)
	profile.TargetHigh = nullFloatPtr(targetHigh)
	return profile, nil
}

// FetchConditions implements records.Accessor
func (r *RecordRepository) FetchConditions(ctx context.Context, userID uuid.UUID) ([]models.Condition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, severity, diagnosed_at
		FROM patient_conditions
		WHERE user_id = $1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conditions: %w", err)
	}
	defer rows.Close()

	out := []models.Condition{}
	for rows.Next() {
		var cond models.Condition
		var diagnosed sql.NullTime
		if err := rows.Scan(&cond.Name, &cond.Severity, &diagnosed); err != nil {
			return nil, fmt.Errorf("failed to scan condition: %w", err)
		}
		cond.DiagnosedAt = nullTimePtr(diagnosed)
		out = append(out, cond)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conditions: %w", err)
	}
	return out, nil
}

// FetchMedications implements records.Accessor
func (r *RecordRepository) FetchMedications(ctx context.Context, userID uuid.UUID) ([]models.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, dosage, frequency, started_at
		FROM patient_medications
		WHERE user_id = $1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	out := []models.Medication{}
	for rows.Next() {
		var med models.Medication
		var started sql.NullTime
		if err := rows.Scan(&med.Name, &med.Dosage, &med.Frequency, &started); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		med.StartedAt = nullTimePtr(started)
		out = append(out, med)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medications: %w", err)
	}
	return out, nil
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// ListActiveUsers returns users who logged any record at or after since
func (r *RecordRepository) ListActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM glucose_readings WHERE recorded_at >= $1
		UNION
		SELECT user_id FROM weight_logs WHERE recorded_at >= $1
		UNION
		SELECT user_id FROM activity_logs WHERE recorded_at >= $1
		UNION
		SELECT user_id FROM medication_logs WHERE recorded_at >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	out := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan active user: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}
	return out, nil
}
