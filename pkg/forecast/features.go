package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"gopkg.in/yaml.v3"
)

const keyLayout = "2006-01-02 15:04:05"

// Encoders maps categorical feature values to the ordinal codes the model was trained on.
// Each list is the encoder's category order; a value's code is its index.
type Encoders struct {
	Weather      []string `yaml:"weather"`
	SpecialEvent []string `yaml:"special_event"`
}

// LoadEncoders reads the encoder artifact from a YAML file
func LoadEncoders(path string) (*Encoders, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read encoders: %w", err)
	}
	var enc Encoders
	if err := yaml.Unmarshal(b, &enc); err != nil {
		return nil, fmt.Errorf("parse encoders %s: %w", path, err)
	}
	if len(enc.Weather) == 0 || len(enc.SpecialEvent) == 0 {
		return nil, fmt.Errorf("encoders %s: weather and special_event categories are required", path)
	}
	return &enc, nil
}

func encode(categories []string, value string) (float64, bool) {
	for i, c := range categories {
		if c == value {
			return float64(i), true
		}
	}
	return 0, false
}

// EncodeWeather returns the ordinal code of a weather category
func (e *Encoders) EncodeWeather(value string) (float64, error) {
	code, ok := encode(e.Weather, value)
	if !ok {
		return 0, fmt.Errorf("unknown weather category %q", value)
	}
	return code, nil
}

// EncodeSpecialEvent returns the ordinal code of a special-event category
func (e *Encoders) EncodeSpecialEvent(value string) (float64, error) {
	code, ok := encode(e.SpecialEvent, value)
	if !ok {
		return 0, fmt.Errorf("unknown special event category %q", value)
	}
	return code, nil
}

// Resolver maps a date and hour to the feature record for that timestamp
type Resolver interface {
	Resolve(date string, hour int) (models.FeatureRecord, error)
}

// FeatureStore is the in-memory calendar feature table keyed by exact timestamp
type FeatureStore struct {
	records map[string]models.FeatureRecord
}

var requiredColumns = []string{"Timestamp", "Hour", "Is_Weekend", "Weather", "Special_Event"}

// LoadFeatures reads the calendar CSV at path
func LoadFeatures(path string, enc *Encoders) (*FeatureStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open features: %w", err)
	}
	defer f.Close()
	return ReadFeatures(f, enc)
}

// ReadFeatures parses a calendar CSV with a header row. Categorical columns are
// encoded while loading so lookups never fail on an unknown category.
func ReadFeatures(r io.Reader, enc *Encoders) (*FeatureStore, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read features header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("features: missing column %q", c)
		}
	}

	store := &FeatureStore{records: make(map[string]models.FeatureRecord)}
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("features line %d: %w", line, err)
		}

		rec, err := parseFeatureRow(record, cols, enc)
		if err != nil {
			return nil, fmt.Errorf("features line %d: %w", line, err)
		}
		key := rec.Timestamp.Format(keyLayout)
		if _, dup := store.records[key]; dup {
			return nil, fmt.Errorf("features line %d: duplicate timestamp %s", line, key)
		}
		store.records[key] = rec
	}
	return store, nil
}

func parseFeatureRow(record []string, cols map[string]int, enc *Encoders) (models.FeatureRecord, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	ts, err := models.ParseTimestamp(field("Timestamp"))
	if err != nil {
		return models.FeatureRecord{}, err
	}
	hour, err := strconv.Atoi(field("Hour"))
	if err != nil {
		return models.FeatureRecord{}, fmt.Errorf("invalid hour %q", field("Hour"))
	}
	weekend, err := parseFlag(field("Is_Weekend"))
	if err != nil {
		return models.FeatureRecord{}, err
	}

	rec := models.FeatureRecord{
		Timestamp:    ts,
		Hour:         hour,
		Weekday:      field("Weekday"),
		IsWeekend:    weekend,
		Weather:      field("Weather"),
		SpecialEvent: field("Special_Event"),
	}
	if rec.WeatherEncoded, err = enc.EncodeWeather(rec.Weather); err != nil {
		return models.FeatureRecord{}, err
	}
	if rec.SpecialEventEncoded, err = enc.EncodeSpecialEvent(rec.SpecialEvent); err != nil {
		return models.FeatureRecord{}, err
	}
	return rec, nil
}

func parseFlag(s string) (int, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid Is_Weekend %q", s)
	}
	return n, nil
}

// Len returns the number of timestamps in the store
func (s *FeatureStore) Len() int {
	return len(s.records)
}

// Resolve returns the record for date (YYYY-MM-DD) at hour:00 exactly.
func (s *FeatureStore) Resolve(date string, hour int) (models.FeatureRecord, error) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return models.FeatureRecord{}, errs.Malformed("date %q is not YYYY-MM-DD", date)
	}
	if hour < 0 || hour > 23 {
		return models.FeatureRecord{}, errs.Malformed("hour %d is outside 0-23", hour)
	}

	key := day.Add(time.Duration(hour) * time.Hour).Format(keyLayout)
	rec, ok := s.records[key]
	if !ok {
		return models.FeatureRecord{}, errs.ErrFeatureNotFound
	}
	return rec, nil
}
