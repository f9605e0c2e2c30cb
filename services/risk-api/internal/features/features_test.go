package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relClose(t *testing.T, want, got float64) {
	t.Helper()
	if want == 0 {
		assert.InDelta(t, 0, got, 1e-9)
		return
	}
	assert.LessOrEqual(t, math.Abs(want-got)/math.Abs(want), 1e-6, "want %v got %v", want, got)
}

func TestDistanceKm_Identity(t *testing.T) {
	points := [][2]float64{{0, 0}, {6.9271, 79.8612}, {-33.86, 151.2}, {89.9, -179.9}}
	for _, p := range points {
		assert.Zero(t, DistanceKm(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a, b := [2]float64{6.9271, 79.8612}, [2]float64{7.2906, 80.6337}
	relClose(t, DistanceKm(a[0], a[1], b[0], b[1]), DistanceKm(b[0], b[1], a[0], a[1]))
}

func TestDistanceKm_Reference(t *testing.T) {
	// one degree of latitude at the equator
	relClose(t, earthRadiusKm*math.Pi/180, DistanceKm(0, 0, 1, 0))
	assert.InDelta(t, 111.19, DistanceKm(0, 0, 1, 0), 0.01)

	// half the circumference between antipodes on the equator
	relClose(t, earthRadiusKm*math.Pi, DistanceKm(0, 0, 0, 180))
}

func TestHourOfDay(t *testing.T) {
	for _, ts := range []string{
		"2024-06-01T13:45:00",
		"2024-06-01 13:45:00",
		"2024-06-01T13:45:00Z",
		"2024-06-01T13:45:00+05:30",
		"2024-06-01T13:45:00.123Z",
	} {
		h, err := HourOfDay(ts)
		require.NoError(t, err, ts)
		assert.Equal(t, 13, h, ts)
	}

	_, err := HourOfDay("yesterday")
	assert.ErrorIs(t, err, ErrUnparseableTimestamp)
}

func TestEncodeCategory(t *testing.T) {
	v := EncodeCategory("category_travel")
	sum := 0
	for _, x := range v {
		sum += x
	}
	assert.Equal(t, 1, sum)
	assert.Equal(t, 1, v[len(Categories)-1])

	assert.Equal(t, EncodeCategory("travel"), v)
	assert.Equal(t, 1, EncodeCategory("entertainment")[0])
	assert.Equal(t, OneHot{}, EncodeCategory("category_crypto"))
	assert.Equal(t, OneHot{}, EncodeCategory(""))
	assert.Len(t, v, 14)
}

func TestCategoryColumn(t *testing.T) {
	assert.Equal(t, "category_travel", CategoryColumn("travel"))
	assert.Equal(t, "category_travel", CategoryColumn("category_travel"))
}

func TestNormalizeMerchant(t *testing.T) {
	assert.Equal(t, "Daraz.lk", NormalizeMerchant("Odel"))
	assert.Equal(t, "Dialog Axiata", NormalizeMerchant("Dialog"))
	assert.Equal(t, "Pizza Hut Sri Lanka", NormalizeMerchant("Pizza Hut"))
	assert.Equal(t, "McDonald's Sri Lanka", NormalizeMerchant("McDonald's"))
	assert.Equal(t, "Keells Super", NormalizeMerchant("Keells Super"))
	assert.Equal(t, DefaultMerchant, NormalizeMerchant("Unknown Corner Shop"))
	assert.Equal(t, DefaultMerchant, NormalizeMerchant(""))
}

func TestNormalizeJob(t *testing.T) {
	assert.Equal(t, "Psychologist, counselling", NormalizeJob("Software Engineer"))
	assert.Equal(t, DefaultJob, NormalizeJob("scientist"))
	assert.Equal(t, DefaultJob, NormalizeJob("Astronaut"))
	assert.Equal(t, DefaultJob, NormalizeJob(""))
}

func TestDerive(t *testing.T) {
	f := Derive(Input{
		Amount:            2500,
		Merchant:          "KFC",
		MerchantLatitude:  0,
		MerchantLongitude: 0,
		UserLatitude:      1,
		UserLongitude:     0,
		Timestamp:         "2024-06-01 13:45:00",
		Category:          "food_dining",
		JobTitle:          "Web Developer",
	}, nil)

	assert.Equal(t, 2500.0, f.Amount)
	assert.Equal(t, "KFC Sri Lanka", f.NormalizedMerchantName)
	assert.Equal(t, DefaultJob, f.NormalizedJobTitle)
	assert.Equal(t, 13, f.HourOfDay)
	assert.Equal(t, 1, f.CategoryOneHot[1])
	assert.InDelta(t, 111.19, f.DistanceKm, 0.01)
}

func TestDerive_BadTimestampUsesClock(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC) }
	f := Derive(Input{Timestamp: "garbage"}, now)
	assert.Equal(t, 7, f.HourOfDay)
}
