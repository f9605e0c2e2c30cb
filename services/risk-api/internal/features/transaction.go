package features

import "time"

// Input is the raw checkout context features are derived from.
type Input struct {
	Amount            float64
	Merchant          string
	MerchantLatitude  float64
	MerchantLongitude float64
	UserLatitude      float64
	UserLongitude     float64
	Timestamp         string
	Category          string
	JobTitle          string
}

// TransactionFeatures are computed per checkout and never persisted directly.
type TransactionFeatures struct {
	Amount                 float64
	MerchantLatitude       float64
	MerchantLongitude      float64
	UserLatitude           float64
	UserLongitude          float64
	DistanceKm             float64
	HourOfDay              int
	CategoryOneHot         OneHot
	NormalizedMerchantName string
	NormalizedJobTitle     string
}

// Derive computes the features for in. A timestamp that cannot be parsed falls back to now's hour in UTC
// so derivation never fails on collaborator data.
func Derive(in Input, now func() time.Time) TransactionFeatures {
	hour, err := HourOfDay(in.Timestamp)
	if err != nil {
		if now == nil {
			now = time.Now
		}
		hour = now().UTC().Hour()
	}
	return TransactionFeatures{
		Amount:                 in.Amount,
		MerchantLatitude:       in.MerchantLatitude,
		MerchantLongitude:      in.MerchantLongitude,
		UserLatitude:           in.UserLatitude,
		UserLongitude:          in.UserLongitude,
		DistanceKm:             DistanceKm(in.MerchantLatitude, in.MerchantLongitude, in.UserLatitude, in.UserLongitude),
		HourOfDay:              hour,
		CategoryOneHot:         EncodeCategory(in.Category),
		NormalizedMerchantName: NormalizeMerchant(in.Merchant),
		NormalizedJobTitle:     NormalizeJob(in.JobTitle),
	}
}
