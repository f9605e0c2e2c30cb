package scoring

// FraudRequest is the payload of POST /fraud on the scoring service. Field names follow the
// columns the model was trained on.
type FraudRequest struct {
	TransDateTransTime string  `json:"trans_date_trans_time"`
	CCNum              int64   `json:"cc_num"`
	Merchant           string  `json:"merchant"`
	Category           string  `json:"category"`
	Amount             float64 `json:"amt"`
	First              string  `json:"first"`
	Last               string  `json:"last"`
	Gender             string  `json:"gender"`
	Street             string  `json:"street"`
	City               string  `json:"city"`
	State              string  `json:"state"`
	Zip                string  `json:"zip"`
	Lat                float64 `json:"lat"`
	Long               float64 `json:"long"`
	CityPop            int     `json:"city_pop"`
	Job                string  `json:"job"`
	DOB                string  `json:"dob"`
	TransNum           string  `json:"trans_num"`
	UnixTime           int64   `json:"unix_time"`
	UserLat            float64 `json:"user_lat"`
	UserLon            float64 `json:"user_lon"`
	Hour               int     `json:"hour"`
	DistanceKm         float64 `json:"distance_km"`
	CategoryOneHot     []int   `json:"category_one_hot"`
}

// ProbabilityRequest is the payload of POST /predict on the risk probability service.
type ProbabilityRequest struct {
	Amount     float64 `json:"amt"`
	CityPop    int     `json:"city_pop"`
	Hour       int     `json:"hour"`
	DistanceKm float64 `json:"distance_km"`
	Category   string  `json:"category"`
}

// Prediction is the risk probability service's answer. RiskProbability is a percentage.
type Prediction struct {
	RiskProbability  float64  `json:"risk_probability"`
	RiskLevel        string   `json:"risk_level"`
	Description      string   `json:"description,omitempty"`
	RemediationSteps []string `json:"remediation_steps,omitempty"`
}
