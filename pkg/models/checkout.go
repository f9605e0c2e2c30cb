package models

import (
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
)

// Merchant maps to table `merchants`
type Merchant struct {
	Name    string
	Lat     float64
	Long    float64
	CityPop int
}

// UserProfile maps to table `user_profiles`. Empty fields are filled with checkout defaults.
type UserProfile struct {
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Street    string
	City      string
	State     string
	Zip       string
	Job       string
	DOB       string
}

// CartItem maps to table `cart_items`
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Cart struct {
	UserID string
	Items  []CartItem
}

func (c Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Transaction maps to table `transactions`
type Transaction struct {
	TransNum           string
	UserID             string
	TransDateTransTime string
	UnixTime           int64
	CardEncrypted      string
	CardMasked         string
	Merchant           string
	Category           string
	Amount             float64
	FirstName          string
	LastName           string
	Gender             string
	Street             string
	City               string
	State              string
	Zip                string
	Lat                float64
	Long               float64
	CityPop            int
	Job                string
	DOB                string
	UserLat            float64
	UserLon            float64
	Total              float64
	Items              []CartItem
	Decision           views.RiskDecision
	CreatedAt          time.Time
}
