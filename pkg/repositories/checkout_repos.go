package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/database"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
)

// MerchantRepository resolves merchants by display name.
type MerchantRepository interface {
	// FindByName reports found=false when no merchant has that name.
	FindByName(ctx context.Context, name string) (merchant models.Merchant, found bool, err error)
}

type MerchantRepositoryImpl struct {
	db *database.DB
}

func NewMerchantRepository(db *database.DB) MerchantRepository {
	return &MerchantRepositoryImpl{db: db}
}

func (m MerchantRepositoryImpl) FindByName(ctx context.Context, name string) (models.Merchant, bool, error) {
	var merchant models.Merchant
	err := m.db.QueryRow(ctx, `SELECT name, lat, long, city_pop FROM merchants WHERE name = $1`, name).
		Scan(&merchant.Name, &merchant.Lat, &merchant.Long, &merchant.CityPop)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Merchant{}, false, nil
	}
	if err != nil {
		return models.Merchant{}, false, err
	}
	return merchant, true, nil
}

// UserProfileRepository loads the profile fields the scoring model needs.
type UserProfileRepository interface {
	// FindByUserID returns an empty profile (UserID set) when none is stored.
	FindByUserID(ctx context.Context, userID string) (models.UserProfile, error)
}

type UserProfileRepositoryImpl struct {
	db *database.DB
}

func NewUserProfileRepository(db *database.DB) UserProfileRepository {
	return &UserProfileRepositoryImpl{db: db}
}

func (u UserProfileRepositoryImpl) FindByUserID(ctx context.Context, userID string) (models.UserProfile, error) {
	profile := models.UserProfile{UserID: userID}
	err := u.db.QueryRow(ctx, `
		SELECT first_name, last_name, gender, street, city, state, zip, job, dob
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&profile.FirstName, &profile.LastName, &profile.Gender, &profile.Street,
			&profile.City, &profile.State, &profile.Zip, &profile.Job, &profile.DOB)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile, nil
	}
	return profile, err
}

// CartRepository reads and clears a user's cart.
type CartRepository interface {
	FindByUserID(ctx context.Context, userID string) (models.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type CartRepositoryImpl struct {
	db *database.DB
}

func NewCartRepository(db *database.DB) CartRepository {
	return &CartRepositoryImpl{db: db}
}

func (c CartRepositoryImpl) FindByUserID(ctx context.Context, userID string) (models.Cart, error) {
	cart := models.Cart{UserID: userID}
	rows, err := c.db.Query(ctx, `
		SELECT product_id, name, price, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return cart, err
	}
	defer rows.Close()
	for rows.Next() {
		var item models.CartItem
		if err = rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return cart, err
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

func (c CartRepositoryImpl) Clear(ctx context.Context, userID string) error {
	_, err := c.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
