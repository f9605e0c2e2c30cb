package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/database"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/configs"
	"go.uber.org/zap"
)

// Storefront merchants with their head-office coordinates and city population.
var merchants = []models.Merchant{
	{Name: "Keells Super", Lat: 6.9271, Long: 79.8612, CityPop: 752993},
	{Name: "Cargills Food City", Lat: 6.9147, Long: 79.8778, CityPop: 752993},
	{Name: "Arpico", Lat: 6.8868, Long: 79.8590, CityPop: 752993},
	{Name: "Abans", Lat: 6.9020, Long: 79.8607, CityPop: 752993},
	{Name: "Singer Sri Lanka", Lat: 6.9319, Long: 79.8478, CityPop: 752993},
	{Name: "Daraz.lk", Lat: 6.9061, Long: 79.8705, CityPop: 752993},
	{Name: "Odel", Lat: 6.9175, Long: 79.8636, CityPop: 752993},
	{Name: "Hameedia", Lat: 6.9344, Long: 79.8428, CityPop: 752993},
	{Name: "Fashion Bug", Lat: 7.2906, Long: 80.6337, CityPop: 125400},
	{Name: "Laugfs Supermarkets", Lat: 6.0535, Long: 80.2210, CityPop: 99478},
	{Name: "PickMe", Lat: 6.9108, Long: 79.8878, CityPop: 752993},
	{Name: "KFC", Lat: 7.2083, Long: 79.8358, CityPop: 142449},
}

var products = []models.CartItem{
	{ProductID: "p-tea", Name: "Ceylon Tea 400g", Price: 4.5},
	{ProductID: "p-rice", Name: "Samba Rice 5kg", Price: 9.9},
	{ProductID: "p-phone", Name: "Smartphone", Price: 289},
	{ProductID: "p-fan", Name: "Table Fan", Price: 39.5},
	{ProductID: "p-saree", Name: "Batik Saree", Price: 64},
	{ProductID: "p-shoes", Name: "Running Shoes", Price: 72},
}

var jobs = []string{"Software Engineer", "Teacher, primary school", "Accountant, chartered", ""}

// main seeds merchants, demo user profiles and their carts.
// It initializes logging, loads config, connects to the database, runs migrations,
// and performs inserts inside a single transaction.
func main() {
	noOfUsers := flag.Int("noOfUsers", 20, "Number of demo users to seed")
	maxCartItems := flag.Int("maxCartItems", 3, "Max distinct products per cart")
	seed := flag.Int64("seed", 1, "Random seed, 0 seeds from the clock")
	flag.Parse()

	// Initialize logger
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	ctx := context.Background()
	db, closer, err := database.New(ctx, logger, database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	})
	if err != nil {
		logger.Fatal("failed_to_init_DB", zap.Error(err))
	}
	defer closer()

	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		logger.Fatal("failed_to_run_database_migrations", zap.Error(err))
	}

	r := rng.FromSeed(*seed).R("seed")

	// Seed data within a transaction to ensure atomicity.
	err = db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, m := range merchants {
			if _, err := tx.Exec(ctx, `
				INSERT INTO merchants (name, lat, long, city_pop) VALUES ($1, $2, $3, $4)
				ON CONFLICT (name) DO UPDATE SET lat = EXCLUDED.lat, long = EXCLUDED.long, city_pop = EXCLUDED.city_pop`,
				m.Name, m.Lat, m.Long, m.CityPop); err != nil {
				return err
			}
		}
		logger.Info("merchants_seeded", zap.Int("count", len(merchants)))

		for i := 1; i <= *noOfUsers; i++ {
			userID := fmt.Sprintf("user_%d", i)
			// Every fourth profile is left sparse so checkout defaults are exercised.
			first, job := fmt.Sprintf("User%d", i), jobs[r.Intn(len(jobs))]
			if i%4 == 0 {
				first, job = "", ""
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_profiles (user_id, first_name, last_name, gender, city, state, job, dob)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (user_id) DO NOTHING`,
				userID, first, "Perera", []string{"M", "F"}[r.Intn(2)], "Colombo", "Western", job,
				fmt.Sprintf("19%02d-%02d-%02d", 60+r.Intn(40), 1+r.Intn(12), 1+r.Intn(28))); err != nil {
				return err
			}

			noOfItems := r.Intn(*maxCartItems) + 1
			for k := 0; k < noOfItems; k++ {
				p := products[r.Intn(len(products))]
				if _, err := tx.Exec(ctx, `
					INSERT INTO cart_items (user_id, product_id, name, price, quantity) VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
					userID, p.ProductID, p.Name, p.Price, r.Intn(3)+1); err != nil {
					return err
				}
			}
			logger.Debug("user_seeded", zap.String(pkg.UserId, userID), zap.Int("cart_items", noOfItems))
		}
		return nil
	})
	if err != nil {
		logger.Fatal("failed_to_seed_data", zap.Error(err))
	}
	logger.Info("data_seeded_successfully", zap.Int("users", *noOfUsers))
}
