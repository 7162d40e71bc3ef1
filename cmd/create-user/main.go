package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"excursion-booking/internal/config"
	"excursion-booking/internal/database"
	"excursion-booking/internal/logging"
	"excursion-booking/internal/models"
	"excursion-booking/internal/repositories"
	"excursion-booking/internal/utils"
)

func main() {
	var (
		email     = flag.String("email", "", "Account email")
		password  = flag.String("password", "", "Account password (min 8 characters)")
		firstName = flag.String("name", models.GuestFirstName, "First name")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", true)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.New(cfg.Server.LogLevel, true)

	req := &models.RegisterRequest{Email: *email, Password: *password, FirstName: *firstName}
	if err := req.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/create-user -email user@example.com -password secret123 [-name Anna]")
		logger.Fatal().Err(err).Msg("Invalid account data")
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to hash password")
	}

	user, err := repositories.NewUserRepository(db.DB).Create(ctx, models.NewUser{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
	})
	if errors.Is(err, models.ErrDuplicateEntry) {
		logger.Fatal().Str("email", req.Email).Msg("A user with this email already exists")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("User created: %s (%s) - ID: %d\n", user.FirstName, user.Email, user.ID)
}
