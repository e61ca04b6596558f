// Command setrole changes the role stored on a profile.
//
//	setrole -email teacher@school.org -role teacher
//	setrole -subject 1098765 -role student
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"planethero/internal/cache"
	"planethero/internal/config"
	"planethero/internal/models"
	"planethero/internal/services"
	"planethero/internal/store"
	"planethero/internal/validation"

	"go.uber.org/zap"
)

func main() {
	subjectID := flag.String("subject", "", "subject id of the profile")
	email := flag.String("email", "", "email of the profile (used when -subject is empty)")
	role := flag.String("role", "", "new role: student or teacher")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := validation.ValidateVar("role", *role, "required,role"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if *subjectID == "" && *email == "" {
		fmt.Fprintln(os.Stderr, "one of -subject or -email is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	documentStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer documentStore.Close()

	// shares the server's cache so SetRole's invalidation reaches it
	profileCache, err := cache.NewCache(cache.ConfigFrom(cfg), logger)
	if err != nil {
		logger.Fatal("Failed to create cache", zap.Error(err))
	}
	defer profileCache.Close()
	profiles := services.NewProfileRepository(documentStore, profileCache, cfg.Cache.DefaultTTL, cfg.Cache.KeyPrefix, logger)
	analytics := services.NewAnalytics(profiles, profileCache, cfg.Cache.DefaultTTL, cfg.Cache.KeyPrefix, logger)

	target := *subjectID
	if target == "" {
		p, err := findByEmail(ctx, profiles, *email)
		if err != nil {
			logger.Fatal("Profile lookup failed", zap.String("email", *email), zap.Error(err))
		}
		target = p.ID
	}

	if err := profiles.SetRole(ctx, target, models.Role(*role)); err != nil {
		logger.Fatal("Failed to update role", zap.String("subject_id", target), zap.Error(err))
	}
	analytics.Invalidate(ctx)

	fmt.Printf("Profile %s is now a %s.\n", target, *role)
}

func findByEmail(ctx context.Context, profiles *services.ProfileRepository, email string) (*models.Profile, error) {
	all, err := profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no profile with email %s", email)
}
