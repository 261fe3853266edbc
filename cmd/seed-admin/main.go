// seed-admin creates or updates the backoffice user for a business.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/seed-admin --business-name "Acme Traders" --username admin --password secret
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

func main() {
	businessName := flag.String("business-name", "", "Required: business to attach the user to (created when absent)")
	businessEmail := flag.String("business-email", "admin@example.com", "Contact email when creating the business")
	username := flag.String("username", "admin", "Login username")
	name := flag.String("name", "Stockroom Admin", "Display name")
	password := flag.String("password", "", "Required: login password")
	flag.Parse()

	if strings.TrimSpace(*businessName) == "" || strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "--business-name and --password are required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var business models.Business
	err := db.WithContext(ctx).Where("name = ?", strings.TrimSpace(*businessName)).First(&business).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
			os.Exit(1)
		}
		created, err := models.CreateBusiness(ctx, &models.NewBusiness{
			Name:  strings.TrimSpace(*businessName),
			Email: strings.TrimSpace(*businessEmail),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
			os.Exit(1)
		}
		business = *created
		fmt.Printf("created business %s (%s)\n", business.Name, business.ID)
	}

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", strings.ToLower(strings.TrimSpace(*username))).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		user := models.User{
			BusinessId: business.ID.String(),
			Username:   strings.ToLower(strings.TrimSpace(*username)),
			Name:       *name,
			Password:   string(hashed),
			IsActive:   utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created user %s for business %s\n", user.Username, business.Name)
		return
	}

	existing.Password = string(hashed)
	existing.BusinessId = business.ID.String()
	existing.IsActive = utils.NewTrue()
	if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("updated user %s for business %s\n", existing.Username, business.Name)
}
