package sqlitetest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// SeedUser inserts an active user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s_%s@example.com", role, uuid.NewString()[:8]),
		PasswordHash: "hash",
		Role:         role,
		FullName:     "Test " + role.String(),
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedBuyerProfile inserts a delivery profile for the buyer.
func SeedBuyerProfile(t testing.TB, conn *gorm.DB, userID uuid.UUID) *models.BuyerProfile {
	t.Helper()
	address, city, state, zip, phone := "12 Orchard Lane", "Fresno", "CA", "93701", "555-0100"
	profile := &models.BuyerProfile{
		ID:              uuid.New(),
		UserID:          userID,
		FullName:        "Test Buyer",
		Phone:           &phone,
		DeliveryAddress: &address,
		City:            &city,
		State:           &state,
		ZipCode:         &zip,
	}
	if err := conn.Create(profile).Error; err != nil {
		t.Fatalf("seed buyer profile: %v", err)
	}
	return profile
}

// SeedProduct inserts an approved, active listing.
func SeedProduct(t testing.TB, conn *gorm.DB, farmerID uuid.UUID, name, price string, quantity int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		FarmerID:    farmerID,
		Name:        name,
		ProductType: enums.ProductTypeProduce,
		Price:       decimal.RequireFromString(price),
		Unit:        "lb",
		IsApproved:  true,
		IsActive:    true,
	}
	product.SetQuantity(quantity)
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// ReloadProduct reads the current row.
func ReloadProduct(t testing.TB, conn *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return &product
}
