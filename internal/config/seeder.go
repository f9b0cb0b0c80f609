package config

import (
	"log"

	"libris/internal/adapters/persistence/models"
	"libris/internal/core/domain"
	"libris/internal/pkg/password"

	"gorm.io/gorm"
)

// SeedAdminUser creates the initial admin account when no admin exists yet
func SeedAdminUser(db *gorm.DB, cfg *Config) error {
	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", domain.RoleAdmin).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash(cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:     cfg.Seed.AdminEmail,
		Password:  hashed,
		FirstName: "Library",
		LastName:  "Admin",
		Role:      string(domain.RoleAdmin),
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded admin user [%s]", admin.Email)
	return nil
}

// SeedCatalog inserts a handful of sample books into an empty catalog.
// Dev convenience only; production catalogs are managed through the API.
func SeedCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Book{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	books := sampleBooks()
	if err := db.Create(&books).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded %d sample books", len(books))
	return nil
}

func sampleBooks() []models.Book {
	str := func(s string) *string { return &s }
	year := func(y int) *int { return &y }

	return []models.Book{
		{
			Title:           "The Go Programming Language",
			Author:          "Alan A. A. Donovan, Brian W. Kernighan",
			Genre:           str("Informatique"),
			ISBN:            str("9780134190440"),
			PublicationYear: year(2015),
			TotalCopies:     3,
			AvailableCopies: 3,
		},
		{
			Title:           "Le Petit Prince",
			Author:          "Antoine de Saint-Exupéry",
			Genre:           str("Fiction"),
			ISBN:            str("9782070612758"),
			PublicationYear: year(1943),
			TotalCopies:     5,
			AvailableCopies: 5,
		},
		{
			Title:           "Designing Data-Intensive Applications",
			Author:          "Martin Kleppmann",
			Genre:           str("Informatique"),
			ISBN:            str("9781449373320"),
			PublicationYear: year(2017),
			TotalCopies:     2,
			AvailableCopies: 2,
		},
		{
			Title:           "L'Étranger",
			Author:          "Albert Camus",
			Genre:           str("Fiction"),
			ISBN:            str("9782070360024"),
			PublicationYear: year(1942),
			TotalCopies:     4,
			AvailableCopies: 4,
		},
	}
}
