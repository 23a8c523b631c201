package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/praxialabs/praxia/internal/catalog/domain"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	"gorm.io/gorm"
)

// EnsureDemoCatalog seeds a practitioner, a patient and a small item
// catalog so a fresh install has something to recommend. Safe to run
// on every startup.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		practitioner, err := ensurePractitioner(ctx, tx, node)
		if err != nil {
			return err
		}
		if err := ensurePatient(ctx, tx, node, practitioner.ID); err != nil {
			return err
		}
		return ensureItems(ctx, tx, node)
	})
}

func ensurePractitioner(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (patientdomain.Practitioner, error) {
	var existing patientdomain.Practitioner
	err := tx.WithContext(ctx).
		Where("email = ?", "demo@praxia.app").
		Take(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return patientdomain.Practitioner{}, err
	}

	practitioner := patientdomain.Practitioner{
		ID:                       node.Generate(),
		Name:                     "Demo Practitioner",
		Email:                    "demo@praxia.app",
		DefaultCommissionRateBps: 500,
	}
	if err := tx.WithContext(ctx).Create(&practitioner).Error; err != nil {
		return patientdomain.Practitioner{}, err
	}
	return practitioner, nil
}

func ensurePatient(ctx context.Context, tx *gorm.DB, node *snowflake.Node, practitionerID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&patientdomain.Patient{}).
		Where("practitioner_id = ?", practitionerID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	patient := patientdomain.Patient{
		ID:             node.Generate(),
		PractitionerID: practitionerID,
		Name:           "Demo Patient",
		Email:          "patient@praxia.app",
		EmailConsent:   true,
	}
	return tx.WithContext(ctx).Create(&patient).Error
}

func ensureItems(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	items := []catalogdomain.Item{
		{
			SKU:               "SUP-FISH-OIL",
			Name:              "Fish oil 1000mg",
			Category:          "supplements",
			UnitPrice:         450,
			CommissionRateBps: 300,
			StockQuantity:     100,
		},
		{
			SKU:               "SUP-VIT-D3",
			Name:              "Vitamin D3 2000IU",
			Category:          "supplements",
			UnitPrice:         320,
			CommissionRateBps: 300,
			StockQuantity:     100,
		},
		{
			SKU:               "SKIN-CERAMIDE",
			Name:              "Ceramide repair cream",
			Category:          "skincare",
			UnitPrice:         890,
			CommissionRateBps: 500,
			StockQuantity:     50,
		},
	}

	for _, item := range items {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&catalogdomain.Item{}).
			Where("sku = ?", item.SKU).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		item.ID = node.Generate()
		item.Currency = "THB"
		item.Active = true
		if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
			return err
		}
	}
	return nil
}
