package loader

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"

	"github.com/SanteonNL/fornax/models/rows"
)

// Migrate creates or updates the relational schema from the row structs.
// Migration runs once at startup on its own connection; the hot path
// stays on sqlx.
func Migrate(dsn string) error {
	db, err := gorm.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	err = db.AutoMigrate(
		&rows.Patient{},
		&rows.Encounter{},
		&rows.Condition{},
		&rows.Observation{},
		&rows.Immunization{},
		&rows.CarePlan{},
		&rows.MedicationRequest{},
		&rows.Procedure{},
		&rows.PatientSummary{},
	).Error
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}
