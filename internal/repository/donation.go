package repository

import (
	"context"
	"fmt"

	"donation-platform/internal/database"
	"donation-platform/internal/models"
	"donation-platform/internal/store"
)

type DonationRepository interface {
	Create(ctx context.Context, donation *models.Donation) error
	Delete(ctx context.Context, donationID int64) error
}

type donationRepoImpl struct {
	driver database.Driver
	writer *store.Writer
}

func NewDonationRepository(driver database.Driver, writer *store.Writer) DonationRepository {
	return &donationRepoImpl{
		driver: driver,
		writer: writer,
	}
}

// Create inserts donation and sets its ID from the store.
func (r *donationRepoImpl) Create(ctx context.Context, donation *models.Donation) error {
	payload := store.NewPayload(database.Row{
		"donor_id":      nullable(donation.DonorID),
		"amount":        donation.Amount,
		"is_anonymous":  donation.IsAnonymous,
		"branch_id":     nullable(donation.BranchID),
		"notes":         donation.Notes,
		"donation_date": donation.DonationDate,
	}, "branch_id", "notes", "donation_date")

	row, err := r.writer.Insert(ctx, models.DonationsTable, payload, []string{"donation_id"})
	if err != nil {
		return err
	}

	id, err := int64Column(row, "donation_id")
	if err != nil {
		return fmt.Errorf("insert into %s: %w", models.DonationsTable, err)
	}
	donation.ID = id
	return nil
}

func (r *donationRepoImpl) Delete(ctx context.Context, donationID int64) error {
	n, err := r.driver.Delete(ctx, models.DonationsTable, database.Filter{database.Eq("donation_id", donationID)})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", models.DonationsTable, err)
	}
	if n == 0 {
		return fmt.Errorf("delete from %s: donation %d: %w", models.DonationsTable, donationID, database.ErrNotFound)
	}
	return nil
}
