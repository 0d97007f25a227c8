package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrProfileNotFound = errors.New("profile not found")

// CampaignRecord links an upstream campaign to the local user that created it.
type CampaignRecord struct {
	ID           uuid.UUID `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	UserID       uuid.UUID `json:"user_id"`
	OfferID      string    `json:"offer_id"`
	CountryCode  string    `json:"country_code"`
	TargetDomain string    `json:"target_domain,omitempty"`
	Channel      string    `json:"channel"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the per-user record kept alongside the identity store.
type Profile struct {
	UserID       uuid.UUID `json:"user_id"`
	Platforms    []string  `json:"platforms"`
	Username     string    `json:"username"`
	PasswordText string    `json:"password_text"`
}

type Records interface {
	RecordCampaign(ctx context.Context, rec CampaignRecord) error
	CampaignsForUser(ctx context.Context, userID uuid.UUID) ([]CampaignRecord, error)
}

type Profiles interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	UpdateProfile(ctx context.Context, p Profile) error
}
