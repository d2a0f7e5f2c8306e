package mpesa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stationpay/mpesa-gateway/app/models"
	"github.com/stationpay/mpesa-gateway/internal/pkg/env"
	"gorm.io/gorm"
)

// ErrNotConfigured is returned when neither station overrides nor process
// defaults yield a usable credential set. Fatal for the request, not the
// process.
var ErrNotConfigured = errors.New("m-pesa credentials are not configured")

// Credentials is the active credential set for one request.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	TillNumber     string
	CallbackURL    string
}

// CacheKey identifies the token-cache slot these credentials map to.
// Stations without overrides share the default slot.
func (c *Credentials) CacheKey(stationID *uint) string {
	if stationID == nil {
		return "default"
	}
	return fmt.Sprintf("station:%d", *stationID)
}

// StationSource resolves station credential overrides.
type StationSource interface {
	GetActiveByID(id uint) (*models.Station, error)
}

// CredentialResolver produces the credential set for a request: the station's
// non-empty overrides layered over the MPESA_* environment defaults.
type CredentialResolver struct {
	stations StationSource
}

// NewCredentialResolver creates a resolver; stations may be nil for
// deployments without per-station credentials.
func NewCredentialResolver(stations StationSource) *CredentialResolver {
	return &CredentialResolver{stations: stations}
}

func (r *CredentialResolver) Resolve(ctx context.Context, stationID *uint) (*Credentials, error) {
	_ = ctx
	creds := &Credentials{
		ConsumerKey:    strings.TrimSpace(env.GetEnv("MPESA_CONSUMER_KEY", "")),
		ConsumerSecret: strings.TrimSpace(env.GetEnv("MPESA_CONSUMER_SECRET", "")),
		ShortCode:      strings.TrimSpace(env.GetEnv("MPESA_SHORTCODE", "")),
		PassKey:        strings.TrimSpace(env.GetEnv("MPESA_PASSKEY", "")),
		TillNumber:     strings.TrimSpace(env.GetEnv("MPESA_TILL_NUMBER", "")),
		CallbackURL:    strings.TrimSpace(env.GetEnv("MPESA_CALLBACK_URL", "")),
	}

	if stationID != nil && r.stations != nil {
		station, err := r.stations.GetActiveByID(*stationID)
		switch {
		case err == nil:
			applyStationOverrides(creds, station)
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Inactive or unknown station falls back to defaults.
		default:
			// A flaky lookup must not block payments; defaults still work.
			log.Warnf("[M-Pesa] station %d credential lookup failed: %v", *stationID, err)
		}
	}

	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" || creds.ShortCode == "" || creds.PassKey == "" {
		return nil, ErrNotConfigured
	}
	if creds.TillNumber == "" {
		creds.TillNumber = creds.ShortCode
	}
	return creds, nil
}

func applyStationOverrides(creds *Credentials, station *models.Station) {
	if v := strings.TrimSpace(station.MpesaConsumerKey); v != "" {
		creds.ConsumerKey = v
	}
	if v := strings.TrimSpace(station.MpesaConsumerSecret); v != "" {
		creds.ConsumerSecret = v
	}
	if v := strings.TrimSpace(station.MpesaShortCode); v != "" {
		creds.ShortCode = v
	}
	if v := strings.TrimSpace(station.MpesaPassKey); v != "" {
		creds.PassKey = v
	}
	if v := strings.TrimSpace(station.MpesaTillNumber); v != "" {
		creds.TillNumber = v
	}
}
