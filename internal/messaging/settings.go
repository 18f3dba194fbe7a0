package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/reislab/travel-platform/pkg/logging"
)

// BrandSettings are the Twilio WhatsApp credentials for one brand. The
// row with a NULL brand_id is the shared system account brands fall
// back to.
type BrandSettings struct {
	AccountSID     string `json:"account_sid"`
	AuthToken      string `json:"auth_token"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SettingsStore reads brand WhatsApp credentials from Postgres.
type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetBrand returns the settings row for a brand, or (nil, nil).
func (s *SettingsStore) GetBrand(ctx context.Context, brandID uuid.UUID) (*BrandSettings, error) {
	return s.get(ctx, `
		SELECT account_sid, auth_token, whatsapp_number
		FROM brand_whatsapp_settings
		WHERE brand_id = $1`, brandID)
}

// GetSystem returns the shared fallback row, or (nil, nil).
func (s *SettingsStore) GetSystem(ctx context.Context) (*BrandSettings, error) {
	return s.get(ctx, `
		SELECT account_sid, auth_token, whatsapp_number
		FROM brand_whatsapp_settings
		WHERE brand_id IS NULL`)
}

func (s *SettingsStore) get(ctx context.Context, query string, args ...any) (*BrandSettings, error) {
	var bs BrandSettings
	err := s.db.QueryRow(ctx, query, args...).Scan(&bs.AccountSID, &bs.AuthToken, &bs.WhatsAppNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("messaging: load whatsapp settings: %w", err)
	}
	return &bs, nil
}

// Upsert writes credentials for a brand; a nil brandID writes the
// system fallback row.
func (s *SettingsStore) Upsert(ctx context.Context, brandID *uuid.UUID, bs *BrandSettings) error {
	var err error
	if brandID == nil {
		_, err = s.db.Exec(ctx, `
			INSERT INTO brand_whatsapp_settings (id, brand_id, account_sid, auth_token, whatsapp_number, created_at, updated_at)
			VALUES ($1, NULL, $2, $3, $4, now(), now())
			ON CONFLICT (brand_id) DO UPDATE SET account_sid = EXCLUDED.account_sid,
				auth_token = EXCLUDED.auth_token,
				whatsapp_number = EXCLUDED.whatsapp_number,
				updated_at = now()`,
			uuid.New(), bs.AccountSID, bs.AuthToken, bs.WhatsAppNumber)
	} else {
		_, err = s.db.Exec(ctx, `
			INSERT INTO brand_whatsapp_settings (id, brand_id, account_sid, auth_token, whatsapp_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (brand_id) DO UPDATE SET account_sid = EXCLUDED.account_sid,
				auth_token = EXCLUDED.auth_token,
				whatsapp_number = EXCLUDED.whatsapp_number,
				updated_at = now()`,
			uuid.New(), *brandID, bs.AccountSID, bs.AuthToken, bs.WhatsAppNumber)
	}
	if err != nil {
		return fmt.Errorf("messaging: upsert whatsapp settings: %w", err)
	}
	return nil
}

// SettingsResolver picks the credentials to use for a brand: the brand's
// own row, then the system row, then the static defaults from config.
// Results are cached in Redis because the dispatcher resolves settings
// for every message in a batch.
type SettingsResolver struct {
	store    *SettingsStore
	redis    *redis.Client
	fallback BrandSettings
	ttl      time.Duration
	logger   *logging.Logger
}

func NewSettingsResolver(store *SettingsStore, redisClient *redis.Client, fallback BrandSettings, ttl time.Duration, logger *logging.Logger) *SettingsResolver {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SettingsResolver{store: store, redis: redisClient, fallback: fallback, ttl: ttl, logger: logger}
}

func (r *SettingsResolver) key(brandID uuid.UUID) string {
	return fmt.Sprintf("whatsapp:settings:%s", brandID)
}

// Resolve returns usable credentials for the brand or an error when no
// row and no fallback has an account SID.
func (r *SettingsResolver) Resolve(ctx context.Context, brandID uuid.UUID) (*BrandSettings, error) {
	if r.redis != nil {
		data, err := r.redis.Get(ctx, r.key(brandID)).Bytes()
		if err == nil {
			var bs BrandSettings
			if jsonErr := json.Unmarshal(data, &bs); jsonErr == nil {
				return &bs, nil
			}
		} else if err != redis.Nil {
			r.logger.Warn("settings cache read failed", "brand_id", brandID, "error", err)
		}
	}

	bs, err := r.lookup(ctx, brandID)
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, jsonErr := json.Marshal(bs); jsonErr == nil {
			if err := r.redis.Set(ctx, r.key(brandID), data, r.ttl).Err(); err != nil {
				r.logger.Warn("settings cache write failed", "brand_id", brandID, "error", err)
			}
		}
	}
	return bs, nil
}

func (r *SettingsResolver) lookup(ctx context.Context, brandID uuid.UUID) (*BrandSettings, error) {
	if r.store != nil {
		bs, err := r.store.GetBrand(ctx, brandID)
		if err != nil {
			return nil, err
		}
		if bs != nil && bs.AccountSID != "" {
			return bs, nil
		}
		bs, err = r.store.GetSystem(ctx)
		if err != nil {
			return nil, err
		}
		if bs != nil && bs.AccountSID != "" {
			return bs, nil
		}
	}
	if r.fallback.AccountSID == "" {
		return nil, fmt.Errorf("messaging: no whatsapp credentials for brand %s", brandID)
	}
	fb := r.fallback
	return &fb, nil
}

// Invalidate drops the cached settings for a brand after an update.
func (r *SettingsResolver) Invalidate(ctx context.Context, brandID uuid.UUID) error {
	if r.redis == nil {
		return nil
	}
	if err := r.redis.Del(ctx, r.key(brandID)).Err(); err != nil {
		return fmt.Errorf("messaging: invalidate settings cache: %w", err)
	}
	return nil
}
