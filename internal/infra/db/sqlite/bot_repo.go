package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/repository"
)

// Compile-time checks
var (
	_ repository.BotRepository     = (*BotRepo)(nil)
	_ repository.ProcessRepository = (*BotRepo)(nil)
)

// SecretBox seals gateway credentials at rest. The bot token is bound to each
// sealed value so a credential cannot be replayed onto another bot's row.
type SecretBox interface {
	Seal(botToken, plaintext string) (string, error)
	Open(botToken, sealed string) (string, error)
}

const encPrefix = "enc:"

type botRow struct {
	Token          string     `gorm:"column:token;primaryKey"`
	UserID         int64      `gorm:"column:user_id"`
	BotID          int64      `gorm:"column:bot_id"`
	BotUsername    string     `gorm:"column:bot_username"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	IsActive       bool       `gorm:"column:is_active"`
	GatewayToken   *string    `gorm:"column:gateway_token"`
	LastActivity   *time.Time `gorm:"column:last_activity"`
	MPAccessToken  *string    `gorm:"column:mp_access_token"`
	MPRefreshToken *string    `gorm:"column:mp_refresh_token"`
	MPUserID       *string    `gorm:"column:mp_user_id"`
	GatewayType    string     `gorm:"column:gateway_type"`
	IsPublic       bool       `gorm:"column:is_public"`
}

func (botRow) TableName() string { return "bots" }

type processRow struct {
	Token string `gorm:"column:token;primaryKey"`
	PID   int    `gorm:"column:pid"`
}

func (processRow) TableName() string { return "bot_processes" }

// BotRepo implements the bot and process repositories on one SQLite file.
type BotRepo struct {
	db      *gorm.DB
	box     SecretBox
	backoff time.Duration
	now     func() time.Time
	log     *zerolog.Logger
}

// NewBotRepo wraps an opened store. box may be nil, in which case credentials
// are stored in clear.
func NewBotRepo(db *gorm.DB, backoff time.Duration, box SecretBox, logger *zerolog.Logger) *BotRepo {
	l := logger.With().Str("component", "BotRepo").Logger()
	if backoff <= 0 {
		backoff = time.Second
	}
	return &BotRepo{
		db:      db,
		box:     box,
		backoff: backoff,
		now:     func() time.Time { return time.Now().UTC() },
		log:     &l,
	}
}

// -----------------------------
// Registrations
// -----------------------------

func (r *BotRepo) Insert(ctx context.Context, b *model.BotRegistration) error {
	row, err := r.toRow(b)
	if err != nil {
		return err
	}
	return r.withRetry(ctx, "insert", insertAttempts, func() error {
		err := r.db.WithContext(ctx).Create(row).Error
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %s: %w", row.BotUsername, domain.ErrAlreadyExists)
		}
		return err
	})
}

func (r *BotRepo) Purge(ctx context.Context, token string) error {
	return r.withRetry(ctx, "purge", writeAttempts, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&botRow{}).Where("token = ?", token).Update("is_active", false).Error; err != nil {
				return err
			}
			if err := tx.Where("token = ?", token).Delete(&botRow{}).Error; err != nil {
				return err
			}
			return tx.Where("token = ?", token).Delete(&processRow{}).Error
		})
	})
}

// RemoveCompletely deletes both rows for token and verifies nothing is left.
// Lock contention is retried; exhaustion is reported, never swallowed.
func (r *BotRepo) RemoveCompletely(ctx context.Context, token string) error {
	return r.withRetry(ctx, "remove", writeAttempts, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("token = ?", token).Delete(&botRow{}).Error; err != nil {
				return err
			}
			if err := tx.Where("token = ?", token).Delete(&processRow{}).Error; err != nil {
				return err
			}
			var left int64
			if err := tx.Model(&botRow{}).Where("token = ?", token).Count(&left).Error; err != nil {
				return err
			}
			if left != 0 {
				return fmt.Errorf("remove: %d bot rows left for token", left)
			}
			return nil
		})
	})
}

func (r *BotRepo) FindByToken(ctx context.Context, token string) (*model.BotRegistration, error) {
	var row botRow
	err := r.db.WithContext(ctx).Where("token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.fromRow(&row)
}

func (r *BotRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.BotRegistration, error) {
	var rows []botRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.fromRows(rows)
}

func (r *BotRepo) ListActive(ctx context.Context) ([]*model.BotRegistration, error) {
	var rows []botRow
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.fromRows(rows)
}

func (r *BotRepo) ListInactive(ctx context.Context, thresholdMinutes int) ([]*model.BotRegistration, error) {
	threshold := r.now().Add(-time.Duration(thresholdMinutes) * time.Minute)
	var rows []botRow
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("((last_activity IS NULL AND created_at < ?) OR (last_activity < ?))", threshold, threshold).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.fromRows(rows)
}

func (r *BotRepo) GatewayCredential(ctx context.Context, token string) (model.GatewayKind, string, error) {
	b, err := r.FindByToken(ctx, token)
	if err != nil {
		return model.GatewayNone, "", err
	}
	cred, ok := b.Credential()
	if !ok {
		return b.Gateway, "", domain.ErrGatewayNotConfigured
	}
	return b.Gateway, cred, nil
}

func (r *BotRepo) SetPushInPayToken(ctx context.Context, token, gatewayToken string) error {
	sealed, err := r.seal(token, gatewayToken)
	if err != nil {
		return err
	}
	return r.update(ctx, "set_pushinpay_token", token, map[string]any{"gateway_token": sealed})
}

func (r *BotRepo) SetMercadoPagoCredential(ctx context.Context, token string, cred model.MercadoPagoCredential) error {
	access, err := r.seal(token, cred.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.seal(token, cred.RefreshToken)
	if err != nil {
		return err
	}
	return r.update(ctx, "set_mp_credential", token, map[string]any{
		"mp_access_token":  access,
		"mp_refresh_token": refresh,
		"mp_user_id":       cred.UserID,
		"gateway_type":     string(model.GatewayMercadoPago),
	})
}

func (r *BotRepo) SetGatewayKind(ctx context.Context, token string, kind model.GatewayKind) error {
	return r.update(ctx, "set_gateway_kind", token, map[string]any{"gateway_type": string(kind)})
}

func (r *BotRepo) SetPublicAccess(ctx context.Context, token string, public bool) error {
	return r.update(ctx, "set_public_access", token, map[string]any{"is_public": public})
}

func (r *BotRepo) TouchActivity(ctx context.Context, token string) error {
	return r.update(ctx, "touch_activity", token, map[string]any{"last_activity": r.now()})
}

func (r *BotRepo) Deactivate(ctx context.Context, token string) error {
	return r.update(ctx, "deactivate", token, map[string]any{"is_active": false})
}

func (r *BotRepo) Compact(ctx context.Context) error {
	return r.withRetry(ctx, "vacuum", writeAttempts, func() error {
		return r.db.WithContext(ctx).Exec("VACUUM").Error
	})
}

// update applies a single-row update; zero rows affected means the token is unknown.
func (r *BotRepo) update(ctx context.Context, op, token string, cols map[string]any) error {
	return r.withRetry(ctx, op, writeAttempts, func() error {
		res := r.db.WithContext(ctx).Model(&botRow{}).Where("token = ?", token).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return nil
	})
}

// -----------------------------
// Processes
// -----------------------------

func (r *BotRepo) SaveProcess(ctx context.Context, rec model.ProcessRecord) error {
	return r.withRetry(ctx, "save_process", writeAttempts, func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"pid"}),
		}).Create(&processRow{Token: rec.Token, PID: rec.PID}).Error
	})
}

func (r *BotRepo) FindProcess(ctx context.Context, token string) (*model.ProcessRecord, error) {
	var row processRow
	err := r.db.WithContext(ctx).Where("token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model.ProcessRecord{Token: row.Token, PID: row.PID}, nil
}

func (r *BotRepo) DeleteProcess(ctx context.Context, token string) error {
	return r.withRetry(ctx, "delete_process", writeAttempts, func() error {
		return r.db.WithContext(ctx).Where("token = ?", token).Delete(&processRow{}).Error
	})
}

func (r *BotRepo) ClearProcesses(ctx context.Context) error {
	return r.withRetry(ctx, "clear_processes", writeAttempts, func() error {
		return r.db.WithContext(ctx).Exec("DELETE FROM bot_processes").Error
	})
}

// -----------------------------
// Mapping
// -----------------------------

func (r *BotRepo) toRow(b *model.BotRegistration) (*botRow, error) {
	kind := b.Gateway
	if kind == "" {
		kind = model.GatewayPushInPay
	}
	row := &botRow{
		Token:       b.Token,
		UserID:      b.OwnerID,
		BotID:       b.BotID,
		BotUsername: b.BotUsername,
		CreatedAt:   b.CreatedAt.UTC(),
		IsActive:    b.IsActive,
		GatewayType: string(kind),
		IsPublic:    b.IsPublic,
	}
	if b.LastActivity != nil {
		t := b.LastActivity.UTC()
		row.LastActivity = &t
	}
	var err error
	if row.GatewayToken, err = r.sealPtr(b.Token, b.PushInPayToken); err != nil {
		return nil, err
	}
	if row.MPAccessToken, err = r.sealPtr(b.Token, b.MercadoPago.AccessToken); err != nil {
		return nil, err
	}
	if row.MPRefreshToken, err = r.sealPtr(b.Token, b.MercadoPago.RefreshToken); err != nil {
		return nil, err
	}
	if b.MercadoPago.UserID != "" {
		v := b.MercadoPago.UserID
		row.MPUserID = &v
	}
	return row, nil
}

func (r *BotRepo) fromRow(row *botRow) (*model.BotRegistration, error) {
	b := &model.BotRegistration{
		Token:        row.Token,
		OwnerID:      row.UserID,
		BotID:        row.BotID,
		BotUsername:  row.BotUsername,
		CreatedAt:    row.CreatedAt.UTC(),
		IsActive:     row.IsActive,
		LastActivity: row.LastActivity,
		IsPublic:     row.IsPublic,
		Gateway:      model.ParseGatewayKind(row.GatewayType),
	}
	var err error
	if b.PushInPayToken, err = r.open(row.Token, deref(row.GatewayToken)); err != nil {
		return nil, err
	}
	if b.MercadoPago.AccessToken, err = r.open(row.Token, deref(row.MPAccessToken)); err != nil {
		return nil, err
	}
	if b.MercadoPago.RefreshToken, err = r.open(row.Token, deref(row.MPRefreshToken)); err != nil {
		return nil, err
	}
	b.MercadoPago.UserID = deref(row.MPUserID)
	return b, nil
}

func (r *BotRepo) fromRows(rows []botRow) ([]*model.BotRegistration, error) {
	out := make([]*model.BotRegistration, 0, len(rows))
	for i := range rows {
		b, err := r.fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *BotRepo) seal(botToken, plain string) (string, error) {
	if r.box == nil || plain == "" {
		return plain, nil
	}
	ct, err := r.box.Seal(botToken, plain)
	if err != nil {
		return "", fmt.Errorf("encrypt credential: %w", err)
	}
	return encPrefix + ct, nil
}

func (r *BotRepo) sealPtr(botToken, plain string) (*string, error) {
	if plain == "" {
		return nil, nil
	}
	s, err := r.seal(botToken, plain)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// open decrypts values written by seal. Values without the prefix predate
// encryption and are returned as is.
func (r *BotRepo) open(botToken, stored string) (string, error) {
	if !strings.HasPrefix(stored, encPrefix) {
		return stored, nil
	}
	if r.box == nil {
		return "", errors.New("encrypted credential found but no encryption key configured")
	}
	pt, err := r.box.Open(botToken, strings.TrimPrefix(stored, encPrefix))
	if err != nil {
		return "", fmt.Errorf("decrypt credential: %w", err)
	}
	return pt, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed: bots.token")
}
