package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const issuer = "genmedia-studio"

// DeviceClaims identify one anonymous device. Subject is the device id.
type DeviceClaims struct {
	jwt.RegisteredClaims
}

// DeviceIdentity mints and renews the anonymous per-device token that
// scopes the remote document collections.
type DeviceIdentity struct {
	store  repository.LocalStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zerolog.Logger
}

func NewDeviceIdentity(store repository.LocalStore, secret string, ttl time.Duration, logger *zerolog.Logger) *DeviceIdentity {
	return &DeviceIdentity{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    logging.Component(logger, "DeviceIdentity"),
	}
}

// Ensure returns the device id, minting a token on first use and renewing
// an expired one under the same id.
func (d *DeviceIdentity) Ensure(ctx context.Context) (string, error) {
	secret, err := d.signingSecret(ctx)
	if err != nil {
		return "", err
	}

	raw, err := d.store.Get(ctx, repository.KeyDeviceToken)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return d.mint(ctx, secret, uuid.NewString())
	case err != nil:
		return "", err
	}

	claims := &DeviceClaims{}
	_, err = jwt.ParseWithClaims(string(raw), claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	switch {
	case err == nil && claims.Subject != "":
		return claims.Subject, nil
	case errors.Is(err, jwt.ErrTokenExpired) && claims.Subject != "":
		d.log.Info().Str("device_id", claims.Subject).Msg("device token expired, renewing")
		return d.mint(ctx, secret, claims.Subject)
	default:
		d.log.Warn().Err(err).Msg("device token unusable, minting a new identity")
		return d.mint(ctx, secret, uuid.NewString())
	}
}

func (d *DeviceIdentity) mint(ctx context.Context, secret []byte, deviceID string) (string, error) {
	now := d.now()
	claims := DeviceClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d.ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}
	if err := d.store.Set(ctx, repository.KeyDeviceToken, []byte(signed)); err != nil {
		return "", err
	}
	d.log.Debug().Str("device_id", deviceID).Msg("device token minted")
	return deviceID, nil
}

// signingSecret uses the configured secret or a random one kept on the device.
func (d *DeviceIdentity) signingSecret(ctx context.Context) ([]byte, error) {
	if len(d.secret) > 0 {
		return d.secret, nil
	}
	raw, err := d.store.Get(ctx, repository.KeyDeviceSecret)
	if err == nil && len(raw) > 0 {
		return raw, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	secret := []byte(hex.EncodeToString(buf))
	if err := d.store.Set(ctx, repository.KeyDeviceSecret, secret); err != nil {
		return nil, err
	}
	return secret, nil
}
