// Package pg implementa ConfigProvider sobre Postgres (pgxpool).
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	sec "github.com/dropDatabas3/authgate/internal/security/secretbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implementa cp.ConfigProvider con un pool pgx.
type Store struct {
	pool *pgxpool.Pool

	// queryTimeout acota cada read; vencido el plazo se reporta
	// ErrStoreUnavailable en lugar de bloquear al caller.
	queryTimeout time.Duration
}

// Config tuning del pool.
type Config struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	qt := cfg.QueryTimeout
	if qt <= 0 {
		qt = 3 * time.Second
	}
	return &Store{pool: pool, queryTimeout: qt}, nil
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Pool expone el pool interno (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

const regColumns = `provider_id, client_id, secret_enc, authorization_uri, token_uri, scopes, redirect_uri_template, use_pkce, additional_params, updated_at`

func scanRegistration(row pgx.Row) (*cp.Registration, error) {
	var (
		r          cp.Registration
		paramsJSON []byte
	)
	err := row.Scan(
		&r.ProviderID, &r.ClientID, &r.SecretEnc, &r.AuthorizationURI, &r.TokenURI,
		&r.Scopes, &r.RedirectURITemplate, &r.UsePKCE, &paramsJSON, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &r.AdditionalParams); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (s *Store) GetRegistration(ctx context.Context, tenantSlug, providerID string) (*cp.Registration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM oauth_registrations
		 WHERE tenant_slug = $1 AND lower(provider_id) = lower($2)`,
		tenantSlug, providerID)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cp.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return reg, nil
}

func (s *Store) ListRegistrations(ctx context.Context, tenantSlug string) ([]cp.Registration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+regColumns+` FROM oauth_registrations WHERE tenant_slug = $1`,
		tenantSlug)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []cp.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
		}
		out = append(out, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

func (s *Store) UpsertRegistration(ctx context.Context, tenantSlug string, in cp.RegistrationInput) (*cp.Registration, error) {
	if err := cp.ValidateInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tmpl := strings.TrimSpace(in.RedirectURITemplate)
	if tmpl == "" {
		tmpl = cp.DefaultRedirectURITemplate
	}
	var secretEnc string
	if in.Secret != "" {
		enc, err := sec.Encrypt(in.Secret)
		if err != nil {
			return nil, fmt.Errorf("encrypt secret: %w", err)
		}
		secretEnc = enc
	}
	var paramsJSON []byte
	if len(in.AdditionalParams) > 0 {
		paramsJSON, _ = json.Marshal(in.AdditionalParams)
	}

	// COALESCE(NULLIF(...)) conserva el secret existente cuando no viene uno nuevo
	row := s.pool.QueryRow(ctx,
		`INSERT INTO oauth_registrations
		   (tenant_slug, provider_id, client_id, secret_enc, authorization_uri, token_uri,
		    scopes, redirect_uri_template, use_pkce, additional_params, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		 ON CONFLICT (tenant_slug, provider_id) DO UPDATE SET
		   client_id = EXCLUDED.client_id,
		   secret_enc = COALESCE(NULLIF(EXCLUDED.secret_enc, ''), oauth_registrations.secret_enc),
		   authorization_uri = EXCLUDED.authorization_uri,
		   token_uri = EXCLUDED.token_uri,
		   scopes = EXCLUDED.scopes,
		   redirect_uri_template = EXCLUDED.redirect_uri_template,
		   use_pkce = EXCLUDED.use_pkce,
		   additional_params = EXCLUDED.additional_params,
		   updated_at = now()
		 RETURNING `+regColumns,
		tenantSlug, strings.TrimSpace(in.ProviderID), strings.TrimSpace(in.ClientID), secretEnc,
		strings.TrimSpace(in.AuthorizationURI), strings.TrimSpace(in.TokenURI),
		in.Scopes, tmpl, in.UsePKCE, paramsJSON)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return reg, nil
}

func (s *Store) DeleteRegistration(ctx context.Context, tenantSlug, providerID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM oauth_registrations WHERE tenant_slug = $1 AND lower(provider_id) = lower($2)`,
		tenantSlug, providerID)
	if err != nil {
		return fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return cp.ErrRegistrationNotFound
	}
	return nil
}

func (s *Store) DecryptClientSecret(ctx context.Context, tenantSlug, providerID string) (string, error) {
	reg, err := s.GetRegistration(ctx, tenantSlug, providerID)
	if err != nil {
		return "", err
	}
	if reg.SecretEnc == "" {
		return "", nil
	}
	return sec.Decrypt(reg.SecretEnc)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return nil
}
