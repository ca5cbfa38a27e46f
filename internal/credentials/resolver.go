package credentials

import (
	"context"
	stderrors "errors"
	"log/slog"

	"snowadmin/pkg/errors"
)

// SecretSource returns the plain-text value of a named vault secret.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Resolver turns secret names into a Bundle.
type Resolver struct {
	source SecretSource
	logger *slog.Logger
}

// NewResolver creates a resolver reading from source.
func NewResolver(source SecretSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, logger: logger}
}

// Resolve fetches every secret in names, one vault call each and in a fixed
// order, and builds the bundle. The first failed lookup aborts with a
// SecretNotFound error; an undecodable key aborts with a KeyParseError. No
// partial bundle is ever returned and nothing is cached between calls.
func (r *Resolver) Resolve(ctx context.Context, names SecretNames) (*Bundle, error) {
	if err := names.Validate(); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "retrieving snowflake credentials from vault")

	account, err := r.fetch(ctx, names.Account)
	if err != nil {
		return nil, err
	}
	user, err := r.fetch(ctx, names.User)
	if err != nil {
		return nil, err
	}
	warehouse, err := r.fetch(ctx, names.Warehouse)
	if err != nil {
		return nil, err
	}
	role, err := r.fetch(ctx, names.Role)
	if err != nil {
		return nil, err
	}
	rawKey, err := r.fetch(ctx, names.PrivateKey)
	if err != nil {
		return nil, err
	}

	key, err := decodeSecretKey(rawKey)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			appErr.WithContext("secret", names.PrivateKey)
		}
		return nil, err
	}

	r.logger.InfoContext(ctx, "resolved snowflake credentials",
		slog.String("account", account),
		slog.String("user", user),
		slog.String("warehouse", warehouse),
		slog.String("role", role))

	return NewBundle(account, user, warehouse, role, key), nil
}

func (r *Resolver) fetch(ctx context.Context, name string) (string, error) {
	value, err := r.source.GetSecret(ctx, name)
	if err != nil {
		return "", errors.SecretNotFound(name, err)
	}
	if value == "" {
		return "", errors.SecretNotFound(name, nil)
	}
	r.logger.DebugContext(ctx, "fetched secret", slog.String("secret", name))
	return value, nil
}

// decodeSecretKey applies the normalization procedure and returns the bytes
// the bundle stores.
func decodeSecretKey(raw string) ([]byte, error) {
	data, form := normalize(raw)
	switch form {
	case formPEM:
		return DecodePrivateKey(data)
	case formMalformed:
		return parseDER(data)
	default:
		return data, nil
	}
}
