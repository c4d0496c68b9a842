package catalog

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
)

// ErrPlayerNotFound reports the provider recognized the request but
// could not resolve the player id.
var ErrPlayerNotFound = errors.New("player not found")

type nicknameAPI interface {
	Nickname(ctx context.Context, code, target, zone string) (string, error)
}

// Validator checks player ids against the provider's nickname lookup.
type Validator struct {
	api nicknameAPI
}

func NewValidator(api nicknameAPI) *Validator {
	return &Validator{api: api}
}

// ValidatePlayer resolves the in-game nickname for a player id. It
// returns ErrPlayerNotFound when the provider rejects the id itself;
// any other error means the lookup could not be completed and the
// caller decides whether to proceed without a nickname.
func (v *Validator) ValidatePlayer(ctx context.Context, validationCode, playerID, zoneID string) (string, error) {
	nickname, err := v.api.Nickname(ctx, validationCode, playerID, zoneID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !providerIssue(apiErr.Message) {
			logger.Debug(ctx, "catalog", "validate.not_found",
				slog.String("game", validationCode),
				slog.String("message", logger.SanitizeLimit(apiErr.Message, 128)),
			)
			return "", ErrPlayerNotFound
		}
		return "", err
	}
	if nickname == "" {
		return "", ErrPlayerNotFound
	}
	return nickname, nil
}

// providerIssue reports whether a rejection message points at provider
// or account trouble rather than a bad player id. Those must not be
// shown to the user as "id not found".
func providerIssue(message string) bool {
	msg := strings.ToLower(message)
	markers := []string{
		"maintenance", "gangguan", "limit", "sign", "key",
		"ip", "suspend", "saldo", "unauthorized",
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
