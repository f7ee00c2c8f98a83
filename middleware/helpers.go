package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// Имена JWT claims, выпускаемых сервисом аккаунтов
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

var errNoActor = errors.New("authenticated user not found in context")

// actorFromClaims validates the user id and role claims of a verified token.
func actorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	userID, err := userIDClaim(claims)
	if err != nil {
		return models.Actor{}, err
	}
	role, err := roleClaim(claims)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{UserID: userID, Role: role}, nil
}

func userIDClaim(claims jwt.MapClaims) (int, error) {
	raw, ok := claims[jwtClaimUserID]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	var userID int
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, v)
		}
		userID = int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("'%s' claim is not an integer: %q", jwtClaimUserID, v)
		}
		userID = n
	default:
		return 0, fmt.Errorf("invalid type for '%s' claim: expected number or string, got %T", jwtClaimUserID, raw)
	}

	if userID <= 0 {
		return 0, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, userID)
	}
	return userID, nil
}

func roleClaim(claims jwt.MapClaims) (models.UserRole, error) {
	raw, ok := claims[jwtClaimRole]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimRole)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimRole, raw)
	}

	role := models.UserRole(s)
	switch role {
	case models.RoleAdmin, models.RoleOrganizer, models.RoleReferee:
		return role, nil
	}
	return "", fmt.Errorf("invalid role value in claim: %q", s)
}

// WithActor returns ctx carrying actor, as Authenticate stores it.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// GetActorFromContext returns the caller stored by Authenticate.
func GetActorFromContext(ctx context.Context) (models.Actor, error) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	if !ok {
		return models.Actor{}, errNoActor
	}
	return actor, nil
}
