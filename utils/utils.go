package utils

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// identityKey 是儲存在 context 中的呼叫者身分的鍵
type contextKey string

const identityKey contextKey = "identity"

// Identity 是身分邊界驗證後交給每個請求的三元組
type Identity struct {
	UserID      primitive.ObjectID
	DisplayName string
	Role        string
}

// WithIdentity 把呼叫者身分放進 context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext 從 context 中取出呼叫者身分
func IdentityFromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}, errors.New("identity not found in context")
	}
	return identity, nil
}

// GenerateJWT 為使用者簽發帶有 (userId, displayName, role) 的 token
func GenerateJWT(userID primitive.ObjectID, displayName, role, secret string) (string, error) {
	claims := jwt.MapClaims{
		"userId":      userID.Hex(),
		"displayName": displayName,
		"role":        role,
		"exp":         time.Now().Add(time.Hour * 24).Unix(), // Token 24 小時後過期
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.New("failed to sign token")
	}
	return tokenString, nil
}

// IdentityFromToken 驗證 JWT 並還原呼叫者身分
func IdentityFromToken(tokenString, secret string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token claims")
	}

	userIDStr, ok := claims["userId"].(string)
	if !ok {
		return Identity{}, errors.New("user ID not found in token claims")
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		return Identity{}, errors.New("invalid user ID format in token")
	}

	displayName, _ := claims["displayName"].(string)
	role, _ := claims["role"].(string)
	return Identity{UserID: userID, DisplayName: displayName, Role: role}, nil
}
