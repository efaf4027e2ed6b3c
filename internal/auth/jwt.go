// Package auth issues and checks the bearer tokens devices present
// when opening a relay connection.
package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "lumina-host"
	tokenLifetime = 24 * time.Hour
)

// JWTClaims is the claim set carried by device tokens.
type JWTClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"` // "device" is the only role issued today
	jwt.RegisteredClaims
}

// jwtSecret signs device tokens. LUMINA_JWT_SECRET must be set in
// production; the fallback only exists so local runs work out of the box.
var jwtSecret = loadSecret()

func loadSecret() []byte {
	if secret := os.Getenv("LUMINA_JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("lumina-dev-secret")
}

// GenerateDeviceToken issues a signed token the device uses until it
// expires a day later.
func GenerateDeviceToken(deviceID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		DeviceID: deviceID,
		Role:     "device",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	})
	return token.SignedString(jwtSecret)
}

// ValidateToken parses and verifies a device token, rejecting any
// signing method other than the one we issue with.
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
