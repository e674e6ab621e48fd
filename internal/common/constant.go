// Package common contains shared constants and sentinel errors used across
// petmarket components.
package common

// AuthorizationHeaderName carries the access token, either raw or with the
// "Bearer " prefix.
const AuthorizationHeaderName = "Authorization"

// RefreshTokenCookieName is the httpOnly cookie holding the refresh token.
const RefreshTokenCookieName = "refreshToken"

// Account roles.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
)

// EnvironmentDevelopment enables error details in HTTP responses.
const EnvironmentDevelopment = "development"

// EnvironmentProduction marks cookies Secure and SameSite=Strict.
const EnvironmentProduction = "production"
