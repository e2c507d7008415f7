// Package permission maps named permissions to bits and roles to 64-bit
// masks. Roles are registered once at startup and frozen; access tokens
// carry the role's mask so route guards can check permissions without a
// database round trip.
package permission
