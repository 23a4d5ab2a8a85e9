// Package mocks provides mock implementations of the academy's persistence ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/ports.
// The mocks provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	profiles := mocks.NewMockProfileStore(ctrl)
//	profiles.EXPECT().Get(gomock.Any(), "user-1").Return(profile, nil)
package mocks

// ProfileStore: Get, GetByEmail, Upsert, RecordLogin, SetRole
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_store_mock.go github.com/novakinetix/academy/internal/ports ProfileStore

// ActivityStore: Record, ListByUser
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=activity_store_mock.go github.com/novakinetix/academy/internal/ports ActivityStore

// SessionStore: Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/novakinetix/academy/internal/ports SessionStore

// CredentialStore: GetByEmail, Create
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/novakinetix/academy/internal/ports CredentialStore
