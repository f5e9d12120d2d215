package handler

import (
	"parley/internal/app/chat"
	"parley/internal/app/store"
	"parley/internal/configs"
)

// AppDeps bundles the collaborators the HTTP and WebSocket handlers need.
// The realtime fields are interfaces so tests can inject fakes without a
// database or broker.
type AppDeps struct {
	Config *configs.AppConfig

	// Store backs the REST surface (accounts, conversations, history).
	Store *store.Store

	// Realtime core collaborators.
	Registry   *chat.Registry
	Bus        chat.Bus
	Pipeline   chat.Ingestor
	Membership chat.Store
	Verifier   chat.CredentialVerifier
}
