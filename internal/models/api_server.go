package models

// APIServer serves the operational HTTP endpoints.
type APIServer interface {
	// Start blocks serving requests until Shutdown is called.
	Start()
	Shutdown() error
}
