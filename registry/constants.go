package registry

// Constants are scalar configuration values produced by one-shot startup actions
// and consumed by request handling.
type Constants struct {
	// PublicURL is the externally reachable base URL of the service.
	PublicURL string
	// SecretKey signs and verifies request credentials.
	SecretKey string
}

// ConstantsKey is where startup actions store Constants.
var ConstantsKey = NewKey[Constants]("constants")
