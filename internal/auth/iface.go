package auth

// Provider is the authentication interface used by the REST client and the
// gateway manager. *TokenProvider satisfies this interface.
type Provider interface {
	AuthToken() string
	GetAuthHeaders() map[string]string
}
