package credentials

// Credentials represents the stored access tokens in credentials.toml.
type Credentials struct {
	Version int                         `toml:"version"`
	Servers map[string]ServerCredential `toml:"servers"`
}

// ServerCredential holds the bearer token used against one chatrelay server.
type ServerCredential struct {
	Token string `toml:"token"`
}
