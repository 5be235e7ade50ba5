package apiclient

import (
	"fmt"

	"github.com/papercomputeco/chatrelay/pkg/credentials"
)

// NewFromCredentials returns a client for target using the token stored for
// it in the credentials file under configDir, or CHATRELAY_TOKEN when set.
func NewFromCredentials(configDir, target string, opts ...Option) (*Client, error) {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	token, err := mgr.GetToken(target)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no access token for %s: run 'chatrelay auth --api-target %s' or set %s",
			target, target, credentials.TokenEnvVar)
	}

	return New(target, token, opts...), nil
}
