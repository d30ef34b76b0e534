package auth

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// Environment variables for authentication
	EnvClientID     = "FALCON_CLIENT_ID"
	EnvClientSecret = "FALCON_CLIENT_SECRET"
	EnvMemberCID    = "FALCON_MEMBER_CID"
)

// Errors related to authentication
var (
	ErrMissingClientID     = errors.New("no Falcon API client ID found, set the FALCON_CLIENT_ID environment variable")
	ErrMissingClientSecret = errors.New("no Falcon API client secret found, set the FALCON_CLIENT_SECRET environment variable")
)

// CredentialInfo contains the OAuth2 client credentials for the Falcon API
type CredentialInfo struct {
	ClientID     string
	ClientSecret string
	MemberCID    string // Optional, only for parent CIDs acting on a child
}

// Validate checks that both required credential values are present
func (c *CredentialInfo) Validate() error {
	if c == nil || strings.TrimSpace(c.ClientID) == "" {
		return ErrMissingClientID
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return ErrMissingClientSecret
	}
	return nil
}

// Masked returns the client ID with all but the last four characters hidden.
func (c *CredentialInfo) Masked() string {
	return Mask(c.ClientID)
}

// Mask hides all but the last four characters of a secret value
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

// GetCredentials extracts authentication information from the environment
func GetCredentials() (*CredentialInfo, error) {
	creds := &CredentialInfo{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		MemberCID:    os.Getenv(EnvMemberCID),
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// CheckTokenScope returns a hint when an API error looks like a missing API scope
func CheckTokenScope(errorMsg string) string {
	lower := strings.ToLower(errorMsg)
	if strings.Contains(lower, "access denied") || strings.Contains(lower, "authorization failed") {
		return `Your API client may not have the correct scopes. For:
- Querying hosts: grant "Hosts: Read"
- Hiding or restoring hosts: grant "Hosts: Write"`
	}
	return ""
}
