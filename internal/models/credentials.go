// internal/models/credentials.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const redactedSecret = "[REDACTED]"

// Credentials are the connection parameters for the remote financial system.
// They live only in process memory for the duration of one session.
type Credentials struct {
	Host   string `json:"host"`
	Tenant string `json:"tenant"`
	User   string `json:"user"`
	Secret string `json:"secret"`
}

// Complete reports whether every field is populated.
func (c Credentials) Complete() bool {
	return c.Missing() == nil
}

// Missing lists the names of empty fields.
func (c Credentials) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(c.Tenant) == "" {
		missing = append(missing, "tenant")
	}
	if strings.TrimSpace(c.User) == "" {
		missing = append(missing, "user")
	}
	if c.Secret == "" {
		missing = append(missing, "secret")
	}
	return missing
}

// Validate returns an error naming the missing fields.
func (c Credentials) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing credential fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Redact replaces every occurrence of the secret in s.
func (c Credentials) Redact(s string) string {
	if c.Secret == "" {
		return s
	}
	return strings.ReplaceAll(s, c.Secret, redactedSecret)
}

// LogFields is the logger-safe view of the credentials.
func (c Credentials) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"host":      c.Host,
		"tenant":    c.Tenant,
		"user":      c.User,
		"hasSecret": c.Secret != "",
	}
}

func (c Credentials) String() string {
	secret := ""
	if c.Secret != "" {
		secret = redactedSecret
	}
	return fmt.Sprintf("Credentials{Host:%s Tenant:%s User:%s Secret:%s}", c.Host, c.Tenant, c.User, secret)
}

func (c Credentials) GoString() string {
	return c.String()
}

// MarshalJSON never emits the secret.
func (c Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"host":       c.Host,
		"tenant":     c.Tenant,
		"user":       c.User,
		"configured": c.Complete(),
	})
}
