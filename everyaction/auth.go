// ABOUTME: HTTP Basic credentials for the EveryAction API
// ABOUTME: Appends the database-mode suffix to API keys and redacts secrets in logs
package everyaction

import (
	"net/http"
	"strings"
)

// credentials holds the application name and API key; read-only after construction.
type credentials struct {
	username string
	password string
}

// newCredentials builds credentials, defaulting the key to database mode 0
// (VoterFile) unless it already carries a |0 or |1 suffix.
func newCredentials(appName, apiKey string) credentials {
	if !strings.HasSuffix(apiKey, "|0") && !strings.HasSuffix(apiKey, "|1") {
		apiKey += "|0"
	}
	return credentials{username: appName, password: apiKey}
}

func (c credentials) apply(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
}

func (c credentials) String() string {
	return "credentials{app_name=" + c.username + ", api_key=[redacted]}"
}

// redactHeaders copies h with the Authorization value masked.
func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			out[k] = "[redacted]"
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}
