package query

const (
	HeaderApplicationID = "X-Parse-Application-Id"
	HeaderAPIKey        = "X-Parse-REST-API-Key"
	HeaderSessionToken  = "X-Parse-Session-Token"
)

// RequiredHeaders returns the headers every request must carry. The
// session header is only present when sessionToken is non-empty.
func RequiredHeaders(applicationID, apiKey, sessionToken string) (map[string]string, error) {
	if applicationID == "" {
		return nil, invalid("applicationId", "must be specified")
	}
	if apiKey == "" {
		return nil, invalid("apiKey", "must be specified")
	}

	headers := map[string]string{
		HeaderApplicationID: applicationID,
		HeaderAPIKey:        apiKey,
	}
	if sessionToken != "" {
		headers[HeaderSessionToken] = sessionToken
	}
	return headers, nil
}
