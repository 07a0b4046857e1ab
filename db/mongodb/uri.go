package mongodb

import (
	"net/url"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// DatabaseFromURI returns the database named in the connection string path.
// ok is false when the URI is invalid or names no database.
func DatabaseFromURI(uri string) (name string, ok bool) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return "", false
	}
	return cs.Database, true
}

// ResolveDatabaseName prefers the database in the URI and falls back to the configured default
func ResolveDatabaseName(uri, fallback string) string {
	if name, ok := DatabaseFromURI(uri); ok {
		return name
	}
	return fallback
}

func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<invalid uri>"
	}
	return u.Redacted()
}
