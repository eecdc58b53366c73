// Package auth provides HTTP middleware guarding the API: an optional API key
// check for the ingestion endpoint and a CORS allow-list for browser clients.
package auth
