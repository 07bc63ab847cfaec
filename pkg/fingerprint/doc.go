// Package fingerprint derives short, stable identifiers from strings such
// as User-Agents.
//
// Empty parts are dropped, the rest are joined with "|" and hashed with
// SHA-256. Generate returns 32 hex characters, Full the whole digest.
// The detection result cache uses Full to build fixed-length Redis keys
// from arbitrary User-Agent strings:
//
//	key := "devicedetect:" + published + ":" + fingerprint.Full(ua)
package fingerprint
