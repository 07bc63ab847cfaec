// Package useragent prepares User-Agent strings for signature matching.
//
// Normalize produces the canonical form stored as signature keys: the
// string is case-folded, whitespace runs become a single space and the
// ends are trimmed. Pure ASCII input, by far the common case, takes a
// single-pass path that allocates once; anything else is folded with
// golang.org/x/text/cases.
//
//	key := useragent.Normalize("Mozilla/5.0  (Linux; Android 10)")
//	// "mozilla/5.0 (linux; android 10)"
//
// Nodes splits a normalized string into tokens at the bytes listed in
// Separators. Each Node keeps the byte position it starts at, so the same
// token at a different position is a different node:
//
//	useragent.Nodes("mozilla/5.0 (linux)")
//	// [{0 mozilla} {8 5.0} {13 linux}]
//
// Compare defines the order nodes are stored in a dataset, and CharCount
// the character weight used when scoring closest matches.
package useragent
