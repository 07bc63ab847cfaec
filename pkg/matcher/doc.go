// Package matcher resolves a User-Agent to the dataset signature that best
// describes it.
//
// Matching runs in two phases. The exact phase looks the normalized
// User-Agent up in the sorted signature key index and, on a hit, returns
// that signature with a difference of zero. Otherwise the closest phase
// splits the User-Agent into position nodes (see package useragent), finds
// every signature sharing at least one node and ranks them by:
//
//  1. number of nodes matched, most first
//  2. difference, lowest first
//  3. dataset rank, lowest first
//
// The difference is the number of node characters the signature has that
// the User-Agent lacks plus the number the User-Agent has that the signature
// lacks. A User-Agent that shares no node with any signature, including the
// empty string, produces a result with MethodNone and no error.
//
// A Matcher keeps no state between calls and is safe for concurrent use.
package matcher
