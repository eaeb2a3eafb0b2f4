//go:build !unix

package session

import "os"

// Ownership is not exposed through os.FileInfo here; the mode check in
// checkDir still applies.
func ownedByCurrentUser(os.FileInfo) bool {
	return true
}
