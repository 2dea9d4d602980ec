// Package pending holds URLs that are waiting for their requester to press
// confirm or cancel. Removal is the only way an entry leaves the store and is
// what makes each confirmation token single-use.
package pending
