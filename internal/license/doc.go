// Package license implements the license activation engine: the pure
// decision logic that binds a key to the first hardware that activates it,
// tracks the expiry policy, and answers verification queries.
//
// The engine performs no I/O. It is invoked by the service layer, which
// fetches the record, calls Activate or Verify, and persists any changed
// record with a conditional update against the store.
package license
