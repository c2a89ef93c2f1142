// Package oauth maps OAuth credential entities onto the generic ordered
// store. Authorization codes live under ["oauth:code", code]; refresh tokens
// under ["oauth:refresh", subject, token], so all tokens of one subject share
// a scan prefix and can be invalidated together.
//
// The package holds no state of its own beyond the key shapes. One-time use
// of authorization codes is the token endpoint's responsibility; the store
// only guarantees storage, lookup and expiry.
package oauth
