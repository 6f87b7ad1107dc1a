// Package crypto stores and recovers the bind credentials of replication
// agreements.
//
// Credentials are kept reversibly encrypted with AES-256-GCM. The key is
// derived with HKDF-SHA256 from a master secret, so the same secret file
// can serve several purposes with different info strings. An encrypted
// credential is written as
//
//	{AES-GCM}base64(nonce || ciphertext || tag)
//
// A credential without a scheme prefix is taken as clear text.
package crypto
