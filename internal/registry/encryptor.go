package registry

import "io"

// Encryptor protects archived audio at rest. The public key is available to
// the running service for encryption; decryption requires unlocking the
// private key with a passphrase and only happens in the restore CLI.
type Encryptor interface {
	// Setup generates and stores a new key pair, protecting the private key
	// with the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase and returns a
	// context capable of decryption.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
