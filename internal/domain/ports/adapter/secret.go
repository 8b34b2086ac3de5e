package adapter

// SecretCipher protects secrets stored on the device.
type SecretCipher interface {
	Seal(plaintext, scope string) (string, error)
	Open(sealed, scope string) (string, error)
}
