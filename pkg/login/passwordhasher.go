package login

// PasswordHasher defines the interface for password hashing implementations.
type PasswordHasher interface {
	// Hash hashes a plain-text password.
	Hash(password string) (string, error)

	// Verify checks if the provided password matches the stored hash.
	Verify(password, hashedPassword string) (bool, error)
}
