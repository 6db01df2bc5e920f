// Package password hashes and verifies principal passwords with Argon2id.
//
// # Output format
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads the parameters from the stored string, so hashes made
// under an older [Config] keep verifying. [Argon2.NeedsUpgrade] reports when
// a stored hash is weaker than the current parameters.
//
// [Argon2.Burn] runs one verification against a dummy hash built with the
// same parameters, so a lookup miss costs what a wrong password costs.
//
// This package never stores passwords and never logs plaintext.
package password
