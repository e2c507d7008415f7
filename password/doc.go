// Package password implements password hashing and verification.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes carried over from earlier user
// records and reports them through [Hasher.NeedsUpgrade] so they are
// replaced on the next successful login.
//
// Password policy (minimum and maximum length, reuse) is enforced by the
// auth engine, not here.
package password
