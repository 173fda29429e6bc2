// Package password holds the two password concerns of dualAuth: Argon2id
// hashing for the bundled user repositories, and the strength engine that
// gates account creation and credential changes.
//
// # Hash format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// with unpadded base64 salt and hash. The hasher shares the length rule of
// the strength engine: [MinLength] to [MaxLength] runes after NFC
// normalisation, and it hashes the normalised form. [Argon2.NeedsUpgrade]
// reports hashes produced with weaker parameters; the bundled repositories
// re-hash on the next successful login.
//
// # Strength engine
//
// [Assess] scores a candidate against composition, pattern, personal-info
// and entropy rules and returns an [Assessment]. Input is NFC normalised and
// its length is counted in runes.
//
// This package never logs plaintext passwords and imports no other dualAuth
// package.
package password
