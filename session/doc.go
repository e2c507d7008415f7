// Package session persists login sessions in Redis.
//
// Each session is a hash at <prefix>:s:<sid> holding the owner, role,
// permission mask, refresh hash and device metadata; <prefix>:u:<uid> is a
// set of the user's session IDs used for listing and logout-all. Refresh
// rotation is a Lua compare-and-swap on the stored hash so a replayed token
// loses the race and destroys the session.
package session
