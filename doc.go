// Package storefront is the account and session engine of the storefront
// service.
//
// The [Engine] owns everything that lives in Redis: sessions with rotating
// opaque refresh tokens, login and flow rate limits, and single-use
// password-reset and email-verification challenges. Durable user records
// stay behind the [UserProvider] interface, which the document store
// implements.
//
// Access tokens are short-lived JWTs carrying the user ID, session ID,
// role and a 64-bit permission mask. Handlers check them with
// [Engine.Validate]; [ModeStrict] also confirms the session was not
// revoked.
//
//	engine, err := storefront.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserProvider(users).
//		WithNotifier(notifier).
//		Build()
package storefront
