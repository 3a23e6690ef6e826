// Package integration connects identities to third-party APIs over OAuth 2.0.
//
// A Coordinator runs the authorization-code handshake: Begin stores a random
// state token mapped to the identity and returns the consent URL, Complete
// consumes the state exactly once, exchanges the code, and stores the result
// in a Vault. The Vault keeps one active credential record per identity and
// provider with every secret encrypted by a secrets.Cipher.
//
// KeepClient uses stored credentials to create notes in Google Keep.
//
//	vault := integration.NewVault(store, cipher, provider)
//	coord := integration.NewCoordinator(states, provider, vault,
//		integration.WithAfterComplete(integration.PurgeExpiredHook(vault)),
//	)
//	auth, err := coord.Begin(ctx, identityID)
//	// redirect to auth.URL, then on callback:
//	out, err := coord.Complete(ctx, integration.Callback{Code: code, State: state})
package integration
