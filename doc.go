// Package chatgate manages many independent, long-lived chat-network
// sessions, each bound to one external account and authenticated by
// locally persisted credentials.
//
// The package coordinates per-session connection state machines against a
// process-wide registry: sessions move through disconnected, connecting,
// awaiting-login, and connected phases, issue short-lived login codes for
// pairing, reconnect with a bounded retry budget, and recover from
// corrupted credential material by purging it and starting clean. The
// wire protocol itself lives behind the provider boundary; chatgate never
// touches frames or encryption.
//
// Example:
//
//	store := credstore.New("./data/auth")
//	registry := chatgate.NewRegistry("./data/sessions.json")
//	gw := chatgate.NewGateway(sim.NewConnector(), store, registry, chatgate.DefaultSettings())
//
//	// Reconcile on-disk credentials with the registry after a restart.
//	if err := gw.Restore(); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := gw.CreateSession("support-line"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Once the session reports the connected phase:
//	result, err := gw.SendText(ctx, "support-line", "0811222333", "hello")
package chatgate
