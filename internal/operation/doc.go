// Package operation holds the typed-operation registry that connectors
// register against.
//
// A connector declares each operation once, at startup, with an input
// Schema and a Handler:
//
//	reg := operation.NewRegistry()
//	err := reg.Register("slack.post_message",
//		operation.Object(
//			operation.Required("channel", operation.String()),
//			operation.Required("text", operation.String()),
//			operation.Prop("thread_ts", operation.String()),
//		),
//		postMessage,
//		operation.WithDescription("Post a message to a channel"),
//	)
//
// Invoke validates the caller's arguments against the schema before the
// handler runs. Invalid input never reaches the handler, so destructive
// vendor calls are only issued for well-formed requests. Handlers receive
// the credential bundle explicitly and return an Envelope of content blocks.
//
// The transport subpackage issues the single-attempt HTTP calls handlers
// make against vendor APIs.
package operation
