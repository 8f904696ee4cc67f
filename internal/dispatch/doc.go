// Package dispatch implements the Message Sender and Message Handler:
// the two halves of the request/reply rendezvous a Sender and a
// gateway's Handler carry out through the coordination store.
//
// Sender exposes three fluent builders — InvokeFunction, ReadProperty,
// WriteProperty — each validating against the device's resolved
// protocol metadata before Send publishes the message and blocks until
// it can acquire one reply permit per subscriber on the accept topic.
//
// dispatch depends on device only through the narrow Device interface
// declared here; device.Operation satisfies it structurally, so device
// can import dispatch to build Senders without a cyclic import.
package dispatch
