// Package ir defines the value types shared by every layer of flowtree.
//
// The central type is Path, the dotted positional identifier of a message
// (1.<flow>.<child>.<grandchild>...). A path encodes both the message's
// ancestry and its order among siblings, so renumbering one message is
// always a structural operation on segments, never string surgery.
//
// Message payloads are held as Content, a sealed Value tree that is
// persisted as canonical JSON (sorted keys, NFC strings) regardless of
// which storage backend is configured.
package ir
