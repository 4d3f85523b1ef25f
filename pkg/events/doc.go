// Package events provides an in-process pub/sub bus for resource
// lifecycle notifications.
//
// Broker commands publish fire-and-forget; nothing in the command path
// waits on a subscriber.
package events
