// Package messaging fans view snapshots and toasts out to live websocket clients.
package messaging

// Publisher is what sessions and services use to push events.
type Publisher interface {
	Publish(audience, topic string, evt Event)
	PublishAll(audience string, evt Event)
}

// Broadcaster defines the interface for managing live client connections and broadcasting messages.
type Broadcaster interface {
	Publisher
	AddClient(audience, topic string) chan []byte
	RemoveClient(ch chan []byte, audience, topic string)
	ClientCount(audience string) int
	HasClients(audience, topic string) bool
}
