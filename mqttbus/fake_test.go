package mqttbus

import (
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic   string
	payload []byte
}

// fakeClient is an in-memory paho client that routes published messages to
// its own subscriptions.
type fakeClient struct {
	opts *pahomqtt.ClientOptions

	mu           sync.Mutex
	connected    bool
	routes       map[string]pahomqtt.MessageHandler
	subscribes   []string
	unsubscribes []string
	published    []published
	subErr       error
	connErr      error
	holdSubs     bool
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{routes: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakeClient) factory(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	f.opts = opts
	return f
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakeClient) Connect() pahomqtt.Token {
	f.mu.Lock()
	err := f.connErr
	if err == nil {
		f.connected = true
	}
	f.mu.Unlock()
	if err == nil && f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
	return doneToken(err)
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	data, _ := payload.([]byte)
	f.mu.Lock()
	f.published = append(f.published, published{topic, data})
	f.mu.Unlock()
	f.deliver(topic, data)
	return doneToken(nil)
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	if f.holdSubs {
		return &fakeToken{done: make(chan struct{})}
	}
	if f.subErr != nil {
		return doneToken(f.subErr)
	}
	f.routes[topic] = cb
	return doneToken(nil)
}

func (f *fakeClient) SubscribeMultiple(filters map[string]byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	for topic := range filters {
		f.Subscribe(topic, 0, cb)
	}
	return doneToken(nil)
}

func (f *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		f.unsubscribes = append(f.unsubscribes, topic)
		delete(f.routes, topic)
	}
	return doneToken(nil)
}

func (f *fakeClient) AddRoute(topic string, cb pahomqtt.MessageHandler) {
	f.mu.Lock()
	f.routes[topic] = cb
	f.mu.Unlock()
}

func (f *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(f.opts)
}

// deliver hands a message to every matching route, as the paho router does.
func (f *fakeClient) deliver(topic string, payload []byte) {
	f.mu.Lock()
	var handlers []pahomqtt.MessageHandler
	for filter, cb := range f.routes {
		if topicMatches(filter, topic) {
			handlers = append(handlers, cb)
		}
	}
	f.mu.Unlock()
	for _, cb := range handlers {
		cb(f, fakeMessage{topic: topic, payload: payload})
	}
}

func (f *fakeClient) dropConnection(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	if f.opts.OnConnectionLost != nil {
		f.opts.OnConnectionLost(f, err)
	}
}

func (f *fakeClient) reconnect() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	if f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
}

func (f *fakeClient) counts() (subs, unsubs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes), len(f.unsubscribes)
}

func topicMatches(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, tok := range fl {
		if tok == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if tok != "+" && tok != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
