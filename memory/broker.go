package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nitzanm/kombu"
)

// Broker holds the exchanges, queues and messages shared by every connection made to it.
type Broker struct {
	mu        sync.Mutex
	exchanges map[string]*exchange
	queues    map[string]*queue
}

type exchange struct {
	name       string
	typ        kombu.ExchangeType
	durable    bool
	autoDelete bool
	bindings   []binding
}

type queue struct {
	name       string
	durable    bool
	autoDelete bool
	exclusive  bool
	consumers  int
	ready      []*delivery
	wake       chan struct{} // wake is closed and replaced whenever a message becomes ready.
}

// delivery a message stored in a queue.
type delivery struct {
	body        []byte
	exchange    string
	routingKey  string
	contentType string
	redelivered bool
}

// New creates an empty broker.
func New() *Broker {
	return &Broker{
		exchanges: make(map[string]*exchange),
		queues:    make(map[string]*queue),
	}
}

// Dialer returns a kombu.Dialer which connects to b.
func (b *Broker) Dialer() kombu.Dialer {
	return func() (kombu.Connection, error) {
		return b.Connect(), nil
	}
}

// Connect opens a new connection to b.
func (b *Broker) Connect() kombu.Connection {
	return &connection{broker: b}
}

// Depth returns the amount of ready messages in a queue, -1 when it does not exist.
func (b *Broker) Depth(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return -1
	}
	return len(q.ready)
}

// Consumers returns the amount of consumers registered on a queue.
func (b *Broker) Consumers(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return q.consumers
	}
	return 0
}

// HasQueue reports whether a queue was declared.
func (b *Broker) HasQueue(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[name]
	return ok
}

func (b *Broker) declareExchange(name string, typ kombu.ExchangeType, durable, autoDelete bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.exchanges[name]; ok {
		if e.typ != typ {
			return preconditionFailed("inequivalent arg 'type' for exchange '%s': received '%s' but current is '%s'", name, typ, e.typ)
		}
		return nil
	}
	b.exchanges[name] = &exchange{name: name, typ: typ, durable: durable, autoDelete: autoDelete}
	return nil
}

func (b *Broker) declareQueue(name string, durable, autoDelete, exclusive bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		name = "amq.gen-" + uuid.NewString()
	}
	if q, ok := b.queues[name]; ok {
		if q.durable != durable {
			return "", preconditionFailed("inequivalent arg 'durable' for queue '%s'", name)
		}
		return name, nil
	}
	b.queues[name] = &queue{
		name:       name,
		durable:    durable,
		autoDelete: autoDelete,
		exclusive:  exclusive,
		wake:       make(chan struct{}),
	}
	return name, nil
}

func (b *Broker) bind(queueName, exchangeName, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.exchanges[exchangeName]
	if !ok {
		return notFound("exchange", exchangeName)
	}
	if _, ok = b.queues[queueName]; !ok {
		return notFound("queue", queueName)
	}

	bnd := binding{queue: queueName, key: key}
	for _, existing := range e.bindings {
		if existing == bnd {
			return nil
		}
	}
	e.bindings = append(e.bindings, bnd)
	return nil
}

// publish routes d to every matching queue. Unroutable messages are dropped.
func (b *Broker) publish(d delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.exchange == "" {
		if q, ok := b.queues[d.routingKey]; ok {
			q.push(d)
		}
		return nil
	}

	e, ok := b.exchanges[d.exchange]
	if !ok {
		return notFound("exchange", d.exchange)
	}
	routed := make(map[string]bool)
	for _, bnd := range e.bindings {
		if routed[bnd.queue] || !bnd.matches(e.typ, d.routingKey) {
			continue
		}
		if q, ok := b.queues[bnd.queue]; ok {
			routed[bnd.queue] = true
			q.push(d)
		}
	}
	return nil
}

// pop takes the next ready message. When none is ready it returns the channel
// closed on the next publish to the queue.
func (b *Broker) pop(name string) (*delivery, <-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return nil, nil, notFound("queue", name)
	}
	if len(q.ready) == 0 {
		return nil, q.wake, nil
	}
	d := q.ready[0]
	q.ready = q.ready[1:]
	return d, nil, nil
}

// requeue puts a delivered message back at the head of its queue.
func (b *Broker) requeue(name string, d *delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return
	}
	d.redelivered = true
	q.ready = append([]*delivery{d}, q.ready...)
	q.signal()
}

func (b *Broker) purge(name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return 0, notFound("queue", name)
	}
	n := len(q.ready)
	q.ready = nil
	return n, nil
}

func (b *Broker) addConsumer(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return notFound("queue", name)
	}
	q.consumers++
	return nil
}

// removeConsumer unregisters a consumer, deleting an auto delete queue with its
// bindings once its last consumer is gone.
func (b *Broker) removeConsumer(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return
	}
	q.consumers--
	if q.consumers > 0 || !q.autoDelete {
		return
	}

	delete(b.queues, name)
	for _, e := range b.exchanges {
		kept := e.bindings[:0]
		for _, bnd := range e.bindings {
			if bnd.queue != name {
				kept = append(kept, bnd)
			}
		}
		e.bindings = kept
	}
}

func (q *queue) push(d delivery) {
	q.ready = append(q.ready, &d)
	q.signal()
}

func (q *queue) signal() {
	close(q.wake)
	q.wake = make(chan struct{})
}
