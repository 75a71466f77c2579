// Package stream publishes tracked-point samples to gRPC subscribers.
package stream

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/skintrack/internal/figure/tracking"
	"github.com/banshee-data/skintrack/internal/monitoring"
)

// Config holds configuration for the telemetry gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061").
	ListenAddr string
	// ClientBuffer is the per-subscriber queue length; a full queue drops
	// samples for that subscriber only.
	ClientBuffer int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{ListenAddr: "localhost:50061", ClientBuffer: 64}
}

// Publisher fans samples out to every connected subscriber. Publish never
// blocks the frame loop.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	queue     chan tracking.Sample
	clients   map[uint64]chan tracking.Sample
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	published atomic.Uint64
	dropped   atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Stats are publisher counters.
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Clients   int    `json:"clients"`
	Running   bool   `json:"running"`
}

// NewPublisher creates a publisher; Start or Serve brings it up.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultConfig().ClientBuffer
	}
	return &Publisher{
		config:  cfg,
		queue:   make(chan tracking.Sample, 256),
		clients: make(map[uint64]chan tracking.Sample),
		stopCh:  make(chan struct{}),
	}
}

// Start listens on the configured address and serves in the background.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve serves on lis in the background.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer()
	RegisterTelemetryServer(p.server, p)

	p.wg.Add(2)
	go p.broadcastLoop()
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[stream] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[stream] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop ends every stream and stops the server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	p.server.GracefulStop()
	p.wg.Wait()
	monitoring.Logf("[stream] gRPC server stopped (published=%d dropped=%d)", p.published.Load(), p.dropped.Load())
}

// Publish queues s for every subscriber. When the queue is full the
// sample is dropped.
func (p *Publisher) Publish(s tracking.Sample) {
	if !p.running.Load() {
		return
	}
	select {
	case p.queue <- s:
		p.published.Add(1)
	default:
		n := p.dropped.Add(1)
		monitoring.Debugf("[stream] dropped frame %d (total dropped: %d), queue full", s.Frame, n)
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case s := <-p.queue:
			p.clientsMu.RLock()
			for _, ch := range p.clients {
				select {
				case ch <- s:
				default:
					p.dropped.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

func (p *Publisher) addClient() (uint64, chan tracking.Sample) {
	id := p.nextID.Add(1)
	ch := make(chan tracking.Sample, p.config.ClientBuffer)
	p.clientsMu.Lock()
	p.clients[id] = ch
	n := len(p.clients)
	p.clientsMu.Unlock()
	monitoring.Logf("[stream] client %d connected (total: %d)", id, n)
	return id, ch
}

func (p *Publisher) removeClient(id uint64) {
	p.clientsMu.Lock()
	delete(p.clients, id)
	n := len(p.clients)
	p.clientsMu.Unlock()
	monitoring.Logf("[stream] client %d disconnected (remaining: %d)", id, n)
}

// StreamSamples serves one subscriber until it goes away or the publisher
// stops.
func (p *Publisher) StreamSamples(req *structpb.Struct, stream grpc.ServerStream) error {
	every := int(req.GetFields()["every"].GetNumberValue())
	if every < 1 {
		every = 1
	}
	id, ch := p.addClient()
	defer p.removeClient(id)

	ctx := stream.Context()
	var n int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case s := <-ch:
			n++
			if (n-1)%every != 0 {
				continue
			}
			m, err := SampleToStruct(s)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(m); err != nil {
				return err
			}
		}
	}
}

// Stats returns the current counters.
func (p *Publisher) Stats() Stats {
	p.clientsMu.RLock()
	n := len(p.clients)
	p.clientsMu.RUnlock()
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Clients:   n,
		Running:   p.running.Load(),
	}
}
