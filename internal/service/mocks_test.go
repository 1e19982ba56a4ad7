package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"goride/internal/domain"
	"goride/internal/repository"
)

// ──────────────────────────────────────────────
// IN-MEMORY STORE
// ──────────────────────────────────────────────

// memStore backs every fake repository. Transactions are serialized and roll back by
// restoring a snapshot, so tests can assert that a failed unit of work left nothing behind.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	rides    map[string]*domain.Ride
	drivers  map[string]*domain.Driver
	payments map[string]*domain.Payment
	users    map[string]*domain.User
	seq      map[string]int
	nextSeq  int

	// Error injection, keyed by operation name such as "Drivers.Credit".
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		rides:    make(map[string]*domain.Ride),
		drivers:  make(map[string]*domain.Driver),
		payments: make(map[string]*domain.Payment),
		users:    make(map[string]*domain.User),
		seq:      make(map[string]int),
		failures: make(map[string]error),
	}
}

type snapshot struct {
	rides    map[string]*domain.Ride
	drivers  map[string]*domain.Driver
	payments map[string]*domain.Payment
	seq      map[string]int
}

// Entries are replaced on every write and never mutated in place, so shallow map copies
// are enough for a snapshot.
func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		rides:    make(map[string]*domain.Ride, len(s.rides)),
		drivers:  make(map[string]*domain.Driver, len(s.drivers)),
		payments: make(map[string]*domain.Payment, len(s.payments)),
		seq:      make(map[string]int, len(s.seq)),
	}
	for k, v := range s.rides {
		snap.rides[k] = v
	}
	for k, v := range s.drivers {
		snap.drivers[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.seq {
		snap.seq[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides = snap.rides
	s.drivers = snap.drivers
	s.payments = snap.payments
	s.seq = snap.seq
}

func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) injected(op string) error {
	return s.failures[op]
}

// WithinTx implements repository.Transactor.
func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) repos() repository.Repositories {
	return repository.Repositories{
		Rides:    &memRideRepo{s},
		Drivers:  &memDriverRepo{s},
		Payments: &memPaymentRepo{s},
	}
}

func (s *memStore) addUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
}

func (s *memStore) addDriver(d *domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.drivers[d.ID] = &c
}

func (s *memStore) putRide(r *domain.Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.rides[r.ID] = &c
	s.nextSeq++
	s.seq[r.ID] = s.nextSeq
}

func (s *memStore) ride(id string) *domain.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

func (s *memStore) driver(id string) *domain.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil
	}
	c := *d
	return &c
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// ──────────────────────────────────────────────
// FAKE RIDE REPOSITORY
// ──────────────────────────────────────────────

type memRideRepo struct{ s *memStore }

func (r *memRideRepo) Create(ctx context.Context, ride *domain.Ride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Rides.Create"); err != nil {
		return err
	}
	if ride.Status.IsLive() {
		for _, existing := range r.s.rides {
			if existing.RiderID == ride.RiderID && existing.Status.IsLive() {
				return repository.ErrConflict
			}
		}
	}
	c := *ride
	r.s.rides[ride.ID] = &c
	r.s.nextSeq++
	r.s.seq[ride.ID] = r.s.nextSeq
	return nil
}

func (r *memRideRepo) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *ride
	return &c, nil
}

func (r *memRideRepo) FindLiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	rides := r.list(func(ride *domain.Ride) bool {
		return ride.RiderID == riderID && ride.Status.IsLive()
	})
	if len(rides) == 0 {
		return nil, repository.ErrNotFound
	}
	return rides[0], nil
}

func (r *memRideRepo) ListByStatus(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	return r.list(func(ride *domain.Ride) bool { return ride.Status == status }), nil
}

func (r *memRideRepo) ListByRider(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	return r.list(func(ride *domain.Ride) bool { return ride.RiderID == riderID }), nil
}

func (r *memRideRepo) ListByDriver(ctx context.Context, driverID string, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	return r.list(func(ride *domain.Ride) bool {
		if ride.Driver.DriverID != driverID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, st := range statuses {
			if ride.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (r *memRideRepo) Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Rides.Transition"); err != nil {
		return err
	}
	stored, ok := r.s.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrStaleState
	}
	c := *stored
	c.Status = ride.Status
	c.Driver = ride.Driver
	c.RejectedBy = ride.RejectedBy
	c.Timestamps = ride.Timestamps
	r.s.rides[ride.ID] = &c
	return nil
}

func (r *memRideRepo) SetPaid(ctx context.Context, id string, paid bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Rides.SetPaid"); err != nil {
		return err
	}
	stored, ok := r.s.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	c := *stored
	c.IsPaid = paid
	r.s.rides[id] = &c
	return nil
}

func (r *memRideRepo) Rate(ctx context.Context, id string, rating int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.RideStatusCompleted || stored.Rating != 0 {
		return repository.ErrStaleState
	}
	c := *stored
	c.Rating = rating
	r.s.rides[id] = &c
	return nil
}

// list returns copies of matching rides, newest first.
func (r *memRideRepo) list(match func(*domain.Ride) bool) []*domain.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.Ride, 0)
	for _, ride := range r.s.rides {
		if match(ride) {
			c := *ride
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return out
}

// ──────────────────────────────────────────────
// FAKE DRIVER REPOSITORY
// ──────────────────────────────────────────────

type memDriverRepo struct{ s *memStore }

func (r *memDriverRepo) Create(ctx context.Context, driver *domain.Driver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.drivers {
		if d.UserID == driver.UserID {
			return repository.ErrConflict
		}
	}
	c := *driver
	r.s.drivers[driver.ID] = &c
	return nil
}

func (r *memDriverRepo) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *memDriverRepo) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.drivers {
		if d.UserID == userID {
			c := *d
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDriverRepo) Update(ctx context.Context, driver *domain.Driver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.drivers[driver.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c := *stored
	c.Approval = driver.Approval
	c.Availability = driver.Availability
	c.Vehicle = driver.Vehicle
	c.UpdatedAt = driver.UpdatedAt
	r.s.drivers[driver.ID] = &c
	return nil
}

func (r *memDriverRepo) SetAvailability(ctx context.Context, id string, availability domain.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	c := *stored
	c.Availability = availability
	r.s.drivers[id] = &c
	return nil
}

func (r *memDriverRepo) Credit(ctx context.Context, id string, amount decimal.Decimal, availability domain.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Drivers.Credit"); err != nil {
		return err
	}
	stored, ok := r.s.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	c := *stored
	c.Earnings = c.Earnings.Add(amount)
	c.Availability = availability
	r.s.drivers[id] = &c
	return nil
}

// ──────────────────────────────────────────────
// FAKE PAYMENT REPOSITORY
// ──────────────────────────────────────────────

type memPaymentRepo struct{ s *memStore }

func (r *memPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.TransactionID == payment.TransactionID || (p.RideID != "" && p.RideID == payment.RideID) {
			return repository.ErrConflict
		}
	}
	c := *payment
	r.s.payments[payment.ID] = &c
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.find(func(p *domain.Payment) bool { return p.ID == id })
}

func (r *memPaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.find(func(p *domain.Payment) bool { return p.TransactionID == transactionID })
}

func (r *memPaymentRepo) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	return r.find(func(p *domain.Payment) bool { return p.RideID == rideID })
}

func (r *memPaymentRepo) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) error {
	return r.update(id, func(p *domain.Payment) error {
		if p.Status != from {
			return repository.ErrStaleState
		}
		p.Status = to
		return nil
	})
}

func (r *memPaymentRepo) SetGatewayData(ctx context.Context, id string, data json.RawMessage) error {
	return r.update(id, func(p *domain.Payment) error {
		p.GatewayData = append(json.RawMessage(nil), data...)
		return nil
	})
}

func (r *memPaymentRepo) AttachInvoice(ctx context.Context, id string, url string) error {
	return r.update(id, func(p *domain.Payment) error {
		p.InvoiceURL = url
		return nil
	})
}

func (r *memPaymentRepo) find(match func(*domain.Payment) bool) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if match(p) {
			c := *p
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPaymentRepo) update(id string, fn func(*domain.Payment) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	c := *stored
	if err := fn(&c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	r.s.payments[id] = &c
	return nil
}

// afterReadRideRepo runs afterRead once, right after the first ride read returns, to let a
// concurrent writer land between a service's read and its write.
type afterReadRideRepo struct {
	repository.RideRepository
	once      sync.Once
	afterRead func()
}

func (r *afterReadRideRepo) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	ride, err := r.RideRepository.GetByID(ctx, id)
	r.once.Do(r.afterRead)
	return ride, err
}

// ──────────────────────────────────────────────
// FAKE USER REPOSITORY
// ──────────────────────────────────────────────

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

// ──────────────────────────────────────────────
// FAKE ADAPTERS
// ──────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	Kind   string
	RideID string
	Status string
}

// recordingPublisher captures EventPublisher calls synchronously.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) record(e recordedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) RideCreated(ctx context.Context, ride *domain.Ride) {
	p.record(recordedEvent{Kind: EventRideCreated, RideID: ride.ID, Status: string(ride.Status)})
}

func (p *recordingPublisher) RideStatusChanged(ctx context.Context, ride *domain.Ride) {
	p.record(recordedEvent{Kind: EventRideStatusChanged, RideID: ride.ID, Status: string(ride.Status)})
}

func (p *recordingPublisher) PaymentSettled(ctx context.Context, payment *domain.Payment, ride *domain.Ride) {
	e := recordedEvent{Kind: EventPaymentStatusChanged, Status: string(payment.Status)}
	if ride != nil {
		e.RideID = ride.ID
	}
	p.record(e)
}

func (p *recordingPublisher) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []GatewayRequest
	err      error
}

func (g *fakeGateway) InitPayment(ctx context.Context, req GatewayRequest) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &GatewaySession{
		TransactionID: req.TransactionID,
		PaymentURL:    "https://gateway.test/pay/" + req.TransactionID,
		Raw:           json.RawMessage(`{"status":"SUCCESS"}`),
	}, nil
}

func (g *fakeGateway) last() GatewayRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type queuedJob struct {
	name string
	run  func(ctx context.Context) error
}

// manualQueue holds jobs until the test runs them.
type manualQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
}

func (q *manualQueue) Enqueue(name string, run func(ctx context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queuedJob{name: name, run: run})
	return true
}

func (q *manualQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *manualQueue) drain(ctx context.Context) []error {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	var errs []error
	for _, j := range jobs {
		if err := j.run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []domain.InvoiceData
}

func (r *fakeRenderer) Render(data domain.InvoiceData) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, data)
	return []byte("PNG:" + data.TransactionID), nil
}

func (r *fakeRenderer) ContentType() string { return "image/png" }
func (r *fakeRenderer) Extension() string   { return ".png" }

type storedObject struct {
	name        string
	contentType string
	data        []byte
}

type fakeStorage struct {
	mu      sync.Mutex
	objects []storedObject
	err     error
}

func (s *fakeStorage) Store(ctx context.Context, data []byte, name, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.objects = append(s.objects, storedObject{name: name, contentType: contentType, data: data})
	return "https://files.test/" + name, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

var errInjected = errors.New("injected failure")
