package testutil

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/tabgo/record"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random int64 in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Pick returns a pseudo-random element of choices.
func Pick[T any](r *RNG, choices []T) T {
	return choices[r.Intn(len(choices))]
}

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Leslie", "Tony"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Lamport", "Hoare"}
	statuses   = []string{"open", "shipped", "cancelled"}
	categories = []string{"rent", "payroll", "supplies", "marketing", "utilities"}
)

// CustomerDoc generates a deterministic customer document. The n parameter
// keeps the unique email distinct across calls.
func CustomerDoc(r *RNG, n int) record.Document {
	name := Pick(r, firstNames) + " " + Pick(r, lastNames)
	return record.Document{
		"name":  record.String(name),
		"email": record.String(fmt.Sprintf("customer%d@example.com", n)),
		"phone": record.String(fmt.Sprintf("+1-555-%04d", r.Intn(10000))),
	}
}

// OrderDoc generates a deterministic order document referencing customerID.
func OrderDoc(r *RNG, customerID uint64) record.Document {
	return record.Document{
		"customer_id": record.Int(int64(customerID)),
		"amount":      record.Float(float64(r.Intn(100000)) / 100),
		"status":      record.String(Pick(r, statuses)),
		"ordered_at":  record.Time(Day(2026, time.March, 1+r.Intn(28))),
	}
}

// TransactionDoc generates a deterministic transaction document referencing
// orderID.
func TransactionDoc(r *RNG, orderID uint64) record.Document {
	return record.Document{
		"order_id": record.Int(int64(orderID)),
		"amount":   record.Float(float64(r.Intn(100000)) / 100),
		"paid_at":  record.Time(Day(2026, time.March, 1+r.Intn(28))),
	}
}

// ExpenseDoc generates a deterministic expense document.
func ExpenseDoc(r *RNG) record.Document {
	return record.Document{
		"category":    record.String(Pick(r, categories)),
		"description": record.String("expense " + Pick(r, categories)),
		"amount":      record.Float(float64(r.Intn(50000)) / 100),
		"spent_at":    record.Time(Day(2026, time.March, 1+r.Intn(28))),
	}
}

// IncomeDoc generates a deterministic income document.
func IncomeDoc(r *RNG) record.Document {
	return record.Document{
		"source":      record.String("source " + Pick(r, lastNames)),
		"amount":      record.Float(float64(r.Intn(200000)) / 100),
		"received_at": record.Time(Day(2026, time.March, 1+r.Intn(28))),
	}
}

// Day returns a UTC midnight time, handy for date columns in tests.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
