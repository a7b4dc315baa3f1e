package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role values assigned to terminal operators.
const (
	RoleCashier = "cashier"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Employee is a terminal operator identified by a numeric PIN.
type Employee struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	PIN       string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Directory is the in-memory employee roster keyed by ID and PIN.
type Directory struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Employee
	byPIN map[string]uuid.UUID
	order []uuid.UUID
}

// NewDirectory constructs an empty employee directory.
func NewDirectory() *Directory {
	return &Directory{
		byID:  make(map[uuid.UUID]*Employee),
		byPIN: make(map[string]uuid.UUID),
	}
}

// Add registers an employee. PINs must be unique across the roster.
func (d *Directory) Add(e Employee) bool {
	pin := strings.TrimSpace(e.PIN)
	if pin == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byPIN[pin]; exists {
		return false
	}
	cp := e
	d.byID[cp.ID] = &cp
	d.byPIN[pin] = cp.ID
	d.order = append(d.order, cp.ID)
	return true
}

// ByPIN resolves a PIN to an employee.
func (d *Directory) ByPIN(pin string) (Employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byPIN[strings.TrimSpace(pin)]
	if !ok {
		return Employee{}, false
	}
	return *d.byID[id], true
}

// ByID resolves an employee identifier.
func (d *Directory) ByID(id uuid.UUID) (Employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return Employee{}, false
	}
	return *e, true
}

// All returns the roster in insertion order.
func (d *Directory) All() []Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Employee, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.byID[id])
	}
	return out
}
