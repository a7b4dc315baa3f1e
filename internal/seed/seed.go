// Package seed loads the boot fixtures: employees, the product catalog
// and the customer directory. All state is in-memory, so the fixtures run
// on every start.
package seed

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/auth"
	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/customer"
)

// Employees registers the terminal operators.
func Employees(dir *auth.Directory, now time.Time) error {
	staff := []auth.Employee{
		{ID: uuid.New(), Name: "John Manager", PIN: "1234", Role: auth.RoleManager, CreatedAt: now},
		{ID: uuid.New(), Name: "Sarah Cashier", PIN: "5678", Role: auth.RoleCashier, CreatedAt: now},
		{ID: uuid.New(), Name: "Admin User", PIN: "0000", Role: auth.RoleAdmin, CreatedAt: now},
	}
	for _, e := range staff {
		if !dir.Add(e) {
			return fmt.Errorf("seed: duplicate PIN for %s", e.Name)
		}
	}
	return nil
}

// Products stocks the catalog.
func Products(store *catalog.Store, now time.Time) error {
	items := []catalog.Product{
		{SKU: "BEV001", Barcode: "123456789001", Name: "Latte", Category: "Beverages", CostPrice: 150, CashPrice: 450, CardPrice: 475, Stock: 150, LowStockThreshold: 20},
		{SKU: "BEV002", Barcode: "123456789002", Name: "Cappuccino", Category: "Beverages", CostPrice: 140, CashPrice: 425, CardPrice: 450, Stock: 120, LowStockThreshold: 20},
		{SKU: "BAK001", Barcode: "123456789003", Name: "Croissant", Category: "Bakery", CostPrice: 80, CashPrice: 300, CardPrice: 325, Stock: 45, LowStockThreshold: 10},
		{SKU: "BAK002", Barcode: "123456789004", Name: "Blueberry Muffin", Category: "Bakery", CostPrice: 90, CashPrice: 350, CardPrice: 375, Stock: 38, LowStockThreshold: 10},
		{SKU: "SAN001", Barcode: "123456789005", Name: "Turkey Club Sandwich", Category: "Sandwiches", CostPrice: 300, CashPrice: 850, CardPrice: 895, Stock: 25, LowStockThreshold: 5},
		{SKU: "SAN002", Barcode: "123456789006", Name: "Veggie Wrap", Category: "Sandwiches", CostPrice: 250, CashPrice: 750, CardPrice: 795, Stock: 30, LowStockThreshold: 5},
		{SKU: "ALC001", Barcode: "123456789007", Name: "Craft Beer", Category: "Alcohol", CostPrice: 200, CashPrice: 600, CardPrice: 625, Stock: 60, AgeRestricted: true, LowStockThreshold: 12},
		{SKU: "SNK001", Barcode: "123456789008", Name: "Potato Chips", Category: "Snacks", CostPrice: 50, CashPrice: 200, CardPrice: 225, Stock: 80, LowStockThreshold: 15},
	}
	for _, p := range items {
		p.ID = uuid.New()
		p.TaxRateBps = 800
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := store.Insert(p); err != nil {
			return fmt.Errorf("seed: insert %s: %w", p.SKU, err)
		}
	}
	return nil
}

// Customers loads the loyalty directory.
func Customers(store *customer.Store, now time.Time) error {
	members := []customer.Customer{
		{Name: "Emily Johnson", Email: "emily@example.com", Phone: "555-0101", LoyaltyPoints: 350, StoreCredit: 2500},
		{Name: "Michael Chen", Email: "michael@example.com", Phone: "555-0102", LoyaltyPoints: 520},
		{Name: "Sarah Williams", Email: "sarah@example.com", Phone: "555-0103", LoyaltyPoints: 120, StoreCredit: 1550},
	}
	for _, m := range members {
		m.ID = uuid.New()
		m.CreatedAt = now
		m.UpdatedAt = now
		if err := store.Insert(m); err != nil {
			return fmt.Errorf("seed: insert customer %s: %w", m.Name, err)
		}
	}
	return nil
}
