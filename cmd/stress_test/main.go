package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/gate"
	"github.com/rl1809/order-ledger/internal/core/inventory"
	"github.com/rl1809/order-ledger/internal/core/ledger"
	"github.com/rl1809/order-ledger/internal/core/service"
)

const linesPerOrder = 10

var seed = []domain.Product{
	{Name: "Phone", Price: decimal.NewFromFloat(500.0), Quantity: 10},
	{Name: "Laptop", Price: decimal.NewFromFloat(1200.0), Quantity: 5},
	{Name: "Tablet", Price: decimal.NewFromFloat(300.0), Quantity: 15},
}

// catalog includes names that were never stocked so product_not_found shows up.
var catalog = []string{"Phone", "Laptop", "Tablet", "Watch", "Camera"}

func main() {
	customers := flag.Int("customers", 10, "number of concurrent customers")
	limit := flag.Int("limit", 4, "placements admitted at once")
	flag.Parse()

	if *customers < 1 {
		fmt.Fprintln(os.Stderr, "customers must be at least 1")
		os.Exit(2)
	}

	if !run(context.Background(), os.Stdout, *customers, *limit) {
		os.Exit(1)
	}
}

// run places one random order per customer and reports whether every check
// passed.
func run(ctx context.Context, out io.Writer, customers, limit int) bool {
	if limit < 1 {
		limit = gate.DefaultLimit
	}

	store := inventory.NewStore()
	for _, p := range seed {
		if err := store.AddProduct(p.Name, p.Price, p.Quantity); err != nil {
			panic(err)
		}
	}

	orderService := service.NewOrderService(store, ledger.New(), gate.New(limit), nil, zap.NewNop(), service.Config{})

	fmt.Fprintln(out, "========== INVENTORY BEFORE ==========")
	printInventory(out, store.Snapshot())

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	for i := 0; i < customers; i++ {
		g.Go(func() error {
			lines := make([]domain.OrderLine, linesPerOrder)
			for j := range lines {
				lines[j] = domain.OrderLine{
					ProductName: catalog[rand.IntN(len(catalog))],
					Quantity:    rand.IntN(5) + 1,
				}
			}
			_, err := orderService.PlaceOrder(gctx, "user-"+uuid.NewString()[:8], lines)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(out, "FAIL: placement error: %v\n", err)
		return false
	}
	elapsed := time.Since(start)

	report := orderService.Report()

	fmt.Fprintln(out, "========== ORDERS ==========")
	for _, o := range report.Orders {
		fmt.Fprintf(out, "Order %d for %s (fulfilled: %v)\n", o.ID, o.Customer, o.Fulfilled())
		for _, line := range o.Lines {
			fmt.Fprintf(out, "  %-8s x%d  %s\n", line.ProductName, line.Quantity, line.Outcome)
		}
	}

	fmt.Fprintln(out, "========== INVENTORY AFTER ==========")
	printInventory(out, report.Inventory)

	fmt.Fprintln(out, "========== STRESS TEST RESULTS ==========")
	fmt.Fprintf(out, "Customers:        %d\n", customers)
	fmt.Fprintf(out, "Admission Limit:  %d\n", limit)
	fmt.Fprintf(out, "Orders Recorded:  %d\n", len(report.Orders))
	fmt.Fprintf(out, "Duration:         %v\n", elapsed)
	fmt.Fprintln(out, "==========================================")

	// Assertions
	contiguous := len(report.Orders) == customers
	for i, o := range report.Orders {
		if o.ID != int64(i+1) {
			contiguous = false
		}
	}
	if contiguous {
		fmt.Fprintf(out, "PASS: Order ids 1..%d are contiguous\n", customers)
	} else {
		fmt.Fprintln(out, "FAIL: Order ids are not contiguous")
	}

	remaining := make(map[string]int)
	for _, p := range report.Inventory {
		remaining[p.Name] = p.Quantity
	}
	conserved := true
	for _, p := range seed {
		deducted := 0
		for _, o := range report.Orders {
			deducted += o.DeductedQuantity(p.Name)
		}
		if deducted+remaining[p.Name] != p.Quantity {
			conserved = false
			fmt.Fprintf(out, "FAIL: %s deducted %d + remaining %d != initial %d\n", p.Name, deducted, remaining[p.Name], p.Quantity)
		}
	}
	if conserved {
		fmt.Fprintln(out, "PASS: Stock conserved for every product")
	}

	return contiguous && conserved
}

func printInventory(out io.Writer, products []domain.Product) {
	if len(products) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	for _, p := range products {
		fmt.Fprintf(out, "Name: %s, Price: %s, Quantity: %d\n", p.Name, p.Price.StringFixed(2), p.Quantity)
	}
}
