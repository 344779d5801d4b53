package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/discount"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/memory"
)

// seedDemo memory驱动的演示数据：两个经销商、三种药品、用户1的购物车、优惠码SAVE10
// 返回购物车ID
func seedDemo(store *memory.Store) uint {
	products := []catalog.Product{
		{ID: 1, DistributorID: 10, Name: "Paracetamol 500mg", Price: decimal.RequireFromString("25000"), IsApproved: true},
		{ID: 2, DistributorID: 10, Name: "Amoxicillin 250mg", Price: decimal.RequireFromString("48000"), IsApproved: true},
		{ID: 3, DistributorID: 20, Name: "Vitamin C 1000mg", Price: decimal.RequireFromString("120000"), IsApproved: true},
	}
	for _, p := range products {
		store.PutProduct(p)
		store.PutStock(inventory.Key{DistributorID: p.DistributorID, ProductID: p.ID}, 100)
	}

	cartID := store.PutCart(1,
		cart.Item{ProductID: 1, Quantity: 2},
		cart.Item{ProductID: 3, Quantity: 1},
	)

	maxDiscount := decimal.RequireFromString("50000")
	maxUses := 100
	now := time.Now()
	store.PutDiscount(discount.Discount{
		Code:              "SAVE10",
		Type:              discount.TypePercentage,
		Value:             decimal.NewFromInt(10),
		MaxDiscountAmount: &maxDiscount,
		StartAt:           now.Add(-time.Hour),
		EndAt:             now.AddDate(0, 1, 0),
		MaxUses:           &maxUses,
		IsActive:          true,
	})
	return cartID
}
