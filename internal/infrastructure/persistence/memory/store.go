// Package memory 内存存储
//
// 用于本地运行（database.driver=memory）和用例测试。
// 事务是串行化的：同一时刻只有一个事务持有整个存储，
// 失败时整体恢复到事务开始前的快照；嵌套事务相当于SAVEPOINT。
package memory

import (
	"context"

	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/discount"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

type txKey struct{}

type state struct {
	carts     map[uint]*cart.Cart
	products  map[uint]*catalog.Product
	stocks    map[inventory.Key]*inventory.Stock
	discounts map[uint]*discount.Discount
	orders    map[uint]*order.Order
	payments  map[uint]*payment.Payment
	seq       uint
}

func newState() *state {
	return &state{
		carts:     make(map[uint]*cart.Cart),
		products:  make(map[uint]*catalog.Product),
		stocks:    make(map[inventory.Key]*inventory.Stock),
		discounts: make(map[uint]*discount.Discount),
		orders:    make(map[uint]*order.Order),
		payments:  make(map[uint]*payment.Payment),
	}
}

func (s *state) nextID() uint {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range s.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range s.stocks {
		st := *v
		c.stocks[k] = &st
	}
	for k, v := range s.discounts {
		c.discounts[k] = copyDiscount(v)
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.payments {
		c.payments[k] = copyPayment(v)
	}
	return c
}

// Store 内存存储，同时实现transaction.Manager
type Store struct {
	sem  chan struct{} // 容量1的信号量，等待可被ctx取消
	data *state
}

// NewStore 创建空存储
func NewStore() *Store {
	return &Store{sem: make(chan struct{}, 1), data: newState()}
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

// Transaction 串行化事务；fn返回error时恢复快照
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		snap := s.data.clone()
		if err := fn(ctx); err != nil {
			s.data = snap
			return err
		}
		return nil
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	snap := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snap
		return err
	}
	return nil
}

// view 事务内直接访问，事务外短暂加锁
func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		return fn(s.data)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(s.data)
}

// =========================================
// 种子数据（本地运行、测试）
// =========================================

// PutProduct 写入商品
func (s *Store) PutProduct(p catalog.Product) {
	_ = s.view(context.Background(), func(st *state) error {
		st.products[p.ID] = &p
		return nil
	})
}

// PutStock 直接设置库存（管理端补货路径）
func (s *Store) PutStock(key inventory.Key, qty int) {
	_ = s.view(context.Background(), func(st *state) error {
		if stock, ok := st.stocks[key]; ok {
			stock.Quantity = qty
			return nil
		}
		st.stocks[key] = &inventory.Stock{ID: st.nextID(), DistributorID: key.DistributorID, ProductID: key.ProductID, Quantity: qty}
		return nil
	})
}

// PutCart 写入购物车，返回ID
func (s *Store) PutCart(userID uint, items ...cart.Item) uint {
	var id uint
	_ = s.view(context.Background(), func(st *state) error {
		id = st.nextID()
		c := &cart.Cart{ID: id, UserID: userID}
		for _, item := range items {
			item.ID = st.nextID()
			item.CartID = id
			c.Items = append(c.Items, item)
		}
		st.carts[id] = c
		return nil
	})
	return id
}

// PutDiscount 写入优惠码，返回ID
func (s *Store) PutDiscount(d discount.Discount) uint {
	var id uint
	_ = s.view(context.Background(), func(st *state) error {
		id = st.nextID()
		d.ID = id
		st.discounts[id] = copyDiscount(&d)
		return nil
	})
	return id
}

// StockOf 当前库存，不存在返回-1
func (s *Store) StockOf(key inventory.Key) int {
	qty := -1
	_ = s.view(context.Background(), func(st *state) error {
		if stock, ok := st.stocks[key]; ok {
			qty = stock.Quantity
		}
		return nil
	})
	return qty
}

// CountOrders 订单数
func (s *Store) CountOrders() int {
	var n int
	_ = s.view(context.Background(), func(st *state) error {
		n = len(st.orders)
		return nil
	})
	return n
}

// DiscountUses 优惠码已使用次数
func (s *Store) DiscountUses(id uint) int {
	var n int
	_ = s.view(context.Background(), func(st *state) error {
		if d, ok := st.discounts[id]; ok {
			n = d.UsesCount
		}
		return nil
	})
	return n
}

// CartItems 购物车条目数
func (s *Store) CartItems(id uint) int {
	var n int
	_ = s.view(context.Background(), func(st *state) error {
		if c, ok := st.carts[id]; ok {
			n = len(c.Items)
		}
		return nil
	})
	return n
}

// =========================================
// 深拷贝，仓储不对外暴露内部指针
// =========================================

func copyCart(c *cart.Cart) *cart.Cart {
	out := *c
	out.Items = append([]cart.Item(nil), c.Items...)
	return &out
}

func copyDiscount(d *discount.Discount) *discount.Discount {
	out := *d
	if d.MaxUses != nil {
		v := *d.MaxUses
		out.MaxUses = &v
	}
	if d.MaxDiscountAmount != nil {
		v := *d.MaxDiscountAmount
		out.MaxDiscountAmount = &v
	}
	if d.MinOrderValue != nil {
		v := *d.MinOrderValue
		out.MinOrderValue = &v
	}
	return &out
}

func copyOrder(o *order.Order) *order.Order {
	out := *o
	out.Items = append([]order.Item(nil), o.Items...)
	if o.DiscountID != nil {
		v := *o.DiscountID
		out.DiscountID = &v
	}
	return &out
}

func copyPayment(p *payment.Payment) *payment.Payment {
	out := *p
	if p.PaidAt != nil {
		v := *p.PaidAt
		out.PaidAt = &v
	}
	if p.RefundedAt != nil {
		v := *p.RefundedAt
		out.RefundedAt = &v
	}
	return &out
}
