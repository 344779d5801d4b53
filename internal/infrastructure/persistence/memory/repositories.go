package memory

import (
	"context"
	"sort"
	"time"

	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/discount"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

// =========================================
// 购物车
// =========================================

type cartRepository struct{ s *Store }

// NewCartRepository 购物车仓储
func NewCartRepository(s *Store) cart.Repository { return &cartRepository{s: s} }

func (r *cartRepository) FindByID(ctx context.Context, id uint) (*cart.Cart, error) {
	var out *cart.Cart
	err := r.s.view(ctx, func(st *state) error {
		c, ok := st.carts[id]
		if !ok {
			return cart.ErrCartNotFound
		}
		out = copyCart(c)
		return nil
	})
	return out, err
}

func (r *cartRepository) ClearItems(ctx context.Context, cartID uint) error {
	return r.s.view(ctx, func(st *state) error {
		if c, ok := st.carts[cartID]; ok {
			c.Items = nil
			c.UpdatedAt = time.Now()
		}
		return nil
	})
}

func (r *cartRepository) RestoreItems(ctx context.Context, cartID uint, items []cart.Item) error {
	return r.s.view(ctx, func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok {
			return cart.ErrCartNotFound
		}
		for _, item := range items {
			item.ID = st.nextID()
			item.CartID = cartID
			c.Items = append(c.Items, item)
		}
		return nil
	})
}

// =========================================
// 商品目录
// =========================================

type catalogReader struct{ s *Store }

// NewCatalogReader 商品读取
func NewCatalogReader(s *Store) catalog.Reader { return &catalogReader{s: s} }

func (r *catalogReader) FindByIDs(ctx context.Context, ids []uint) (map[uint]*catalog.Product, error) {
	out := make(map[uint]*catalog.Product, len(ids))
	err := r.s.view(ctx, func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				cp := *p
				out[id] = &cp
			}
		}
		return nil
	})
	return out, err
}

// =========================================
// 库存台账
// =========================================

type ledger struct{ s *Store }

// NewLedger 库存台账
func NewLedger(s *Store) inventory.Ledger { return &ledger{s: s} }

// Lock 事务本身串行化，这里只读取
func (l *ledger) Lock(ctx context.Context, key inventory.Key) (*inventory.Stock, error) {
	var out *inventory.Stock
	err := l.s.view(ctx, func(st *state) error {
		stock, ok := st.stocks[key]
		if !ok {
			return inventory.ErrStockNotFound
		}
		cp := *stock
		out = &cp
		return nil
	})
	return out, err
}

func (l *ledger) Decrement(ctx context.Context, key inventory.Key, qty int) (int64, error) {
	var affected int64
	err := l.s.view(ctx, func(st *state) error {
		stock, ok := st.stocks[key]
		if !ok || stock.Quantity < qty {
			return nil
		}
		stock.Quantity -= qty
		affected = 1
		return nil
	})
	return affected, err
}

func (l *ledger) Increment(ctx context.Context, key inventory.Key, qty int) error {
	return l.s.view(ctx, func(st *state) error {
		if stock, ok := st.stocks[key]; ok {
			stock.Quantity += qty
			return nil
		}
		st.stocks[key] = &inventory.Stock{ID: st.nextID(), DistributorID: key.DistributorID, ProductID: key.ProductID, Quantity: qty}
		return nil
	})
}

// =========================================
// 优惠码
// =========================================

type discountRepository struct{ s *Store }

// NewDiscountRepository 优惠码仓储
func NewDiscountRepository(s *Store) discount.Repository { return &discountRepository{s: s} }

func (r *discountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	var out *discount.Discount
	err := r.s.view(ctx, func(st *state) error {
		for _, d := range st.discounts {
			if d.Code == code {
				out = copyDiscount(d)
				return nil
			}
		}
		return discount.ErrDiscountNotFound
	})
	return out, err
}

func (r *discountRepository) IncrementUsage(ctx context.Context, id uint) (int64, error) {
	var affected int64
	err := r.s.view(ctx, func(st *state) error {
		d, ok := st.discounts[id]
		if !ok {
			return nil
		}
		if d.MaxUses != nil && d.UsesCount >= *d.MaxUses {
			return nil
		}
		d.UsesCount++
		affected = 1
		return nil
	})
	return affected, err
}

func (r *discountRepository) DecrementUsage(ctx context.Context, id uint) error {
	return r.s.view(ctx, func(st *state) error {
		if d, ok := st.discounts[id]; ok && d.UsesCount > 0 {
			d.UsesCount--
		}
		return nil
	})
}

// =========================================
// 订单
// =========================================

type orderRepository struct{ s *Store }

// NewOrderRepository 订单仓储
func NewOrderRepository(s *Store) order.Repository { return &orderRepository{s: s} }

func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.s.view(ctx, func(st *state) error {
		for _, existing := range st.orders {
			if existing.Code == o.Code {
				return order.ErrDuplicateCode
			}
		}
		o.ID = st.nextID()
		for i := range o.Items {
			o.Items[i].ID = st.nextID()
			o.Items[i].OrderID = o.ID
		}
		st.orders[o.ID] = copyOrder(o)
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	var out *order.Order
	err := r.s.view(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return order.ErrOrderNotFound
		}
		out = copyOrder(o)
		return nil
	})
	return out, err
}

func (r *orderRepository) FindByCode(ctx context.Context, code string) (*order.Order, error) {
	var out *order.Order
	err := r.s.view(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.Code == code {
				out = copyOrder(o)
				return nil
			}
		}
		return order.ErrOrderNotFound
	})
	return out, err
}

func (r *orderRepository) LockByCode(ctx context.Context, code string) (*order.Order, error) {
	return r.FindByCode(ctx, code)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	return r.s.view(ctx, func(st *state) error {
		existing, ok := st.orders[o.ID]
		if !ok {
			return order.ErrOrderNotFound
		}
		existing.Status = o.Status
		existing.UpdatedAt = o.UpdatedAt
		return nil
	})
}

func (r *orderRepository) Delete(ctx context.Context, id uint) error {
	return r.s.view(ctx, func(st *state) error {
		delete(st.orders, id)
		return nil
	})
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*order.Order, int64, error) {
	var out []*order.Order
	err := r.s.view(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	total := int64(len(out))
	start := (page - 1) * pageSize
	if start >= len(out) || start < 0 {
		return []*order.Order{}, total, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

// =========================================
// 支付
// =========================================

type paymentRepository struct{ s *Store }

// NewPaymentRepository 支付仓储
func NewPaymentRepository(s *Store) payment.Repository { return &paymentRepository{s: s} }

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.view(ctx, func(st *state) error {
		for _, existing := range st.payments {
			if existing.OrderID == p.OrderID {
				return &payment.DuplicatePaymentError{OrderID: p.OrderID, Status: existing.Status}
			}
		}
		p.ID = st.nextID()
		st.payments[p.ID] = copyPayment(p)
		return nil
	})
}

func (r *paymentRepository) find(ctx context.Context, match func(p *payment.Payment) bool) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.s.view(ctx, func(st *state) error {
		for _, p := range st.payments {
			if match(p) {
				out = copyPayment(p)
				return nil
			}
		}
		return payment.ErrPaymentNotFound
	})
	return out, err
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.find(ctx, func(p *payment.Payment) bool { return p.ID == id })
}

func (r *paymentRepository) FindByOrderID(ctx context.Context, orderID uint) (*payment.Payment, error) {
	return r.find(ctx, func(p *payment.Payment) bool { return p.OrderID == orderID })
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	return r.find(ctx, func(p *payment.Payment) bool { return p.TransactionID == transactionID })
}

func (r *paymentRepository) LockByID(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.payments[p.ID]; !ok {
			return payment.ErrPaymentNotFound
		}
		st.payments[p.ID] = copyPayment(p)
		return nil
	})
}
