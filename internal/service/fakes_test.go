package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tzmart/internal/domain"
)

// In-memory repo fakes for exercising service logic that stays outside a
// transaction. Anything that needs real locking behaviour is covered by the
// Postgres-backed tests instead.

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
}

func newFakeProductRepo(products ...domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[uuid.UUID]domain.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *fakeProductRepo) FindByIdForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Product, error) {
	return r.FindById(ctx, id)
}

func (r *fakeProductRepo) UpdateStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[id]
	p.StockQuantity = stock
	r.products[id] = p
	return nil
}

func (r *fakeProductRepo) Create(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = *product
	return nil
}

type fakeCartRepo struct {
	mu    sync.Mutex
	lines map[uuid.UUID][]domain.CartLine
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{lines: make(map[uuid.UUID][]domain.CartLine)}
}

func (r *fakeCartRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CartLine(nil), r.lines[userID]...), nil
}

func (r *fakeCartRepo) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines[userID] {
		if l.ProductID == productID {
			line := l
			return &line, nil
		}
	}
	return nil, nil
}

func (r *fakeCartRepo) Upsert(ctx context.Context, line *domain.CartLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.lines[line.UserID] {
		if l.ProductID == line.ProductID {
			r.lines[line.UserID][i] = *line
			return nil
		}
	}
	r.lines[line.UserID] = append(r.lines[line.UserID], *line)
	return nil
}

func (r *fakeCartRepo) DeleteByUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int, error) {
	return r.DeleteAllByUser(ctx, userID)
}

func (r *fakeCartRepo) DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.lines[userID])
	delete(r.lines, userID)
	return n, nil
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]domain.Coupon
	nextID  int64
}

func newFakeCouponRepo(coupons ...domain.Coupon) *fakeCouponRepo {
	r := &fakeCouponRepo{coupons: make(map[string]domain.Coupon)}
	for _, c := range coupons {
		r.nextID++
		c.ID = r.nextID
		r.coupons[strings.ToLower(c.Code)] = c
	}
	return r
}

func (r *fakeCouponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[strings.ToLower(code)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *fakeCouponRepo) FindByCodeForUpdate(ctx context.Context, tx *sql.Tx, code string) (*domain.Coupon, error) {
	return r.FindByCode(ctx, code)
}

func (r *fakeCouponRepo) IncrementUsage(ctx context.Context, tx *sql.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, c := range r.coupons {
		if c.ID == id {
			c.UsedCount++
			r.coupons[k] = c
		}
	}
	return nil
}

func (r *fakeCouponRepo) Create(ctx context.Context, coupon *domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(coupon.Code)
	if _, exists := r.coupons[key]; exists {
		return domain.ErrCouponExists
	}
	r.nextID++
	coupon.ID = r.nextID
	r.coupons[key] = *coupon
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func testUser(region string) domain.User {
	return domain.User{
		ID:        uuid.New(),
		Email:     "mteja@example.tz",
		Name:      "Mteja",
		Region:    region,
		CreatedAt: time.Now(),
	}
}
