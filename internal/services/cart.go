package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/trendhub-shop/commerce-platform/internal/errors"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/pricing"
	repository "github.com/trendhub-shop/commerce-platform/internal/repositories"
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, req *models.AddCartItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, userID int64, code string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, userID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, userID int64) error
}

type cartService struct {
	store repository.Store
}

func NewCartService(store repository.Store) CartService {
	return &cartService{store: store}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {

	cart, err := s.store.Repos().Cart.GetCartByUserID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Don't have any cart yet!").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to fetch cart").WithError(err)
	}

	if err := s.hydrateCoupon(ctx, s.store.Repos(), cart); err != nil {
		return nil, err
	}

	return cart, nil
}

// AddItem puts a product into the user's cart, creating the cart lazily on
// first use. When the request carries a quantity the line is set to exactly
// that quantity; when it does not, an existing line is incremented by one.
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, req *models.AddCartItemRequest) (*models.Cart, error) {

	err := s.store.Transact(ctx, func(r *repository.Repos) error {

		product, err := r.Product.GetProductByID(ctx, productID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Product not found").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch product").WithError(err)
		}

		if product.Status == models.ProductStatusDiscontinued {
			return errors.InvalidStateError("Product is no longer available")
		}

		if product.Status == models.ProductStatusOutOfStock || product.Quantity < 1 {
			return errors.InvalidStateError("Product is out of stock")
		}

		if req.Quantity != nil && *req.Quantity > product.Quantity {
			return errors.BadRequestError("Requested quantity exceeds available stock")
		}

		cart, err := r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if !stderrors.Is(err, sql.ErrNoRows) {
				return errors.DatabaseError("Failed to fetch cart").WithError(err)
			}

			cart, err = r.Cart.CreateCart(ctx, userID)
			if err != nil {
				return errors.DatabaseError("Failed to create cart").WithError(err)
			}
		}

		item, err := r.Cart.GetItem(ctx, cart.ID, productID)

		switch {
		case err == nil:
			quantity := item.Quantity + 1
			if req.Quantity != nil {
				quantity = *req.Quantity
			}

			if err := r.Cart.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
				return errors.DatabaseError("Failed to update cart item").WithError(err)
			}

		case stderrors.Is(err, sql.ErrNoRows):
			quantity := 1
			if req.Quantity != nil {
				quantity = *req.Quantity
			}

			newItem := &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
			if err := r.Cart.CreateItem(ctx, newItem); err != nil {
				return errors.DatabaseError("Failed to add cart item").WithError(err)
			}

		default:
			return errors.DatabaseError("Failed to fetch cart item").WithError(err)
		}

		return s.recomputeTotals(ctx, r, cart)
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {

	err := s.store.Transact(ctx, func(r *repository.Repos) error {

		cart, err := r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Don't have any cart yet!").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch cart").WithError(err)
		}

		item, err := r.Cart.GetItem(ctx, cart.ID, productID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Product not found in cart").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch cart item").WithError(err)
		}

		if err := r.Cart.DeleteItem(ctx, item.ID); err != nil {
			return errors.DatabaseError("Failed to remove cart item").WithError(err)
		}

		return s.recomputeTotals(ctx, r, cart)
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// ApplyCoupon attaches a coupon to the cart and consumes one usage slot. The
// slot is not returned if the coupon is later removed. The usage increment is
// guarded in SQL, so two carts racing for the last slot cannot both win.
func (s *cartService) ApplyCoupon(ctx context.Context, userID int64, code string) (*models.Cart, error) {

	err := s.store.Transact(ctx, func(r *repository.Repos) error {

		cart, err := r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Don't have any cart yet!").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch cart").WithError(err)
		}

		if cart.CouponID != nil {
			return errors.InvalidStateError("Coupon already applied to the cart")
		}

		coupon, err := r.Coupon.GetCouponByCodeForUpdate(ctx, code)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.BadRequestError("Invalid coupon code").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch coupon").WithError(err)
		}

		if coupon.Expired(time.Now()) {
			return errors.BadRequestError("Coupon has expired")
		}

		if coupon.Exhausted() {
			return errors.BadRequestError("Coupon usage limit reached")
		}

		if err := r.Coupon.IncrementUsage(ctx, coupon.ID); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.BadRequestError("Coupon usage limit reached").WithError(err)
			}

			return errors.DatabaseError("Failed to update coupon usage").WithError(err)
		}

		discounted := pricing.ApplyCoupon(cart.TotalPrice, coupon)

		if err := r.Cart.SetCoupon(ctx, cart.ID, &coupon.ID, discounted); err != nil {
			return errors.DatabaseError("Failed to apply coupon").WithError(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// RemoveCoupon detaches the coupon and resets the discounted total to zero.
// The consumed usage slot stays consumed.
func (s *cartService) RemoveCoupon(ctx context.Context, userID int64) (*models.Cart, error) {

	err := s.store.Transact(ctx, func(r *repository.Repos) error {

		cart, err := r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Don't have any cart yet!").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch cart").WithError(err)
		}

		if cart.CouponID == nil {
			return errors.InvalidStateError("No coupon applied to the cart")
		}

		if err := r.Cart.SetCoupon(ctx, cart.ID, nil, 0); err != nil {
			return errors.DatabaseError("Failed to remove coupon").WithError(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *cartService) ClearCart(ctx context.Context, userID int64) error {

	return s.store.Transact(ctx, func(r *repository.Repos) error {

		cart, err := r.Cart.GetCartByUserIDForUpdate(ctx, userID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Don't have any cart yet!").WithError(err)
			}

			return errors.DatabaseError("Failed to fetch cart").WithError(err)
		}

		if err := r.Cart.DeleteCart(ctx, cart.ID); err != nil {
			return errors.DatabaseError("Failed to clear cart").WithError(err)
		}

		return nil
	})
}

// recomputeTotals reloads the cart's items after a line mutation and derives
// both totals from scratch, reapplying the attached coupon to the fresh
// subtotal rather than patching the old numbers.
func (s *cartService) recomputeTotals(ctx context.Context, r *repository.Repos, cart *models.Cart) error {

	fresh, err := r.Cart.GetCartByUserID(ctx, cart.UserID)
	if err != nil {
		return errors.DatabaseError("Failed to reload cart").WithError(err)
	}

	var coupon *models.Coupon

	if fresh.CouponID != nil {
		coupon, err = r.Coupon.GetCouponByID(ctx, *fresh.CouponID)
		if err != nil {
			return errors.DatabaseError("Failed to fetch coupon").WithError(err)
		}
	}

	fresh.TotalPrice, fresh.TotalPriceAfterDiscount = pricing.CartTotals(fresh.Items, coupon)

	if err := r.Cart.UpdateTotals(ctx, fresh); err != nil {
		return errors.DatabaseError("Failed to update cart totals").WithError(err)
	}

	return nil
}

func (s *cartService) hydrateCoupon(ctx context.Context, r *repository.Repos, cart *models.Cart) error {

	if cart.CouponID == nil {
		return nil
	}

	coupon, err := r.Coupon.GetCouponByID(ctx, *cart.CouponID)
	if err != nil {
		return errors.DatabaseError("Failed to fetch coupon").WithError(err)
	}

	cart.Coupon = coupon

	return nil
}
