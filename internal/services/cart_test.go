package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	appErrors "github.com/trendhub-shop/commerce-platform/internal/errors"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	service "github.com/trendhub-shop/commerce-platform/internal/services"
)

func intPtr(v int) *int { return &v }

func activeProduct(id int64, price float64, stock int) *models.Product {
	return &models.Product{
		ID:       id,
		Name:     "Desk Lamp",
		Price:    price,
		Quantity: stock,
		Status:   models.ProductStatusActive,
	}
}

func TestGetCart(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)

	t.Run("Success - Cart Found", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		existingCart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 30}
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(existingCart, nil).Once()

		// Act
		cart, err := cartService.GetCart(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, cart)
		assert.Equal(t, userID, cart.UserID)
		assert.Equal(t, 30.0, cart.TotalPrice)
		repos.AssertExpectations(t)
	})

	t.Run("Success - Coupon Hydrated", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		couponID := int64(9)
		existingCart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100, TotalPriceAfterDiscount: 80, CouponID: &couponID}
		coupon := &models.Coupon{ID: couponID, Code: "SAVE20", Type: models.CouponTypePercentage, Discount: 20}
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(existingCart, nil).Once()
		repos.Coupon.On("GetCouponByID", ctx, couponID).Return(coupon, nil).Once()

		// Act
		cart, err := cartService.GetCart(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, cart.Coupon)
		assert.Equal(t, "SAVE20", cart.Coupon.Code)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Cart Not Found", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(nil, sql.ErrNoRows).Once()

		// Act
		cart, err := cartService.GetCart(ctx, userID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, cart)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		repos.AssertExpectations(t)
	})
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)
	productID := int64(3)

	t.Run("Success - First Item Creates Cart", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		product := activeProduct(productID, 10, 5)
		newCart := &models.Cart{ID: 5, UserID: userID}
		freshCart := &models.Cart{ID: 5, UserID: userID, Items: []models.CartItem{
			{ID: 11, CartID: 5, ProductID: productID, Quantity: 2, Product: product},
		}}

		repos.Product.On("GetProductByID", ctx, productID).Return(product, nil).Once()
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(nil, sql.ErrNoRows).Once()
		repos.Cart.On("CreateCart", ctx, userID).Return(newCart, nil).Once()
		repos.Cart.On("GetItem", ctx, newCart.ID, productID).Return(nil, sql.ErrNoRows).Once()
		repos.Cart.On("CreateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Run(func(args mock.Arguments) {
			item := args.Get(1).(*models.CartItem)
			assert.Equal(t, newCart.ID, item.CartID)
			assert.Equal(t, productID, item.ProductID)
			assert.Equal(t, 2, item.Quantity)
		}).Once()
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(freshCart, nil).Twice()
		repos.Cart.On("UpdateTotals", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Run(func(args mock.Arguments) {
			cartArg := args.Get(1).(*models.Cart)
			assert.Equal(t, 20.0, cartArg.TotalPrice)
			assert.Equal(t, 0.0, cartArg.TotalPriceAfterDiscount)
		}).Once()

		// Act
		cart, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{Quantity: intPtr(2)})

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, cart)
		assert.Len(t, cart.Items, 1)
		repos.AssertExpectations(t)
	})

	t.Run("Success - Omitted Quantity Increments Existing Line", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		product := activeProduct(productID, 10, 5)
		cart := &models.Cart{ID: 1, UserID: userID}
		existingItem := &models.CartItem{ID: 11, CartID: 1, ProductID: productID, Quantity: 2}
		freshCart := &models.Cart{ID: 1, UserID: userID, Items: []models.CartItem{
			{ID: 11, CartID: 1, ProductID: productID, Quantity: 3, Product: product},
		}}

		repos.Product.On("GetProductByID", ctx, productID).Return(product, nil).Once()
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Cart.On("GetItem", ctx, cart.ID, productID).Return(existingItem, nil).Once()
		repos.Cart.On("UpdateItemQuantity", ctx, existingItem.ID, 3).Return(nil).Once()
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(freshCart, nil).Twice()
		repos.Cart.On("UpdateTotals", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Run(func(args mock.Arguments) {
			cartArg := args.Get(1).(*models.Cart)
			assert.Equal(t, 30.0, cartArg.TotalPrice)
		}).Once()

		// Act
		result, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{})

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, result)
		repos.AssertExpectations(t)
	})

	t.Run("Success - Attached Coupon Reapplied To New Subtotal", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		product := activeProduct(productID, 10, 5)
		couponID := int64(9)
		coupon := &models.Coupon{ID: couponID, Code: "FLAT5", Type: models.CouponTypeFixed, Discount: 5}
		cart := &models.Cart{ID: 1, UserID: userID, CouponID: &couponID}
		freshCart := &models.Cart{ID: 1, UserID: userID, CouponID: &couponID, Items: []models.CartItem{
			{ID: 11, CartID: 1, ProductID: productID, Quantity: 2, Product: product},
		}}

		repos.Product.On("GetProductByID", ctx, productID).Return(product, nil).Once()
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Cart.On("GetItem", ctx, cart.ID, productID).Return(nil, sql.ErrNoRows).Once()
		repos.Cart.On("CreateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Once()
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(freshCart, nil).Twice()
		repos.Coupon.On("GetCouponByID", ctx, couponID).Return(coupon, nil).Twice()
		repos.Cart.On("UpdateTotals", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Run(func(args mock.Arguments) {
			cartArg := args.Get(1).(*models.Cart)
			assert.Equal(t, 20.0, cartArg.TotalPrice)
			assert.Equal(t, 15.0, cartArg.TotalPriceAfterDiscount)
		}).Once()

		// Act
		result, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{Quantity: intPtr(2)})

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, result)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Product Not Found", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		repos.Product.On("GetProductByID", ctx, productID).Return(nil, sql.ErrNoRows).Once()

		// Act
		cart, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, cart)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Discontinued Product", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		product := activeProduct(productID, 10, 5)
		product.Status = models.ProductStatusDiscontinued
		repos.Product.On("GetProductByID", ctx, productID).Return(product, nil).Once()

		// Act
		cart, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, cart)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeInvalidState, appErr.Code)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Out Of Stock", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		product := activeProduct(productID, 10, 0)
		repos.Product.On("GetProductByID", ctx, productID).Return(product, nil).Once()

		// Act
		cart, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, cart)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeInvalidState, appErr.Code)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Quantity Exceeds Stock", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		product := activeProduct(productID, 10, 5)
		repos.Product.On("GetProductByID", ctx, productID).Return(product, nil).Once()

		// Act
		cart, err := cartService.AddItem(ctx, userID, productID, &models.AddCartItemRequest{Quantity: intPtr(20)})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, cart)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		repos.AssertExpectations(t)
	})
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)
	productID := int64(3)

	t.Run("Success", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		cart := &models.Cart{ID: 1, UserID: userID}
		item := &models.CartItem{ID: 11, CartID: 1, ProductID: productID, Quantity: 2}
		emptyCart := &models.Cart{ID: 1, UserID: userID}

		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Cart.On("GetItem", ctx, cart.ID, productID).Return(item, nil).Once()
		repos.Cart.On("DeleteItem", ctx, item.ID).Return(nil).Once()
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(emptyCart, nil).Twice()
		repos.Cart.On("UpdateTotals", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Run(func(args mock.Arguments) {
			cartArg := args.Get(1).(*models.Cart)
			assert.Equal(t, 0.0, cartArg.TotalPrice)
		}).Once()

		// Act
		result, err := cartService.RemoveItem(ctx, userID, productID)

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, result)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Product Not In Cart", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		cart := &models.Cart{ID: 1, UserID: userID}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Cart.On("GetItem", ctx, cart.ID, productID).Return(nil, sql.ErrNoRows).Once()

		// Act
		result, err := cartService.RemoveItem(ctx, userID, productID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		repos.AssertExpectations(t)
	})
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)

	validCoupon := func() *models.Coupon {
		return &models.Coupon{
			ID:             9,
			Code:           "SAVE20",
			Type:           models.CouponTypePercentage,
			Discount:       20,
			ExpirationDate: time.Now().Add(24 * time.Hour),
			MaxUsage:       5,
			CurrentUsage:   1,
		}
	}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		coupon := validCoupon()
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}
		updatedCart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100, TotalPriceAfterDiscount: 80, CouponID: &coupon.ID}

		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Coupon.On("GetCouponByCodeForUpdate", ctx, "SAVE20").Return(coupon, nil).Once()
		repos.Coupon.On("IncrementUsage", ctx, coupon.ID).Return(nil).Once()
		repos.Cart.On("SetCoupon", ctx, cart.ID, mock.MatchedBy(func(id *int64) bool {
			return id != nil && *id == coupon.ID
		}), 80.0).Return(nil).Once()
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(updatedCart, nil).Once()
		repos.Coupon.On("GetCouponByID", ctx, coupon.ID).Return(coupon, nil).Once()

		// Act
		result, err := cartService.ApplyCoupon(ctx, userID, "SAVE20")

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, 80.0, result.TotalPriceAfterDiscount)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Coupon Already Applied", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		couponID := int64(9)
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100, CouponID: &couponID}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()

		// Act
		result, err := cartService.ApplyCoupon(ctx, userID, "SAVE20")

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeInvalidState, appErr.Code)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Code", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Coupon.On("GetCouponByCodeForUpdate", ctx, "NOPE").Return(nil, sql.ErrNoRows).Once()

		// Act
		result, err := cartService.ApplyCoupon(ctx, userID, "NOPE")

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		assert.Equal(t, "Invalid coupon code", appErr.Message)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Expired Coupon", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		coupon := validCoupon()
		coupon.ExpirationDate = time.Now().Add(-24 * time.Hour)
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Coupon.On("GetCouponByCodeForUpdate", ctx, "SAVE20").Return(coupon, nil).Once()

		// Act
		result, err := cartService.ApplyCoupon(ctx, userID, "SAVE20")

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		assert.Equal(t, "Coupon has expired", appErr.Message)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Usage Limit Reached", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		coupon := validCoupon()
		coupon.CurrentUsage = coupon.MaxUsage
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Coupon.On("GetCouponByCodeForUpdate", ctx, "SAVE20").Return(coupon, nil).Once()

		// Act
		result, err := cartService.ApplyCoupon(ctx, userID, "SAVE20")

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		assert.Equal(t, "Coupon usage limit reached", appErr.Message)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - Lost Race For Last Usage Slot", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		coupon := validCoupon()
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Coupon.On("GetCouponByCodeForUpdate", ctx, "SAVE20").Return(coupon, nil).Once()
		repos.Coupon.On("IncrementUsage", ctx, coupon.ID).Return(sql.ErrNoRows).Once()

		// Act
		result, err := cartService.ApplyCoupon(ctx, userID, "SAVE20")

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		assert.Equal(t, "Coupon usage limit reached", appErr.Message)
		repos.AssertExpectations(t)
	})
}

func TestRemoveCoupon(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)

	t.Run("Success - Discounted Total Reset To Zero", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		couponID := int64(9)
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100, TotalPriceAfterDiscount: 80, CouponID: &couponID}
		clearedCart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}

		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Cart.On("SetCoupon", ctx, cart.ID, mock.MatchedBy(func(id *int64) bool {
			return id == nil
		}), 0.0).Return(nil).Once()
		repos.Cart.On("GetCartByUserID", ctx, userID).Return(clearedCart, nil).Once()

		// Act
		result, err := cartService.RemoveCoupon(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, 0.0, result.TotalPriceAfterDiscount)
		assert.Nil(t, result.CouponID)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - No Coupon Applied", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		cart := &models.Cart{ID: 1, UserID: userID, TotalPrice: 100}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()

		// Act
		result, err := cartService.RemoveCoupon(ctx, userID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, result)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeInvalidState, appErr.Code)
		repos.AssertExpectations(t)
	})
}

func TestClearCart(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)

	t.Run("Success", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		cart := &models.Cart{ID: 1, UserID: userID}
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(cart, nil).Once()
		repos.Cart.On("DeleteCart", ctx, cart.ID).Return(nil).Once()

		// Act
		err := cartService.ClearCart(ctx, userID)

		// Assert
		assert.NoError(t, err)
		repos.AssertExpectations(t)
	})

	t.Run("Failure - No Cart", func(t *testing.T) {
		// Arrange
		store, repos := newMockStore()
		cartService := service.NewCartService(store)
		repos.Cart.On("GetCartByUserIDForUpdate", ctx, userID).Return(nil, sql.ErrNoRows).Once()

		// Act
		err := cartService.ClearCart(ctx, userID)

		// Assert
		assert.Error(t, err)
		var appErr *appErrors.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
		repos.AssertExpectations(t)
	})
}
