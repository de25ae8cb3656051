package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

func TestNewState_Defaults(t *testing.T) {
	st := NewState()

	assert.True(t, st.BillingSameAsShipping)
	assert.False(t, st.OrderValidated)
	assert.Equal(t, PaymentMethodStripe, st.Data.PaymentMethod)
	assert.Equal(t, shipping.MethodFlatRate, st.Data.ShippingMethod)
	assert.Equal(t, DefaultCountry, st.Data.Shipping.Country)
}

func TestStore_MutatorsReturnSettledState(t *testing.T) {
	s := NewStore(NewState())

	st := s.SetItems(items())
	assert.True(t, d("50").Equal(st.Data.Subtotal))
	assert.True(t, d("50").Equal(st.Data.Total))

	st = s.SetShippingMethod(shipping.MethodFlatRate, d("9.95"))
	assert.True(t, d("59.95").Equal(st.Data.Total))

	st = s.ApplyCoupon(coupon.Applied{Code: "SAVE10", Discount: d("5")})
	assert.True(t, d("54.95").Equal(st.Data.Total))

	st = s.RemoveCoupon()
	assert.True(t, d("59.95").Equal(st.Data.Total))
	assertSameJSON(t, st, s.State())
}

func TestStore_SetShippingMirrorsBilling(t *testing.T) {
	s := NewStore(NewState())

	st := s.SetShipping(address())
	assert.Equal(t, address(), st.Data.Billing)

	s.SetBillingSameAsShipping(false)
	other := address()
	other.City = "Shelbyville"
	st = s.SetShipping(other)
	assert.Equal(t, "Springfield", st.Data.Billing.City)

	st = s.SetBillingSameAsShipping(true)
	assert.Equal(t, "Shelbyville", st.Data.Billing.City)
}

func TestStore_AddressWithoutEmailKeepsContact(t *testing.T) {
	s := NewStore(NewState())
	s.SetItems(items())
	s.SetEmail("ada@example.com")

	noEmail := address()
	noEmail.Email = ""
	st := s.SetShipping(noEmail)
	assert.Equal(t, "ada@example.com", st.Data.Shipping.Email)
	assert.Equal(t, "ada@example.com", st.Data.Billing.Email)
	assert.True(t, st.OrderValidated)

	st = s.SetBilling(Address{FirstName: "Grace"})
	assert.Equal(t, "ada@example.com", st.Data.Billing.Email)

	st = s.SetBillingSameAsShipping(true)
	assert.Equal(t, "ada@example.com", st.Data.Billing.Email)

	// A new email in the form replaces the saved one.
	other := address()
	other.Email = "grace@example.com"
	st = s.SetShipping(other)
	assert.Equal(t, "grace@example.com", st.Data.Shipping.Email)
	assert.Equal(t, "grace@example.com", st.Data.Billing.Email)
}

func TestStore_OrderValidatedTracksCompleteness(t *testing.T) {
	s := NewStore(NewState())

	st := s.SetShipping(address())
	assert.False(t, st.OrderValidated, "cart is empty")

	st = s.SetItems(items())
	assert.True(t, st.OrderValidated)

	st = s.SetEmail("")
	assert.False(t, st.OrderValidated)
	assert.False(t, st.EmailSaved)

	st = s.SetEmail("ada@example.com")
	assert.True(t, st.OrderValidated)
	assert.True(t, st.EmailSaved)
	assert.Equal(t, "ada@example.com", st.Data.Shipping.Email)
}

func TestStore_OnChangeAndReset(t *testing.T) {
	var seen []State
	s := NewStore(NewState(), WithOnChange(func(st State) { seen = append(seen, st) }))

	s.SetItems(items())
	s.SetOrderID(123)
	s.SetPaymentIntent("pi_secret")
	st := s.Reset()

	require.Len(t, seen, 4)
	assert.Equal(t, int64(123), seen[2].OrderID)
	assert.Equal(t, "pi_secret", seen[2].PaymentIntentClientSecret)
	assertSameJSON(t, NewState(), st)
}

func TestStore_StateIsACopy(t *testing.T) {
	s := NewStore(NewState())
	s.SetItems(items())

	st := s.State()
	st.Data.Items[0].Quantity = 42

	assert.Equal(t, 2, s.State().Data.Items[0].Quantity)
}
