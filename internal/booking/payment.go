package booking

import (
	"fmt"
	"sort"
	"strings"
)

// PaymentMethod is one of the supported ways to pay.  Values are the
// names the booking API expects.
type PaymentMethod string

const (
	CreditCard PaymentMethod = "Credit Card"
	UPI        PaymentMethod = "UPI"
	Wallet     PaymentMethod = "Wallet"
)

// PaymentMethods lists the supported methods in display order.
var PaymentMethods = []PaymentMethod{CreditCard, UPI, Wallet}

// Payment form field names.
const (
	FieldCardNumber     = "cardNumber"
	FieldExpiryDate     = "expiryDate"
	FieldCVV            = "cvv"
	FieldCardholderName = "cardholderName"
	FieldUPIID          = "upiId"
	FieldWalletType     = "walletType"
	FieldWalletID       = "walletId"
)

var methodFields = map[PaymentMethod][]string{
	CreditCard: {FieldCardNumber, FieldExpiryDate, FieldCVV, FieldCardholderName},
	UPI:        {FieldUPIID},
	Wallet:     {FieldWalletType, FieldWalletID},
}

// ParsePaymentMethod accepts the display name, case-insensitively and
// ignoring spaces, dashes and underscores ("credit_card", "CreditCard").
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	norm := func(v string) string {
		return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(v)))
	}
	want := norm(s)
	for _, m := range PaymentMethods {
		if norm(string(m)) == want {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
}

// Fields returns the required fields of m in display order.
func (m PaymentMethod) Fields() []string {
	f := methodFields[m]
	out := make([]string, len(f))
	copy(out, f)
	return out
}

func (m PaymentMethod) valid() bool {
	_, ok := methodFields[m]
	return ok
}

func (m PaymentMethod) hasField(name string) bool {
	for _, f := range methodFields[m] {
		if f == name {
			return true
		}
	}
	return false
}

// FieldValidator checks the format of a single, non-empty field value.
// Validators are optional; without one only presence is enforced.
type FieldValidator func(field, value string) error

// PaymentForm collects the fields of the chosen payment method.
type PaymentForm struct {
	method     PaymentMethod
	values     map[string]string
	validators map[PaymentMethod]FieldValidator
}

// NewPaymentForm returns a form with no method chosen.
func NewPaymentForm(validators map[PaymentMethod]FieldValidator) *PaymentForm {
	v := make(map[PaymentMethod]FieldValidator, len(validators))
	for m, fn := range validators {
		v[m] = fn
	}
	return &PaymentForm{values: map[string]string{}, validators: v}
}

// SelectMethod makes m the active method and discards every value
// entered so far, including values entered for m itself.
func (f *PaymentForm) SelectMethod(m PaymentMethod) error {
	if !m.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, m)
	}
	f.method = m
	f.values = map[string]string{}
	return nil
}

// SetField stores a raw value for a field of the active method.
func (f *PaymentForm) SetField(name, value string) error {
	if f.method == "" {
		return ErrNoPaymentMethod
	}
	if !f.method.hasField(name) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownField, name, f.method)
	}
	f.values[name] = value
	return nil
}

// Method returns the active method, or "" when none is chosen.
func (f *PaymentForm) Method() PaymentMethod { return f.method }

// Values returns a copy of the entered values.
func (f *PaymentForm) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Missing returns the required fields of the active method that are
// empty or blank, sorted.
func (f *PaymentForm) Missing() []string {
	var missing []string
	for _, name := range methodFields[f.method] {
		if strings.TrimSpace(f.values[name]) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Validate returns nil when a method is chosen and every required field
// is present (and passes the method's validator, if any).  Otherwise it
// returns an *InvalidSubmissionError naming the problem.
func (f *PaymentForm) Validate() error {
	if f.method == "" {
		return &InvalidSubmissionError{Reason: ReasonNoPaymentMethod}
	}
	if missing := f.Missing(); len(missing) > 0 {
		return &InvalidSubmissionError{Reason: ReasonMissingFields, Fields: missing}
	}
	if fn := f.validators[f.method]; fn != nil {
		for _, name := range methodFields[f.method] {
			if err := fn(name, f.values[name]); err != nil {
				return &InvalidSubmissionError{Reason: ReasonInvalidField, Fields: []string{name}, Err: err}
			}
		}
	}
	return nil
}

// Details validates the form and returns the typed payment details.
func (f *PaymentForm) Details() (PaymentDetails, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	v := f.values
	switch f.method {
	case CreditCard:
		return CreditCardDetails{
			CardNumber:     v[FieldCardNumber],
			ExpiryDate:     v[FieldExpiryDate],
			CVV:            v[FieldCVV],
			CardholderName: v[FieldCardholderName],
		}, nil
	case UPI:
		return UPIDetails{ID: v[FieldUPIID]}, nil
	default:
		return WalletDetails{Type: v[FieldWalletType], ID: v[FieldWalletID]}, nil
	}
}

// Reset drops the method and every value.
func (f *PaymentForm) Reset() {
	f.method = ""
	f.values = map[string]string{}
}

// PaymentDetails is the complete payment data of one method.  The
// concrete types are CreditCardDetails, UPIDetails and WalletDetails.
type PaymentDetails interface {
	Method() PaymentMethod
	// Fields returns the details keyed by form field name.
	Fields() map[string]string
}

type CreditCardDetails struct {
	CardNumber     string
	ExpiryDate     string
	CVV            string
	CardholderName string
}

func (CreditCardDetails) Method() PaymentMethod { return CreditCard }

func (d CreditCardDetails) Fields() map[string]string {
	return map[string]string{
		FieldCardNumber:     d.CardNumber,
		FieldExpiryDate:     d.ExpiryDate,
		FieldCVV:            d.CVV,
		FieldCardholderName: d.CardholderName,
	}
}

type UPIDetails struct {
	ID string
}

func (UPIDetails) Method() PaymentMethod { return UPI }

func (d UPIDetails) Fields() map[string]string {
	return map[string]string{FieldUPIID: d.ID}
}

type WalletDetails struct {
	Type string
	ID   string
}

func (WalletDetails) Method() PaymentMethod { return Wallet }

func (d WalletDetails) Fields() map[string]string {
	return map[string]string{FieldWalletType: d.Type, FieldWalletID: d.ID}
}

// maskField hides sensitive payment values for display.
func maskField(name, value string) string {
	switch name {
	case FieldCVV:
		if value == "" {
			return ""
		}
		return "***"
	case FieldCardNumber:
		if len(value) <= 4 {
			return value
		}
		return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
	}
	return value
}
