package model

import (
	"errors"
	"fmt"
	"testing"

	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSignedAmount(t *testing.T) {
	tests := []struct {
		typ    EntryType
		amount string
		want   string
	}{
		{Income, "200", "200"},
		{Expense, "200", "-200"},
		{Expense, "0.01", "-0.01"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ)+"_"+tt.amount, func(t *testing.T) {
			if got := SignedAmount(tt.typ, d(tt.amount)); !got.Equal(d(tt.want)) {
				t.Errorf("SignedAmount(%s, %s) = %s, want %s", tt.typ, tt.amount, got, tt.want)
			}
		})
	}
}

func TestConvertAmount_IsExact(t *testing.T) {
	got := ConvertAmount(d("300"), d("0.0001"))
	if !got.Equal(d("0.03")) {
		t.Errorf("Expected 0.03, got %s", got)
	}
	if got.String() != "0.03" {
		t.Errorf("Expected string 0.03, got %s", got.String())
	}
}

func TestValidateAmount(t *testing.T) {
	for _, s := range []string{"0", "-1", "-0.0001"} {
		if err := ValidateAmount(d(s)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ValidateAmount(%s) = %v, want ErrInvalidAmount", s, err)
		}
	}
	if err := ValidateAmount(d("0.0001")); err != nil {
		t.Errorf("ValidateAmount(0.0001) = %v", err)
	}
}

func TestValidateCurrency(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"USD", true},
		{NormalizeCurrency(" idr "), true},
		{"usd", false},
		{"US", false},
		{"USDT", false},
		{"", false},
	}

	for _, tt := range tests {
		err := ValidateCurrency(tt.code)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateCurrency(%q) = %v, valid %v", tt.code, err, tt.valid)
		}
	}
}

func TestEnums(t *testing.T) {
	if !AccountCreditCard.Valid() || AccountType("savings").Valid() {
		t.Error("Unexpected AccountType validity")
	}
	if !Income.Valid() || !Expense.Valid() || EntryType("transfer").Valid() {
		t.Error("Unexpected EntryType validity")
	}
}

func TestTransferDeltas(t *testing.T) {
	tr := &Transfer{Amount: d("300"), ConvertedAmount: d("0.03")}
	if !tr.SourceDelta().Equal(d("-300")) {
		t.Errorf("Expected source delta -300, got %s", tr.SourceDelta())
	}
	if !tr.DestinationDelta().Equal(d("0.03")) {
		t.Errorf("Expected destination delta 0.03, got %s", tr.DestinationDelta())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("%w: account a1", ErrNotFound), KindNotFound},
		{store.WrapError(store.ErrNotFound, "memory", "get"), KindNotFound},
		{fmt.Errorf("%w: owner mismatch", ErrForbidden), KindForbidden},
		{ErrInsufficientBalance, KindValidation},
		{ErrSameAccount, KindValidation},
		{ErrInvalidExchangeRate, KindValidation},
		{fmt.Errorf("%w: Food", ErrDuplicateName), KindConflict},
		{store.ErrConflict, KindConflict},
		{store.ErrCircuitOpen, KindUnavailable},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	if Outcome(nil) != "ok" {
		t.Errorf("Expected ok outcome for nil error")
	}
}
