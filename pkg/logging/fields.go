package logging

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Field constructors for the keys every component logs under.

func Owner(id string) zap.Field { return zap.String("owner_id", id) }

func Account(id string) zap.Field { return zap.String("account_id", id) }

func Transaction(id string) zap.Field { return zap.String("transaction_id", id) }

func Transfer(id string) zap.Field { return zap.String("transfer_id", id) }

func Collection(name string) zap.Field { return zap.String("collection", name) }

func Store(name string) zap.Field { return zap.String("store", name) }

// Amount logs a decimal as its exact string form.
func Amount(key string, d decimal.Decimal) zap.Field { return zap.String(key, d.String()) }
