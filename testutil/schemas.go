package testutil

import "github.com/hupe1980/tabgo/record"

// CustomerSchema is the sample customers entity: unique searchable email,
// deletes restricted while orders reference the customer.
func CustomerSchema() *record.Schema {
	return &record.Schema{
		Entity: "customers",
		Fields: map[string]record.FieldDef{
			"name":  {Type: record.FieldTypeString, Required: true, Searchable: true},
			"email": {Type: record.FieldTypeString, Required: true, Searchable: true},
			"phone": {Type: record.FieldTypeString},
		},
		UniqueKeys:     []string{"email"},
		RestrictDelete: true,
	}
}

// OrderSchema is the sample orders entity referencing customers.
func OrderSchema() *record.Schema {
	return &record.Schema{
		Entity: "orders",
		Fields: map[string]record.FieldDef{
			"customer_id": {Type: record.FieldTypeInt, Required: true},
			"amount":      {Type: record.FieldTypeFloat, Required: true},
			"status":      {Type: record.FieldTypeString, Searchable: true},
			"ordered_at":  {Type: record.FieldTypeTime},
		},
		References: map[string]string{"customer_id": "customers"},
	}
}

// TransactionSchema is the sample transactions entity referencing orders.
func TransactionSchema() *record.Schema {
	return &record.Schema{
		Entity: "transactions",
		Fields: map[string]record.FieldDef{
			"order_id": {Type: record.FieldTypeInt, Required: true},
			"amount":   {Type: record.FieldTypeFloat, Required: true},
			"paid_at":  {Type: record.FieldTypeTime},
		},
		References: map[string]string{"order_id": "orders"},
	}
}

// ExpenseSchema is the sample expenses entity.
func ExpenseSchema() *record.Schema {
	return &record.Schema{
		Entity: "expenses",
		Fields: map[string]record.FieldDef{
			"category":    {Type: record.FieldTypeString, Searchable: true},
			"description": {Type: record.FieldTypeString, Searchable: true},
			"amount":      {Type: record.FieldTypeFloat, Required: true},
			"spent_at":    {Type: record.FieldTypeTime},
		},
	}
}

// IncomeSchema is the sample income entity.
func IncomeSchema() *record.Schema {
	return &record.Schema{
		Entity: "income",
		Fields: map[string]record.FieldDef{
			"source":      {Type: record.FieldTypeString, Searchable: true},
			"amount":      {Type: record.FieldTypeFloat, Required: true},
			"received_at": {Type: record.FieldTypeTime},
		},
	}
}

// DashboardSchemas returns the full sample schema set: customers with
// dependent orders and transactions, plus standalone expenses and income.
func DashboardSchemas() []*record.Schema {
	return []*record.Schema{
		CustomerSchema(),
		OrderSchema(),
		TransactionSchema(),
		ExpenseSchema(),
		IncomeSchema(),
	}
}
