package xero

import "net/http"

// paramIn says where a declared parameter travels on the wire.
type paramIn int

const (
	inPath paramIn = iota
	inQuery
	inBody
	inHeader
)

// paramSpec declares one named parameter of an accounting method.
type paramSpec struct {
	name     string
	in       paramIn
	required bool
}

// methodSpec declares one accounting API method: HTTP verb, path template
// with {name} placeholders, and the full parameter list. The table replaces
// any runtime introspection of the vendor surface; adding a method means
// adding a row here.
type methodSpec struct {
	verb   string
	path   string
	params []paramSpec
}

// tenantParam is the parameter every accounting method declares. It is
// satisfied from the discovered tenant set, never from the caller payload.
const tenantParam = "xeroTenantId"

var tenantHeader = paramSpec{name: tenantParam, in: inHeader, required: true}

// accountingMethods is the supported surface of the accounting API
// namespace, keyed by method name as callers pass it in the action name.
var accountingMethods = map[string]methodSpec{
	"getOrganisations": {
		verb:   http.MethodGet,
		path:   "/Organisation",
		params: []paramSpec{tenantHeader},
	},
	"getAccounts": {
		verb: http.MethodGet,
		path: "/Accounts",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
		},
	},
	"getAccount": {
		verb: http.MethodGet,
		path: "/Accounts/{accountID}",
		params: []paramSpec{
			tenantHeader,
			{name: "accountID", in: inPath, required: true},
		},
	},
	"getContacts": {
		verb: http.MethodGet,
		path: "/Contacts",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
			{name: "page", in: inQuery},
		},
	},
	"getContact": {
		verb: http.MethodGet,
		path: "/Contacts/{contactID}",
		params: []paramSpec{
			tenantHeader,
			{name: "contactID", in: inPath, required: true},
		},
	},
	"createContacts": {
		verb: http.MethodPost,
		path: "/Contacts",
		params: []paramSpec{
			tenantHeader,
			{name: "contacts", in: inBody, required: true},
		},
	},
	"updateContact": {
		verb: http.MethodPost,
		path: "/Contacts/{contactID}",
		params: []paramSpec{
			tenantHeader,
			{name: "contactID", in: inPath, required: true},
			{name: "contacts", in: inBody, required: true},
		},
	},
	"getInvoices": {
		verb: http.MethodGet,
		path: "/Invoices",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
			{name: "page", in: inQuery},
			{name: "statuses", in: inQuery},
		},
	},
	"getInvoice": {
		verb: http.MethodGet,
		path: "/Invoices/{invoiceID}",
		params: []paramSpec{
			tenantHeader,
			{name: "invoiceID", in: inPath, required: true},
		},
	},
	"createInvoices": {
		verb: http.MethodPost,
		path: "/Invoices",
		params: []paramSpec{
			tenantHeader,
			{name: "invoices", in: inBody, required: true},
		},
	},
	"updateInvoice": {
		verb: http.MethodPost,
		path: "/Invoices/{invoiceID}",
		params: []paramSpec{
			tenantHeader,
			{name: "invoiceID", in: inPath, required: true},
			{name: "invoices", in: inBody, required: true},
		},
	},
	"getBankTransactions": {
		verb: http.MethodGet,
		path: "/BankTransactions",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
			{name: "page", in: inQuery},
		},
	},
	"createBankTransactions": {
		verb: http.MethodPost,
		path: "/BankTransactions",
		params: []paramSpec{
			tenantHeader,
			{name: "bankTransactions", in: inBody, required: true},
		},
	},
	"getPayments": {
		verb: http.MethodGet,
		path: "/Payments",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
		},
	},
	"createPayments": {
		verb: http.MethodPost,
		path: "/Payments",
		params: []paramSpec{
			tenantHeader,
			{name: "payments", in: inBody, required: true},
		},
	},
	"getItems": {
		verb: http.MethodGet,
		path: "/Items",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
		},
	},
	"createItems": {
		verb: http.MethodPost,
		path: "/Items",
		params: []paramSpec{
			tenantHeader,
			{name: "items", in: inBody, required: true},
		},
	},
	"getTaxRates": {
		verb: http.MethodGet,
		path: "/TaxRates",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
		},
	},
	"getCurrencies": {
		verb: http.MethodGet,
		path: "/Currencies",
		params: []paramSpec{
			tenantHeader,
			{name: "where", in: inQuery},
			{name: "order", in: inQuery},
		},
	},
}
