package karte

import (
	"strings"
	"time"

	"github.com/karte/backend/internal/domain/shared"
)

// State is the editing lifecycle state of a record
type State string

const (
	StateEmpty    State = "empty"
	StateLoaded   State = "loaded"
	StateModified State = "modified"
	StateSaved    State = "saved"
)

// Snapshot is a detached deep copy of a record. Repositories persist and
// hydrate snapshots; readers never see the live aggregate.
type Snapshot struct {
	ID           string
	RecordNumber string
	Fields       Fields
	Payments     []Payment
	Expenses     []Expense
	Comments     []Comment
	SalesDetails SalesDetails
	State        State
	Revision     uint64
	LastUpdated  time.Time
	LastSaved    time.Time
}

// IsNew returns true if the record has never been stored
func (s Snapshot) IsNew() bool {
	return s.ID == ""
}

// Summary computes the financial roll-up of the snapshot
func (s Snapshot) Summary() Summary {
	return CalculateSummary(s.Payments, s.Expenses, s.Fields.TotalPersons)
}

// Karte is the record aggregate: scalar fields plus the payments,
// expenses, comments and sales lines it owns.
type Karte struct {
	id           string
	recordNumber string
	fields       Fields
	payments     []Payment
	expenses     []Expense
	comments     []Comment
	sales        SalesDetails
	state        State
	revision     uint64
	lastUpdated  time.Time
	lastSaved    time.Time

	newID shared.IDGenerator
	now   func() time.Time
}

// Option configures a Karte
type Option func(*Karte)

// WithIDGenerator sets the generator for collection entry ids
func WithIDGenerator(gen shared.IDGenerator) Option {
	return func(k *Karte) { k.newID = gen }
}

// WithClock sets the time source used for comment timestamps
func WithClock(now func() time.Time) Option {
	return func(k *Karte) { k.now = now }
}

// New creates an empty, unsaved record with default field values
func New(opts ...Option) *Karte {
	k := &Karte{
		fields:   DefaultFields(),
		payments: []Payment{},
		expenses: []Expense{},
		comments: []Comment{},
		sales:    SalesDetails{Items: []SalesItem{}},
		state:    StateEmpty,
		newID:    shared.NewLocalID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Rehydrate rebuilds a stored record. The result is in the Loaded state.
func Rehydrate(s Snapshot, opts ...Option) *Karte {
	k := New(opts...)
	k.id = s.ID
	k.recordNumber = s.RecordNumber
	k.fields = s.Fields
	k.payments = clonePayments(s.Payments)
	k.expenses = cloneExpenses(s.Expenses)
	k.comments = cloneComments(s.Comments)
	k.sales = cloneSales(s.SalesDetails)
	k.lastUpdated = s.LastUpdated
	k.state = StateLoaded
	return k
}

// ID returns the store-assigned id, empty while unsaved
func (k *Karte) ID() string { return k.id }

// RecordNumber returns the human-readable record number
func (k *Karte) RecordNumber() string { return k.recordNumber }

// Fields returns a copy of the scalar fields
func (k *Karte) Fields() Fields { return k.fields }

// State returns the lifecycle state
func (k *Karte) State() State { return k.state }

// Revision increases with every mutation
func (k *Karte) Revision() uint64 { return k.revision }

// IsModified returns true if there are unsaved edits
func (k *Karte) IsModified() bool { return k.state == StateModified }

// Snapshot returns a deep copy of the record
func (k *Karte) Snapshot() Snapshot {
	return Snapshot{
		ID:           k.id,
		RecordNumber: k.recordNumber,
		Fields:       k.fields,
		Payments:     clonePayments(k.payments),
		Expenses:     cloneExpenses(k.expenses),
		Comments:     cloneComments(k.comments),
		SalesDetails: cloneSales(k.sales),
		State:        k.state,
		Revision:     k.revision,
		LastUpdated:  k.lastUpdated,
		LastSaved:    k.lastSaved,
	}
}

// CalculateSummary computes the financial roll-up without mutating
func (k *Karte) CalculateSummary() Summary {
	return CalculateSummary(k.payments, k.expenses, k.fields.TotalPersons)
}

func (k *Karte) touch() {
	k.revision++
	k.state = StateModified
}

// AssignRecordNumber sets the record number. The prefix is aligned with the
// current travel type, so a number generated before a travel type change
// still satisfies the prefix rule.
func (k *Karte) AssignRecordNumber(number string) {
	k.recordNumber = RewritePrefix(number, k.fields.TravelType)
}

// UpdateField sets one scalar field and refreshes derived fields.
//
// Changing travelType rewrites the record number prefix and clears the
// place fields. nights and unitPrice are read-only while their inputs are
// present.
func (k *Karte) UpdateField(name Field, value string) error {
	switch name {
	case FieldTravelType:
		t := TravelType(value)
		if !t.IsValid() {
			return shared.NewValidationError("INVALID_TRAVEL_TYPE", "Travel type must be domestic or international")
		}
		if t != k.fields.TravelType {
			k.fields.TravelType = t
			k.recordNumber = RewritePrefix(k.recordNumber, t)
			k.fields.DeparturePlace = ""
			k.fields.Destination = ""
			k.fields.DestinationOther = ""
		}
		k.touch()
		return nil
	case FieldArrangementStatus:
		s := ArrangementStatus(value)
		if !s.IsValid() {
			return shared.NewValidationError("INVALID_ARRANGEMENT_STATUS", "Arrangement status must be not-started, in-progress or completed")
		}
		k.fields.ArrangementStatus = s
		k.touch()
		return nil
	case FieldNights, FieldUnitPrice:
		if derivedInputsPresent(k.fields, name) {
			return shared.NewValidationError("DERIVED_FIELD", string(name)+" is calculated automatically")
		}
	}

	ptr, ok := k.fields.stringField(name)
	if !ok {
		return errUnknownField(string(name))
	}
	*ptr = value
	recompute(&k.fields, name)
	k.touch()
	return nil
}

// MarkSaved records a successful store write. The id is adopted in any
// case so later saves update the same document; the record only becomes
// unmodified when no mutation happened after revision was captured.
func (k *Karte) MarkSaved(id string, savedAt time.Time, revision uint64) {
	if k.id == "" {
		k.id = id
	}
	k.lastSaved = savedAt
	k.lastUpdated = savedAt
	if k.revision == revision {
		k.state = StateSaved
	}
}

// AddPayment appends a payment with a new id and returns it
func (k *Karte) AddPayment(p Payment) Payment {
	p.ID = k.newID()
	k.payments = append(k.payments, p)
	k.touch()
	return p
}

// UpdatePayment replaces the payment with the same id
func (k *Karte) UpdatePayment(p Payment) error {
	for i := range k.payments {
		if k.payments[i].ID == p.ID {
			k.payments[i] = p
			k.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("payment", p.ID)
}

// DeletePayment removes a payment
func (k *Karte) DeletePayment(id string) error {
	for i := range k.payments {
		if k.payments[i].ID == id {
			k.payments = append(k.payments[:i:i], k.payments[i+1:]...)
			k.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("payment", id)
}

func validateExpenseStatus(e *Expense) error {
	if e.Status == "" {
		e.Status = ExpenseUnarranged
	}
	if !e.Status.IsValid() {
		return shared.NewValidationError("INVALID_EXPENSE_STATUS", "Expense status must be unarranged, arranging, arranged or paid")
	}
	return nil
}

// AddExpense appends an expense with a new id and returns it
func (k *Karte) AddExpense(e Expense) (Expense, error) {
	if err := validateExpenseStatus(&e); err != nil {
		return Expense{}, err
	}
	e.ID = k.newID()
	k.expenses = append(k.expenses, e)
	k.touch()
	return e, nil
}

// UpdateExpense replaces the expense with the same id
func (k *Karte) UpdateExpense(e Expense) error {
	if err := validateExpenseStatus(&e); err != nil {
		return err
	}
	for i := range k.expenses {
		if k.expenses[i].ID == e.ID {
			k.expenses[i] = e
			k.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("expense", e.ID)
}

// DeleteExpense removes an expense
func (k *Karte) DeleteExpense(id string) error {
	for i := range k.expenses {
		if k.expenses[i].ID == id {
			k.expenses = append(k.expenses[:i:i], k.expenses[i+1:]...)
			k.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("expense", id)
}

// AddComment inserts a comment at the head of the list. images must
// already be in their persistable encoding.
func (k *Karte) AddComment(text string, images []string, author string) (Comment, error) {
	if strings.TrimSpace(text) == "" && len(images) == 0 {
		return Comment{}, shared.NewValidationError("EMPTY_COMMENT", "Comment needs text or an image")
	}
	c := Comment{
		ID:     k.newID(),
		Text:   text,
		Images: append([]string{}, images...),
		Author: author,
		Date:   k.now().UTC(),
	}
	k.comments = append([]Comment{c}, k.comments...)
	k.touch()
	return c, nil
}

// DeleteComment removes a comment
func (k *Karte) DeleteComment(id string) error {
	for i := range k.comments {
		if k.comments[i].ID == id {
			k.comments = append(k.comments[:i:i], k.comments[i+1:]...)
			k.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("comment", id)
}

// UpdateSalesDetails replaces all sales lines and the memo. Items without
// an id receive one and unknown categories fall into others.
func (k *Karte) UpdateSalesDetails(d SalesDetails) error {
	items := make([]SalesItem, len(d.Items))
	for i, item := range d.Items {
		if err := validateSalesItem(&item); err != nil {
			return err
		}
		if item.ID == "" {
			item.ID = k.newID()
		}
		item.Category = NormalizeSalesCategory(item.Category)
		items[i] = item
	}
	k.sales = SalesDetails{Items: items, Memo: d.Memo}
	k.touch()
	return nil
}

// AddSalesItem appends a sales line with a new id and computed total
func (k *Karte) AddSalesItem(item SalesItem) (SalesItem, error) {
	if err := validateSalesItem(&item); err != nil {
		return SalesItem{}, err
	}
	item.ID = k.newID()
	item.Category = NormalizeSalesCategory(item.Category)
	item.TotalSales = CalculateSalesTotal(item.UnitPrice, item.PersonCount)
	k.sales.Items = append(k.sales.Items, item)
	k.touch()
	return item, nil
}

// UpdateSalesItem sets one field of one sales line. Editing unitPrice or
// personCount recomputes that line's total and no other.
func (k *Karte) UpdateSalesItem(id string, field SalesItemField, value string) (SalesItem, error) {
	idx := -1
	for i := range k.sales.Items {
		if k.sales.Items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SalesItem{}, shared.NewNotFoundError("sales item", id)
	}

	item := k.sales.Items[idx]
	switch field {
	case SalesFieldCategory:
		item.Category = NormalizeSalesCategory(SalesCategory(value))
	case SalesFieldArrangementStatus:
		item.ArrangementStatus = SalesArrangementStatus(value)
	case SalesFieldContent:
		item.Content = value
	case SalesFieldUsageDate:
		item.UsageDate = value
	case SalesFieldUnitPrice:
		item.UnitPrice = value
		item.TotalSales = CalculateSalesTotal(item.UnitPrice, item.PersonCount)
	case SalesFieldPersonCount:
		item.PersonCount = value
		item.TotalSales = CalculateSalesTotal(item.UnitPrice, item.PersonCount)
	case SalesFieldPaymentStatus:
		item.PaymentStatus = PaymentStatus(value)
	case SalesFieldPaymentTo:
		item.PaymentTo = PaymentMethod(value)
	case SalesFieldPaymentDate:
		item.PaymentDate = value
	case SalesFieldPaymentContactPerson:
		item.PaymentContactPerson = value
	case SalesFieldPaymentContact:
		item.PaymentContact = value
	default:
		return SalesItem{}, errUnknownField(string(field))
	}
	if err := validateSalesItem(&item); err != nil {
		return SalesItem{}, err
	}

	k.sales.Items[idx] = item
	k.touch()
	return item, nil
}

// DeleteSalesItem removes a sales line
func (k *Karte) DeleteSalesItem(id string) error {
	for i := range k.sales.Items {
		if k.sales.Items[i].ID == id {
			k.sales.Items = append(k.sales.Items[:i:i], k.sales.Items[i+1:]...)
			k.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("sales item", id)
}

// SetSalesMemo sets the record-level sales memo
func (k *Karte) SetSalesMemo(memo string) {
	k.sales.Memo = memo
	k.touch()
}

func validateSalesItem(item *SalesItem) error {
	switch item.ArrangementStatus {
	case "":
		item.ArrangementStatus = SalesNotArranged
	case SalesArranged, SalesNotArranged:
	default:
		return shared.NewValidationError("INVALID_SALES_ARRANGEMENT", "Arrangement must be arranged or not-arranged")
	}
	switch item.PaymentStatus {
	case "", PaymentUnpaidLegacy:
		item.PaymentStatus = PaymentScheduled
	case PaymentPaid, PaymentScheduled:
	default:
		return shared.NewValidationError("INVALID_PAYMENT_STATUS", "Payment status must be paid or scheduled")
	}
	if item.PaymentTo != "" && !item.PaymentTo.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method must be zenryoku, oata, cash or other")
	}
	return nil
}

func clonePayments(in []Payment) []Payment {
	return append([]Payment{}, in...)
}

func cloneExpenses(in []Expense) []Expense {
	return append([]Expense{}, in...)
}

func cloneComments(in []Comment) []Comment {
	out := make([]Comment, len(in))
	for i, c := range in {
		c.Images = append([]string{}, c.Images...)
		out[i] = c
	}
	return out
}

func cloneSales(in SalesDetails) SalesDetails {
	return SalesDetails{Items: append([]SalesItem{}, in.Items...), Memo: in.Memo}
}
