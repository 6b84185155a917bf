package karte

import (
	"time"

	"github.com/karte/backend/internal/domain/shared"
)

// TravelType distinguishes domestic from international trips
type TravelType string

const (
	TravelTypeDomestic      TravelType = "domestic"
	TravelTypeInternational TravelType = "international"
)

// IsValid returns true if the travel type is known
func (t TravelType) IsValid() bool {
	return t == TravelTypeDomestic || t == TravelTypeInternational
}

// ArrangementStatus tracks overall arrangement progress of a record
type ArrangementStatus string

const (
	ArrangementNotStarted ArrangementStatus = "not-started"
	ArrangementInProgress ArrangementStatus = "in-progress"
	ArrangementCompleted  ArrangementStatus = "completed"
)

// IsValid returns true if the arrangement status is known
func (s ArrangementStatus) IsValid() bool {
	switch s {
	case ArrangementNotStarted, ArrangementInProgress, ArrangementCompleted:
		return true
	}
	return false
}

// ExpenseStatus tracks a single expense from arrangement through payment
type ExpenseStatus string

const (
	ExpenseUnarranged ExpenseStatus = "unarranged"
	ExpenseArranging  ExpenseStatus = "arranging"
	ExpenseArranged   ExpenseStatus = "arranged"
	ExpensePaid       ExpenseStatus = "paid"
)

// IsValid returns true if the expense status is known
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseUnarranged, ExpenseArranging, ExpenseArranged, ExpensePaid:
		return true
	}
	return false
}

// SalesCategory groups sales line items. The value doubles as the storage key.
type SalesCategory string

const (
	SalesAccommodation  SalesCategory = "accommodation"
	SalesTransportation SalesCategory = "transportation"
	SalesMeals          SalesCategory = "meals"
	SalesOthers         SalesCategory = "others"
)

// SalesCategories lists the categories in display and storage order
var SalesCategories = []SalesCategory{SalesAccommodation, SalesTransportation, SalesMeals, SalesOthers}

// NormalizeSalesCategory maps unknown or empty categories to SalesOthers
func NormalizeSalesCategory(c SalesCategory) SalesCategory {
	switch c {
	case SalesAccommodation, SalesTransportation, SalesMeals:
		return c
	}
	return SalesOthers
}

// SalesArrangementStatus is the arrangement state of one sales line
type SalesArrangementStatus string

const (
	SalesArranged    SalesArrangementStatus = "arranged"
	SalesNotArranged SalesArrangementStatus = "not-arranged"
)

// PaymentStatus is the settlement state of one sales line
type PaymentStatus string

const (
	PaymentPaid      PaymentStatus = "paid"
	PaymentScheduled PaymentStatus = "scheduled"
	// PaymentUnpaidLegacy is only ever read from old documents.
	PaymentUnpaidLegacy PaymentStatus = "unpaid"
)

// PaymentMethod is how a sales line is settled
type PaymentMethod string

const (
	PaymentMethodZenryoku PaymentMethod = "zenryoku"
	PaymentMethodOata     PaymentMethod = "oata"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodOther    PaymentMethod = "other"
)

// IsValid returns true if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodZenryoku, PaymentMethodOata, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// DestinationOther is the destination choice that defers to DestinationOther text
const DestinationOther = "other"

// Fields are the scalar fields of a record. Every value is kept as entered;
// numeric fields are parsed leniently when used in calculations.
type Fields struct {
	TravelType        TravelType
	CompanyPerson     string
	ClientCompany     string
	ClientPerson      string
	ClientPhone       string
	ClientEmail       string
	DepartureDate     string
	ReturnDate        string
	Nights            string
	DeparturePlace    string
	Destination       string
	DestinationOther  string
	TravelContent     string
	TotalPersons      string
	TotalAmount       string
	UnitPrice         string
	PaymentTo         string
	ArrangementStatus ArrangementStatus
	Memo              string
}

// DefaultFields returns the field values of a fresh record
func DefaultFields() Fields {
	return Fields{
		TravelType:        TravelTypeDomestic,
		ArrangementStatus: ArrangementNotStarted,
	}
}

// EffectiveDestination resolves the "other" choice to the free-text override
func (f Fields) EffectiveDestination() string {
	if f.Destination == DestinationOther {
		return f.DestinationOther
	}
	return f.Destination
}

// Payment is a received payment
type Payment struct {
	ID      string
	DueDate string
	Date    string
	Amount  string
	Place   string
	Notes   string
}

// Expense is a vendor cost
type Expense struct {
	ID      string
	Date    string
	Vendor  string
	Phone   string
	Person  string
	DueDate string
	Amount  string
	Status  ExpenseStatus
	Notes   string
}

// Comment is a note attached to the record. Images are data URLs.
type Comment struct {
	ID     string
	Text   string
	Images []string
	Author string
	Date   time.Time
}

// SalesItem is one categorized sales line
type SalesItem struct {
	ID                   string
	Category             SalesCategory
	ArrangementStatus    SalesArrangementStatus
	Content              string
	UsageDate            string
	UnitPrice            string
	PersonCount          string
	TotalSales           string
	PaymentStatus        PaymentStatus
	PaymentTo            PaymentMethod
	PaymentDate          string
	PaymentContactPerson string
	PaymentContact       string
}

// SalesDetails holds every sales line in one ordered list, each tagged with
// its category, plus a record-level memo.
type SalesDetails struct {
	Items []SalesItem
	Memo  string
}

// ByCategory returns the items of one category in list order
func (d SalesDetails) ByCategory(c SalesCategory) []SalesItem {
	var out []SalesItem
	for _, item := range d.Items {
		if item.Category == c {
			out = append(out, item)
		}
	}
	return out
}

// Field names a scalar field that UpdateField accepts
type Field string

const (
	FieldTravelType        Field = "travelType"
	FieldCompanyPerson     Field = "companyPerson"
	FieldClientCompany     Field = "clientCompany"
	FieldClientPerson      Field = "clientPerson"
	FieldClientPhone       Field = "clientPhone"
	FieldClientEmail       Field = "clientEmail"
	FieldDepartureDate     Field = "departureDate"
	FieldReturnDate        Field = "returnDate"
	FieldNights            Field = "nights"
	FieldDeparturePlace    Field = "departurePlace"
	FieldDestination       Field = "destination"
	FieldDestinationOther  Field = "destinationOther"
	FieldTravelContent     Field = "travelContent"
	FieldTotalPersons      Field = "totalPersons"
	FieldTotalAmount       Field = "totalAmount"
	FieldUnitPrice         Field = "unitPrice"
	FieldPaymentTo         Field = "paymentTo"
	FieldArrangementStatus Field = "arrangementStatus"
	FieldMemo              Field = "memo"
)

// stringField returns a pointer to the plain string field, if name is one
func (f *Fields) stringField(name Field) (*string, bool) {
	switch name {
	case FieldCompanyPerson:
		return &f.CompanyPerson, true
	case FieldClientCompany:
		return &f.ClientCompany, true
	case FieldClientPerson:
		return &f.ClientPerson, true
	case FieldClientPhone:
		return &f.ClientPhone, true
	case FieldClientEmail:
		return &f.ClientEmail, true
	case FieldDepartureDate:
		return &f.DepartureDate, true
	case FieldReturnDate:
		return &f.ReturnDate, true
	case FieldNights:
		return &f.Nights, true
	case FieldDeparturePlace:
		return &f.DeparturePlace, true
	case FieldDestination:
		return &f.Destination, true
	case FieldDestinationOther:
		return &f.DestinationOther, true
	case FieldTravelContent:
		return &f.TravelContent, true
	case FieldTotalPersons:
		return &f.TotalPersons, true
	case FieldTotalAmount:
		return &f.TotalAmount, true
	case FieldUnitPrice:
		return &f.UnitPrice, true
	case FieldPaymentTo:
		return &f.PaymentTo, true
	case FieldMemo:
		return &f.Memo, true
	}
	return nil, false
}

// SalesItemField names an editable field of a sales line
type SalesItemField string

const (
	SalesFieldCategory             SalesItemField = "category"
	SalesFieldArrangementStatus    SalesItemField = "arrangementStatus"
	SalesFieldContent              SalesItemField = "content"
	SalesFieldUsageDate            SalesItemField = "usageDate"
	SalesFieldUnitPrice            SalesItemField = "unitPrice"
	SalesFieldPersonCount          SalesItemField = "personCount"
	SalesFieldPaymentStatus        SalesItemField = "paymentStatus"
	SalesFieldPaymentTo            SalesItemField = "paymentTo"
	SalesFieldPaymentDate          SalesItemField = "paymentDate"
	SalesFieldPaymentContactPerson SalesItemField = "paymentContactPerson"
	SalesFieldPaymentContact       SalesItemField = "paymentContact"
)

func errUnknownField(name string) error {
	return shared.NewValidationError("UNKNOWN_FIELD", "Unknown field: "+name)
}
